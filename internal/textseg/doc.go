// Package textseg turns chapter markup into short lines for forced alignment.
//
// Segmentation has three steps. ExtractText flattens the markup to plain
// text, dropping ruby readings and empty lines. SplitSentences cuts after
// sentence terminals and at line breaks. SplitLongLine bisects any sentence
// longer than the display limit at the clause boundary nearest its middle
// and recurses on both halves. A sentence without a usable boundary is kept
// whole because the aligner needs the complete text.
package textseg
