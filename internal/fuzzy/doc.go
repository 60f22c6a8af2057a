// Package fuzzy scores string similarity on a 0 to 100 scale.
//
// Ratio is the indel similarity 200*LCS/(len(a)+len(b)) over runes, rounded
// half to even. The longest common subsequence is computed with a bit-parallel
// row update, one machine word per 64 pattern runes, so whole chapters can be
// compared against whole transcripts. A Scorer precomputes the pattern bitmaps
// once and may be shared by concurrent callers.
//
// BestMatch compares short labels such as file names and titles after NFKC
// normalization and case folding.
package fuzzy
