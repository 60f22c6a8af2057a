package textseg

import (
	"strings"

	"booksync/internal/config"
)

// Segmenter converts chapter markup into alignment lines.
type Segmenter struct {
	MaxLength int
	Terminals string
	Delims    Delimiters
}

// New builds a Segmenter from the [segmenter] config section.
func New(cfg config.Segmenter) Segmenter {
	seg := Segmenter{
		MaxLength: cfg.MaxLineLength,
		Terminals: cfg.SentenceDelimiters,
		Delims:    DefaultDelimiters(),
	}
	if cfg.ClauseDelimiters != "" {
		seg.Delims.Clause = cfg.ClauseDelimiters
	}
	if seg.Terminals == "" {
		seg.Terminals = DefaultTerminals
	}
	return seg
}

// Segment returns the lines of markup in order. Markup without text yields
// no lines.
func (s Segmenter) Segment(markup []byte) ([]string, error) {
	text, err := ExtractText(markup)
	if err != nil {
		return nil, err
	}
	return s.SegmentText(text), nil
}

// SegmentText splits already extracted plain text.
func (s Segmenter) SegmentText(text string) []string {
	var lines []string
	for _, sentence := range SplitSentences(text, s.Terminals) {
		split := SplitLongLine(sentence, s.MaxLength, s.Delims)
		for _, line := range strings.Split(split, "\n") {
			if line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines
}
