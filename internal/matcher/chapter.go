package matcher

import (
	"strings"

	"booksync/internal/audio"
)

// Chapter is one segmented spine document.
type Chapter struct {
	// ID is the document path inside the e-book.
	ID    string
	Lines []string
	Text  string
}

// NewChapter builds a chapter from its segmented lines.
func NewChapter(id string, lines []string) Chapter {
	return Chapter{
		ID:    id,
		Lines: lines,
		Text:  strings.Join(lines, "\n"),
	}
}

// Pair is an audio file with the chapter it narrates.
type Pair struct {
	Audio   audio.File
	Chapter Chapter
}

// Transcript is the rough transcription of one audio file.
type Transcript struct {
	Audio audio.File
	Text  string
}

// Candidate is the scoring outcome for one audio file. Best >= Second always
// holds and Chapter is the chapter that scored Best.
type Candidate struct {
	Audio   audio.File
	Best    int
	Second  int
	Chapter Chapter
}

// Matched reports whether any chapter scored above zero.
func (c Candidate) Matched() bool {
	return c.Best > 0 && c.Chapter.ID != ""
}

// Margin is the gap between the best and second-best score.
func (c Candidate) Margin() int {
	return c.Best - c.Second
}

// Pairs returns the matched candidates as pairs, preserving order.
func Pairs(candidates []Candidate) []Pair {
	pairs := make([]Pair, 0, len(candidates))
	for _, c := range candidates {
		if !c.Matched() {
			continue
		}
		pairs = append(pairs, Pair{Audio: c.Audio, Chapter: c.Chapter})
	}
	return pairs
}
