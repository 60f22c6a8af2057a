package fuzzy

import (
	"math"
	"math/bits"
	"unicode/utf8"
)

// Scorer holds the match bitmaps for a fixed pattern.
type Scorer struct {
	length int
	words  int
	masks  map[rune][]uint64
}

// NewScorer precomputes the bitmaps for pattern.
func NewScorer(pattern string) *Scorer {
	runes := []rune(pattern)
	s := &Scorer{
		length: len(runes),
		words:  (len(runes) + 63) / 64,
		masks:  make(map[rune][]uint64),
	}
	for i, r := range runes {
		mask, ok := s.masks[r]
		if !ok {
			mask = make([]uint64, s.words)
			s.masks[r] = mask
		}
		mask[i/64] |= 1 << (uint(i) % 64)
	}
	return s
}

// Len returns the pattern length in runes.
func (s *Scorer) Len() int {
	if s == nil {
		return 0
	}
	return s.length
}

// LCS returns the length of the longest common subsequence of the pattern and text.
func (s *Scorer) LCS(text string) int {
	if s == nil || s.length == 0 || text == "" {
		return 0
	}
	row := make([]uint64, s.words)
	for i := range row {
		row[i] = math.MaxUint64
	}
	for _, r := range text {
		mask, ok := s.masks[r]
		if !ok {
			continue
		}
		var carry uint64
		for w, v := range row {
			u := v & mask[w]
			var x uint64
			x, carry = bits.Add64(v, u, carry)
			row[w] = x | (v - u)
		}
	}

	lcs := 0
	for w, v := range row {
		zeros := ^v
		if w == s.words-1 {
			if tail := uint(s.length % 64); tail != 0 {
				zeros &= (1 << tail) - 1
			}
		}
		lcs += bits.OnesCount64(zeros)
	}
	return lcs
}

// Ratio returns the similarity of the pattern and text in [0, 100].
func (s *Scorer) Ratio(text string) int {
	if s == nil || s.length == 0 || text == "" {
		return 0
	}
	total := s.length + utf8.RuneCountInString(text)
	return int(math.RoundToEven(200 * float64(s.LCS(text)) / float64(total)))
}

// Ratio returns the similarity of a and b in [0, 100]. Empty input scores 0.
func Ratio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	// The bitmaps scale with the pattern, so use the shorter string.
	if utf8.RuneCountInString(a) > utf8.RuneCountInString(b) {
		a, b = b, a
	}
	return NewScorer(a).Ratio(b)
}
