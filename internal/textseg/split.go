package textseg

import "strings"

const (
	// DefaultTerminals end a sentence.
	DefaultTerminals = "。？！…〜"
	// DefaultClause marks clause boundaries inside a sentence.
	DefaultClause = "、，,；;：:"
	// DefaultRuns are split after a maximal run, never inside it.
	DefaultRuns = "―—…‥"

	// closers stay attached to the sentence they close.
	closers = "」』）)】〕〉》］]”’\"'"
)

// Delimiters are the secondary boundaries SplitLongLine may cut after.
type Delimiters struct {
	Clause string
	Runs   string
}

// DefaultDelimiters returns the delimiter set for Japanese prose.
func DefaultDelimiters() Delimiters {
	return Delimiters{Clause: DefaultClause, Runs: DefaultRuns}
}

// SplitSentences cuts text after every terminal and at every newline. Runs
// of terminals and closing brackets that follow a terminal stay with the
// sentence. Blank sentences are dropped.
func SplitSentences(text, terminals string) []string {
	if terminals == "" {
		terminals = DefaultTerminals
	}
	runes := []rune(text)
	var sentences []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' {
			flush()
			continue
		}
		current.WriteRune(r)
		if !strings.ContainsRune(terminals, r) {
			continue
		}
		for i+1 < len(runes) && (strings.ContainsRune(terminals, runes[i+1]) || strings.ContainsRune(closers, runes[i+1])) {
			i++
			current.WriteRune(runes[i])
		}
		flush()
	}
	flush()
	return sentences
}

// SplitLongLine breaks unit into lines of at most maxLength runes where
// boundaries allow. It bisects at the boundary nearest the middle and
// recurses on both halves, so every call works on a strictly shorter unit.
func SplitLongLine(unit string, maxLength int, delims Delimiters) string {
	runes := []rune(unit)
	if maxLength <= 0 || len(runes) <= maxLength {
		return unit
	}

	offset := splitOffset(runes, delims)
	if offset <= 0 {
		return unit
	}

	left := strings.TrimRight(string(runes[:offset]), "\n")
	right := strings.TrimLeft(string(runes[offset:]), " \n")
	switch {
	case left == "":
		return SplitLongLine(right, maxLength, delims)
	case right == "":
		return SplitLongLine(left, maxLength, delims)
	}
	return SplitLongLine(left, maxLength, delims) + "\n" + SplitLongLine(right, maxLength, delims)
}

// splitOffset returns the interior boundary closest to the middle of runes,
// preferring the earlier one on ties, or 0 when there is none. Offsets are
// rune counts of the left half.
func splitOffset(runes []rune, delims Delimiters) int {
	n := len(runes)
	best, bestDist := 0, -1
	consider := func(offset int) {
		if offset <= 0 || offset >= n {
			return
		}
		dist := 2*offset - n
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = offset, dist
		}
	}

	for i, r := range runes {
		switch {
		case r == '\n':
			consider(i + 1)
		case strings.ContainsRune(delims.Clause, r):
			consider(i + 1)
		case strings.ContainsRune(delims.Runs, r):
			if i+1 == n || !strings.ContainsRune(delims.Runs, runes[i+1]) {
				consider(i + 1)
			}
		}
	}
	return best
}
