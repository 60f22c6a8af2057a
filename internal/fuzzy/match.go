package fuzzy

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Match is the outcome of BestMatch.
type Match struct {
	Index int
	Value string
	Score int
}

// Normalize prepares a label for comparison: NFKC, case folding, and
// collapsed whitespace.
func Normalize(value string) string {
	value = norm.NFKC.String(value)
	value = cases.Fold().String(value)
	return strings.Join(strings.Fields(value), " ")
}

// BestMatch returns the candidate most similar to query. Ties keep the
// earliest candidate. ok is false when there are no candidates.
func BestMatch(query string, candidates []string) (Match, bool) {
	if len(candidates) == 0 {
		return Match{}, false
	}
	scorer := NewScorer(Normalize(query))
	best := Match{Index: -1, Score: -1}
	for i, candidate := range candidates {
		score := scorer.Ratio(Normalize(candidate))
		if score > best.Score {
			best = Match{Index: i, Value: candidate, Score: score}
		}
	}
	return best, true
}
