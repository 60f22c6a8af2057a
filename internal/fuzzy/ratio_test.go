package fuzzy

import (
	"strings"
	"testing"
)

// naiveLCS is the quadratic reference used to check the bit-parallel version.
func naiveLCS(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			switch {
			case ra[i-1] == rb[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 0},
		{"", "abc", 0},
		{"abc", "abc", 100},
		{"abc", "xyz", 0},
		{"this is a test", "this is a test!", 97},
		{"fuzzy wuzzy was a bear", "wuzzy fuzzy was a bear", 91},
		{"これは文です。", "これは文です。", 100},
		{"吾輩は猫である", "吾輩は犬である", 86},
	}
	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			if got := Ratio(tt.a, tt.b); got != tt.want {
				t.Errorf("Ratio(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRatioIsSymmetric(t *testing.T) {
	a := "kitten sitting on the mat"
	b := "sitting kitten"
	if Ratio(a, b) != Ratio(b, a) {
		t.Fatalf("Ratio not symmetric: %d vs %d", Ratio(a, b), Ratio(b, a))
	}
}

func TestLCSMatchesReferenceAcrossWordBoundaries(t *testing.T) {
	base := "吾輩は猫である。名前はまだ無い。どこで生れたかとんと見当がつかぬ。"
	pattern := strings.Repeat(base, 5)
	texts := []string{
		base,
		strings.Repeat("名前はまだ無い。", 9),
		strings.ReplaceAll(pattern, "猫", "犬"),
		"abc" + string([]rune(pattern)[:len([]rune(pattern))/2]),
		"まったく関係のない文章",
	}
	scorer := NewScorer(pattern)
	if scorer.Len() <= 128 {
		t.Fatalf("pattern should span several words, got %d runes", scorer.Len())
	}
	for i, text := range texts {
		if got, want := scorer.LCS(text), naiveLCS(pattern, text); got != want {
			t.Errorf("case %d: LCS = %d, want %d", i, got, want)
		}
	}
}

func TestScorerExactMultipleOf64(t *testing.T) {
	pattern := strings.Repeat("ab", 64)
	scorer := NewScorer(pattern)
	if got := scorer.LCS(pattern); got != 128 {
		t.Fatalf("LCS = %d, want 128", got)
	}
	if got := scorer.Ratio(pattern); got != 100 {
		t.Fatalf("Ratio = %d, want 100", got)
	}
}

func TestNilScorer(t *testing.T) {
	var s *Scorer
	if s.Ratio("abc") != 0 || s.LCS("abc") != 0 || s.Len() != 0 {
		t.Fatal("nil scorer should score zero")
	}
}
