package textseg

import (
	"strings"
	"testing"

	"booksync/internal/config"
)

func TestSegmentTwoSentences(t *testing.T) {
	seg := New(config.Segmenter{MaxLineLength: 40})
	lines, err := seg.Segment([]byte("<p>これは文です。これも文です。</p>"))
	if err != nil {
		t.Fatalf("Segment returned error: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), lines)
	}
	for _, line := range lines {
		if !strings.HasSuffix(line, "。") {
			t.Fatalf("expected line to end with 。, got %q", line)
		}
	}
}

func TestSegmentEmptyMarkup(t *testing.T) {
	seg := New(config.Segmenter{MaxLineLength: 40})
	lines, err := seg.Segment([]byte("<html><head><title>x</title></head><body></body></html>"))
	if err != nil {
		t.Fatalf("Segment returned error: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected no lines, got %q", lines)
	}
}

func TestSegmentSplitsLongSentences(t *testing.T) {
	seg := New(config.Segmenter{MaxLineLength: 10, ClauseDelimiters: "、"})
	lines := seg.SegmentText("あいうえお、かきくけこ、さしすせそ。")
	want := []string{"あいうえお、", "かきくけこ、", "さしすせそ。"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("SegmentText = %q, want %q", lines, want)
	}
}

func TestNewUsesDefaults(t *testing.T) {
	seg := New(config.Segmenter{MaxLineLength: 20})
	if seg.Terminals != DefaultTerminals || seg.Delims.Clause != DefaultClause || seg.Delims.Runs != DefaultRuns {
		t.Fatalf("unexpected defaults: %+v", seg)
	}
}
