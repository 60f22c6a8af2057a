package matcher

import (
	"context"
	"errors"
	"strings"
	"testing"

	"booksync/internal/audio"
	"booksync/internal/ebook"
)

func tocFixture() ([]ebook.NavLink, []Chapter) {
	links := []ebook.NavLink{
		{Title: "第一章", Target: "OEBPS/text/ch01.xhtml#top"},
		{Title: "第二章", Target: "OEBPS/text/ch02.xhtml"},
	}
	chs := []Chapter{
		NewChapter("OEBPS/text/ch01.xhtml", []string{"一"}),
		NewChapter("OEBPS/text/ch02.xhtml", []string{"二"}),
	}
	return links, chs
}

func files(stems ...string) []audio.File {
	out := make([]audio.File, len(stems))
	for i, stem := range stems {
		out[i] = audio.File{Path: "/audio/" + stem + ".mp3", Stem: stem, Ext: ".mp3"}
	}
	return out
}

func TestMatchTOCConfirmed(t *testing.T) {
	links, chs := tocFixture()
	var seen []Proposal
	confirm := ConfirmerFunc(func(_ context.Context, proposals []Proposal) (bool, error) {
		seen = proposals
		return true, nil
	})

	result := MatchTOC(context.Background(), links, chs, files("第二章", "第一章"), confirm)
	if result.Outcome != Matched {
		t.Fatalf("expected Matched, got %s (%s)", result.Outcome, result.Reason)
	}
	if len(seen) != 2 {
		t.Fatalf("confirmer saw %d proposals", len(seen))
	}
	if result.Pairs[0].Audio.Stem != "第二章" || result.Pairs[0].Chapter.ID != "OEBPS/text/ch02.xhtml" {
		t.Fatalf("unexpected first pair: %+v", result.Pairs[0])
	}
	if result.Pairs[1].Chapter.ID != "OEBPS/text/ch01.xhtml" {
		t.Fatalf("fragment target not resolved: %+v", result.Pairs[1])
	}
}

func TestMatchTOCFallbacks(t *testing.T) {
	links, chs := tocFixture()
	reject := ConfirmerFunc(func(context.Context, []Proposal) (bool, error) { return false, nil })
	failing := ConfirmerFunc(func(context.Context, []Proposal) (bool, error) { return false, errors.New("stdin closed") })

	tests := []struct {
		name      string
		links     []ebook.NavLink
		chapters  []Chapter
		files     []audio.File
		confirmer Confirmer
		reason    string
	}{
		{"no links", nil, chs, files("第一章"), AutoConfirm, "toc_inputs_unavailable"},
		{"no chapters", links, nil, files("第一章"), AutoConfirm, "toc_inputs_unavailable"},
		{"no audio", links, chs, nil, AutoConfirm, "toc_inputs_unavailable"},
		{"rejected", links, chs, files("第一章"), reject, "rejected"},
		{"confirmer error", links, chs, files("第一章"), failing, "stdin closed"},
		{"nil confirmer", links, chs, files("第一章"), nil, "no confirmer"},
		{"unrelated name", links, chs, files("track"), AutoConfirm, "no toc entry"},
		{"duplicate chapter", links, chs, files("第一章", "第一章 part"), AutoConfirm, "both map to"},
		{"unresolved targets", []ebook.NavLink{{Title: "x", Target: "zzz"}}, chs, files("x"), AutoConfirm, "toc_targets_unresolved"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MatchTOC(context.Background(), tt.links, tt.chapters, tt.files, tt.confirmer)
			if result.Outcome != NeedsFallback {
				t.Fatalf("expected NeedsFallback, got %s", result.Outcome)
			}
			if len(result.Pairs) != 0 {
				t.Fatalf("fallback must not carry pairs: %+v", result.Pairs)
			}
			if !strings.Contains(result.Reason, tt.reason) {
				t.Fatalf("reason %q does not mention %q", result.Reason, tt.reason)
			}
		})
	}
}

func TestMatchTOCUsesAudioTitles(t *testing.T) {
	links, chs := tocFixture()
	fs := files("track01")
	titles := map[string]string{"track01": "第二章"}

	result := MatchTOC(context.Background(), links, chs, fs, AutoConfirm, WithAudioTitles(titles))
	if result.Outcome != Matched {
		t.Fatalf("expected Matched, got %s (%s)", result.Outcome, result.Reason)
	}
	if result.Proposals[0].Query != "第二章" || result.Pairs[0].Chapter.ID != "OEBPS/text/ch02.xhtml" {
		t.Fatalf("unexpected proposal: %+v", result.Proposals[0])
	}
}
