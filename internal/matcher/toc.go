package matcher

import (
	"context"
	"fmt"
	"strings"

	"booksync/internal/audio"
	"booksync/internal/ebook"
	"booksync/internal/fuzzy"
)

// Outcome is the result kind of MatchTOC.
type Outcome int

const (
	// NeedsFallback means the table of contents could not be used and the
	// caller should match transcripts instead.
	NeedsFallback Outcome = iota
	// Matched means the proposals were confirmed.
	Matched
)

func (o Outcome) String() string {
	if o == Matched {
		return "matched"
	}
	return "needs_fallback"
}

// Proposal is one audio-to-chapter assignment derived from the table of
// contents.
type Proposal struct {
	Audio   audio.File
	Query   string
	Link    ebook.NavLink
	Chapter Chapter
	// Score is the similarity between Query and the link title.
	Score int
}

// TOCResult is the outcome of MatchTOC. Pairs is set only when Outcome is
// Matched; Reason explains a fallback.
type TOCResult struct {
	Outcome   Outcome
	Pairs     []Pair
	Proposals []Proposal
	Reason    string
}

// Confirmer decides whether proposed TOC assignments are authoritative.
type Confirmer interface {
	ConfirmTOC(ctx context.Context, proposals []Proposal) (bool, error)
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, proposals []Proposal) (bool, error)

// ConfirmTOC calls f.
func (f ConfirmerFunc) ConfirmTOC(ctx context.Context, proposals []Proposal) (bool, error) {
	return f(ctx, proposals)
}

// AutoConfirm accepts every proposal.
var AutoConfirm Confirmer = ConfirmerFunc(func(context.Context, []Proposal) (bool, error) {
	return true, nil
})

// TOCOption customizes MatchTOC.
type TOCOption func(*tocOptions)

type tocOptions struct {
	titles map[string]string
}

// WithAudioTitles uses the tag title of an audio file, keyed by stem, as the
// query instead of the stem itself when present.
func WithAudioTitles(titles map[string]string) TOCOption {
	return func(o *tocOptions) {
		o.titles = titles
	}
}

// MatchTOC proposes a chapter for every audio file by fuzzy matching audio
// names against link titles and link targets against chapter IDs. The result
// is Matched only when confirmer accepts the proposals.
func MatchTOC(ctx context.Context, links []ebook.NavLink, chapters []Chapter, files []audio.File, confirmer Confirmer, opts ...TOCOption) TOCResult {
	if len(links) == 0 || len(chapters) == 0 || len(files) == 0 {
		return fallback("toc_inputs_unavailable")
	}
	var options tocOptions
	for _, opt := range opts {
		opt(&options)
	}

	resolved, titles := resolveLinks(links, chapters)
	if len(resolved) == 0 {
		return fallback("toc_targets_unresolved")
	}

	proposals := make([]Proposal, 0, len(files))
	claimed := make(map[string]string, len(files))
	for _, file := range files {
		query := file.Stem
		if title := strings.TrimSpace(options.titles[file.Stem]); title != "" {
			query = title
		}
		match, ok := fuzzy.BestMatch(query, titles)
		if !ok || match.Score == 0 {
			return fallback(fmt.Sprintf("no toc entry resembles %q", query))
		}
		entry := resolved[match.Index]
		if prev, dup := claimed[entry.chapter.ID]; dup {
			return fallback(fmt.Sprintf("%s and %s both map to %s", prev, file.Stem, entry.chapter.ID))
		}
		claimed[entry.chapter.ID] = file.Stem
		proposals = append(proposals, Proposal{
			Audio:   file,
			Query:   query,
			Link:    entry.link,
			Chapter: entry.chapter,
			Score:   match.Score,
		})
	}

	if confirmer == nil {
		result := fallback("no confirmer available")
		result.Proposals = proposals
		return result
	}
	ok, err := confirmer.ConfirmTOC(ctx, proposals)
	if err != nil {
		result := fallback(fmt.Sprintf("confirmation failed: %v", err))
		result.Proposals = proposals
		return result
	}
	if !ok {
		result := fallback("toc mapping rejected")
		result.Proposals = proposals
		return result
	}

	pairs := make([]Pair, 0, len(proposals))
	for _, p := range proposals {
		pairs = append(pairs, Pair{Audio: p.Audio, Chapter: p.Chapter})
	}
	return TOCResult{Outcome: Matched, Pairs: pairs, Proposals: proposals}
}

type resolvedLink struct {
	link    ebook.NavLink
	chapter Chapter
}

// resolveLinks maps every link onto a chapter. Links whose target matches no
// chapter at all are dropped. The returned titles are parallel to the links.
func resolveLinks(links []ebook.NavLink, chapters []Chapter) ([]resolvedLink, []string) {
	ids := make([]string, len(chapters))
	byID := make(map[string]int, len(chapters))
	for i, ch := range chapters {
		ids[i] = ch.ID
		byID[ch.ID] = i
	}

	var (
		resolved []resolvedLink
		titles   []string
	)
	for _, link := range links {
		if strings.TrimSpace(link.Title) == "" {
			continue
		}
		target, _, _ := strings.Cut(link.Target, "#")
		idx, ok := byID[target]
		if !ok {
			match, found := fuzzy.BestMatch(target, ids)
			if !found || match.Score == 0 {
				continue
			}
			idx = match.Index
		}
		resolved = append(resolved, resolvedLink{link: link, chapter: chapters[idx]})
		titles = append(titles, link.Title)
	}
	return resolved, titles
}

func fallback(reason string) TOCResult {
	return TOCResult{Outcome: NeedsFallback, Reason: reason}
}
