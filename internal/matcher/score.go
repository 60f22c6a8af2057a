package matcher

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"booksync/internal/fuzzy"
)

// MatchTranscripts scores every transcript against every chapter and returns
// one candidate per transcript in input order. Transcripts are scored in
// parallel; chapters are only read.
func MatchTranscripts(transcripts []Transcript, chapters []Chapter) []Candidate {
	candidates := make([]Candidate, len(transcripts))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, tr := range transcripts {
		g.Go(func() error {
			candidates[i] = scoreTranscript(tr, chapters)
			return nil
		})
	}
	_ = g.Wait()
	return candidates
}

// scoreTranscript scans chapters left to right. A new maximum pushes the old
// best into second place; a score between the two only raises second.
func scoreTranscript(tr Transcript, chapters []Chapter) Candidate {
	candidate := Candidate{Audio: tr.Audio}
	scorer := fuzzy.NewScorer(tr.Text)
	for _, chapter := range chapters {
		score := scorer.Ratio(chapter.Text)
		if score > candidate.Best {
			candidate.Second = candidate.Best
			candidate.Best = score
			candidate.Chapter = chapter
			continue
		}
		if score > candidate.Second {
			candidate.Second = score
		}
	}
	return candidate
}
