package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"

	"booksync/internal/audio"
	"booksync/internal/matcher"
	"booksync/internal/subtitles"
	"booksync/internal/video"
)

// Transcriber produces the rough transcript used for chapter matching.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (string, error)
	Backend() string
	Model() string
}

// Aligner forces chapter text onto narration.
type Aligner interface {
	Align(ctx context.Context, audioPath, text, language string) ([]subtitles.Cue, error)
	Close() error
}

// AlignerProvider creates the run's aligner. It is called at most once per
// run, and only when there is something to align.
type AlignerProvider func(ctx context.Context) (Aligner, error)

// VideoMuxer renders the optional cover video.
type VideoMuxer interface {
	Mux(ctx context.Context, req video.Request) error
}

// Dependencies are the external collaborators of a run.
type Dependencies struct {
	Transcriber Transcriber
	Aligner     AlignerProvider
	Muxer       VideoMuxer
	// Confirmer approves TOC mappings. When nil, matching.auto_confirm
	// decides; without either the TOC strategy always falls back.
	Confirmer matcher.Confirmer
	Logger    *slog.Logger
}

// Request names the inputs of one run.
type Request struct {
	EbookPath string
	AudioDir  string
	// OutputDir overrides the configured output subdirectory.
	OutputDir string
	// MatchOnly stops after matching and treats every audio file as pending.
	MatchOnly bool
}

// Status is the outcome for one audio file.
type Status string

const (
	StatusWritten   Status = "written"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
	StatusUnmatched Status = "unmatched"
	StatusMatched   Status = "matched"
)

// Strategy labels how a chapter was chosen.
const (
	StrategyTOC        = "toc"
	StrategyTranscript = "transcript"
)

// Row is the report line for one audio file.
type Row struct {
	Audio         audio.File
	Strategy      string
	ChapterID     string
	Best          int
	Second        int
	TitleScore    int
	LowConfidence bool
	Reasons       []string
	Status        Status
	SubtitlePath  string
	VideoPath     string
	Err           error
	VideoErr      error
}

// Report summarizes a run.
type Report struct {
	RunID          string
	Title          string
	Language       string
	OutputDir      string
	Strategy       string
	FallbackReason string
	// VideoSkipped explains why no video was produced when video output was
	// requested.
	VideoSkipped string
	Rows         []Row

	byStem map[string]int
}

func newReport(runID, outputDir string, files []audio.File) *Report {
	r := &Report{
		RunID:     runID,
		OutputDir: outputDir,
		Rows:      make([]Row, len(files)),
		byStem:    make(map[string]int, len(files)),
	}
	for i, f := range files {
		r.Rows[i] = Row{Audio: f, SubtitlePath: filepath.Join(outputDir, f.Stem+".srt")}
		r.byStem[f.Stem] = i
	}
	return r
}

// row returns the row for stem. Stems are unique within a scan.
func (r *Report) row(stem string) *Row {
	i, ok := r.byStem[stem]
	if !ok {
		return &Row{}
	}
	return &r.Rows[i]
}

// Count returns the number of rows with status s.
func (r *Report) Count(s Status) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, row := range r.Rows {
		if row.Status == s {
			n++
		}
	}
	return n
}

// HasFailures reports whether any chapter failed.
func (r *Report) HasFailures() bool {
	return r.Count(StatusFailed) > 0
}
