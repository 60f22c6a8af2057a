package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"booksync/internal/audio"
	"booksync/internal/logging"
	"booksync/internal/services"
	"booksync/internal/transcripts"
)

type transcriptResult struct {
	file   audio.File
	text   string
	cached bool
	err    error
}

// transcribeAll fills one result slot per file. Workers never share a slot,
// and a failure for one file does not stop the others.
func (p *Pipeline) transcribeAll(ctx context.Context, store *transcripts.Store, files []audio.File, lang string) []transcriptResult {
	ctx = services.WithStage(ctx, "transcribe")
	results := make([]transcriptResult, len(files))

	var g errgroup.Group
	g.SetLimit(max(p.cfg.Transcription.PoolSize, 1))
	for i, file := range files {
		g.Go(func() error {
			results[i] = p.transcribeOne(ctx, store, file, lang)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pipeline) transcribeOne(ctx context.Context, store *transcripts.Store, file audio.File, lang string) transcriptResult {
	ctx = services.WithAudio(ctx, file.Stem)
	logger := logging.WithContext(ctx, p.logger)
	result := transcriptResult{file: file}

	if err := ctx.Err(); err != nil {
		result.err = err
		return result
	}

	entry, err := store.Get(ctx, file.Stem)
	if err != nil {
		logging.WarnWithContext(logger, "transcript cache read failed", "cache_read_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "transcribing again"),
		)
	}
	if entry != nil {
		logger.Debug("transcript cache hit",
			logging.Args(logging.DecisionAttrs("transcript_cache", "hit", entry.Backend)...)...)
		result.text = entry.Text
		result.cached = true
		return result
	}

	if p.deps.Transcriber == nil {
		result.err = services.Wrap(services.ErrConfiguration, "transcribe", "backend", "no transcription backend configured", nil)
		return result
	}

	logger.Debug("transcript cache miss",
		logging.Args(logging.DecisionAttrs("transcript_cache", "miss", p.deps.Transcriber.Backend())...)...)
	start := time.Now()
	text, err := p.deps.Transcriber.Transcribe(ctx, file.Path, lang)
	if err != nil {
		result.err = err
		return result
	}
	logger.Info("transcribed",
		logging.String("backend", p.deps.Transcriber.Backend()),
		logging.Duration("elapsed", time.Since(start)),
	)
	result.text = text

	putErr := store.Put(ctx, transcripts.Entry{
		Stem:      file.Stem,
		AudioPath: file.Path,
		Text:      text,
		Backend:   p.deps.Transcriber.Backend(),
		Model:     p.deps.Transcriber.Model(),
	})
	if putErr != nil {
		logging.WarnWithContext(logger, "transcript cache write failed", "cache_write_failed",
			logging.Error(putErr),
			logging.String(logging.FieldImpact, "transcript will be recomputed next run"),
		)
	}
	return result
}

func logTranscriptionFailures(logger *slog.Logger, results []transcriptResult) {
	for _, r := range results {
		if r.err == nil {
			continue
		}
		logging.WarnWithContext(logger, "transcription failed", "transcription_failed",
			logging.String(logging.FieldAudio, r.file.Stem),
			logging.Error(r.err),
			logging.String(logging.FieldImpact, "audio file cannot be matched"),
			logging.String(logging.FieldErrorHint, "check the transcription backend, then rerun"),
		)
	}
}
