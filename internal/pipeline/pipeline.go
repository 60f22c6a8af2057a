package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"booksync/internal/audio"
	"booksync/internal/config"
	"booksync/internal/ebook"
	"booksync/internal/fileutil"
	"booksync/internal/language"
	"booksync/internal/logging"
	"booksync/internal/matcher"
	"booksync/internal/services"
	"booksync/internal/subtitles"
	"booksync/internal/textseg"
	"booksync/internal/transcripts"
	"booksync/internal/video"
)

// Pipeline runs e-book to audiobook synchronization.
type Pipeline struct {
	cfg       *config.Config
	deps      Dependencies
	logger    *slog.Logger
	segmenter textseg.Segmenter
	policy    matcher.Policy
}

// New constructs a pipeline bound to cfg.
func New(cfg *config.Config, deps Dependencies) (*Pipeline, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "config is required", nil)
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		cfg:       cfg,
		deps:      deps,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		segmenter: textseg.New(cfg.Segmenter),
		policy: matcher.Policy{
			MinScore:  cfg.Matching.MinScore,
			MinMargin: cfg.Matching.MinMargin,
		},
	}, nil
}

// Run synchronizes one book. The returned error is reserved for failures that
// stop the whole run; chapter-scoped failures are reported in Report rows.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Report, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, p.logger)
	started := time.Now()

	book, chapters, err := LoadChapters(req.EbookPath, p.segmenter)
	if err != nil {
		return nil, err
	}
	lang := p.resolveLanguage(logger, book, chapters)

	files, err := scanAudio(req.AudioDir, p.cfg.Book.AudioExtensions)
	if err != nil {
		return nil, err
	}

	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		outputDir = p.cfg.OutputDir(req.AudioDir)
	}
	report := newReport(runID, outputDir, files)
	report.Title = book.Title
	report.Language = lang

	logger.Info("sync starting",
		logging.String("title", book.Title),
		logging.String("language", lang),
		logging.Int("chapters", len(chapters)),
		logging.Int("audio_files", len(files)),
		logging.String("output_dir", outputDir),
	)

	pending := files
	if !req.MatchOnly {
		pending = markExisting(report, files)
		if len(pending) == 0 {
			p.readCachedMatches(ctx, req.AudioDir, report)
			logger.Info("nothing to do",
				logging.Args(logging.DecisionAttrs("sync", "skipped", "all subtitles exist")...)...)
			return report, nil
		}
	}

	store, err := transcripts.Open(p.cfg.CachePath(req.AudioDir))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "cache", "open", "cannot open transcript cache", err)
	}
	defer store.Close()

	if !req.MatchOnly {
		if len(pending) < len(files) {
			p.applyCachedMatches(ctx, store, report)
		}
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "pipeline", "output", "cannot create output directory "+outputDir, err)
		}
		lock, err := acquireOutputLock(outputDir)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "pipeline", "lock", "cannot lock output directory "+outputDir, err)
		}
		defer lock.release()
	}

	pairs := p.match(ctx, store, book, chapters, pending, lang, report)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if req.MatchOnly {
		return report, nil
	}

	p.alignAll(ctx, pairs, lang, report)
	p.renderVideos(ctx, book, files, report)

	logger.Info("sync finished",
		logging.Int("written", report.Count(StatusWritten)),
		logging.Int("skipped", report.Count(StatusSkipped)),
		logging.Int("failed", report.Count(StatusFailed)),
		logging.Int("unmatched", report.Count(StatusUnmatched)),
		logging.Duration("elapsed", time.Since(started)),
	)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func scanAudio(dir string, exts []string) ([]audio.File, error) {
	files, err := audio.Scan(dir, exts)
	if err != nil {
		if errors.Is(err, audio.ErrNoAudio) {
			return nil, services.Wrap(services.ErrNotFound, "audio", "scan", "no audio files in "+dir, err)
		}
		return nil, services.Wrap(services.ErrValidation, "audio", "scan", "cannot read audio directory "+dir, err)
	}
	seen := make(map[string]string, len(files))
	for _, f := range files {
		if prev, dup := seen[f.Stem]; dup {
			return nil, services.Wrap(services.ErrValidation, "audio", "scan",
				fmt.Sprintf("%s and %s share the subtitle name %s.srt", filepath.Base(prev), filepath.Base(f.Path), f.Stem), nil)
		}
		seen[f.Stem] = f.Path
	}
	return files, nil
}

// resolveLanguage prefers the configured language, then the book metadata,
// then detection over the chapter text.
func (p *Pipeline) resolveLanguage(logger *slog.Logger, book *ebook.Book, chapters []matcher.Chapter) string {
	source := "config"
	configured := p.cfg.Book.Language
	if language.ToISO2(configured) == "" {
		source = "metadata"
		configured, _, _ = strings.Cut(book.Language, "-")
		if language.ToISO2(configured) == "" {
			source = "detected"
		}
	}
	lang := language.Resolve(configured, languageSample(chapters))
	logger.Debug("language resolved",
		logging.Args(logging.DecisionAttrs("language", lang, source)...)...)
	return lang
}

// markExisting marks files whose subtitle already exists as skipped and
// returns the rest.
func markExisting(report *Report, files []audio.File) []audio.File {
	pending := make([]audio.File, 0, len(files))
	for _, f := range files {
		row := report.row(f.Stem)
		if fileutil.Exists(row.SubtitlePath) {
			row.Status = StatusSkipped
			continue
		}
		pending = append(pending, f)
	}
	return pending
}

// readCachedMatches fills skipped rows from an existing cache without creating
// or migrating it.
func (p *Pipeline) readCachedMatches(ctx context.Context, audioDir string, report *Report) {
	store, err := transcripts.OpenReadOnly(p.cfg.CachePath(audioDir))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(p.logger, "cached matches unavailable", "cache_read_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "skipped rows show no scores"),
			)
		}
		return
	}
	defer store.Close()
	p.applyCachedMatches(ctx, store, report)
}

// applyCachedMatches copies recorded matches onto skipped rows.
func (p *Pipeline) applyCachedMatches(ctx context.Context, store *transcripts.Store, report *Report) {
	cached, err := store.Matches(ctx)
	if err != nil {
		logging.WarnWithContext(p.logger, "cached matches unavailable", "cache_read_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "skipped rows show no scores"),
		)
		return
	}
	for i := range report.Rows {
		row := &report.Rows[i]
		m, ok := cached[row.Audio.Stem]
		if row.Status != StatusSkipped || !ok {
			continue
		}
		row.Strategy = m.Strategy
		row.ChapterID = m.ChapterID
		row.Best = m.Best
		row.Second = m.Second
		row.TitleScore = m.TitleScore
	}
}

func (p *Pipeline) confirmer() matcher.Confirmer {
	if p.cfg.Matching.AutoConfirm {
		return matcher.AutoConfirm
	}
	return p.deps.Confirmer
}

// match pairs pending audio with chapters, trying the table of contents first
// and falling back to transcript similarity.
func (p *Pipeline) match(ctx context.Context, store *transcripts.Store, book *ebook.Book, chapters []matcher.Chapter, pending []audio.File, lang string, report *Report) []matcher.Pair {
	ctx = services.WithStage(ctx, "match")
	logger := logging.WithContext(ctx, p.logger)

	var reason string
	switch {
	case !p.cfg.Matching.TOCEnabled:
		reason = "toc matching disabled"
	case len(book.Links) == 0:
		reason = "e-book has no table of contents"
	default:
		var opts []matcher.TOCOption
		if p.cfg.Matching.UseAudioTitles {
			opts = append(opts, matcher.WithAudioTitles(audio.Titles(ctx, pending)))
		}
		result := matcher.MatchTOC(ctx, book.Links, chapters, pending, p.confirmer(), opts...)
		if result.Outcome == matcher.Matched {
			report.Strategy = StrategyTOC
			logger.Info("toc mapping accepted",
				logging.Args(append(logging.DecisionAttrs("match_strategy", StrategyTOC, "confirmed"),
					logging.Int("pairs", len(result.Pairs)))...)...)
			for _, prop := range result.Proposals {
				row := report.row(prop.Audio.Stem)
				row.Strategy = StrategyTOC
				row.ChapterID = prop.Chapter.ID
				row.TitleScore = prop.Score
				row.Status = StatusMatched
				p.recordMatch(ctx, store, row)
			}
			return result.Pairs
		}
		reason = result.Reason
	}

	report.Strategy = StrategyTranscript
	report.FallbackReason = reason
	logger.Info("matching by transcript",
		logging.Args(logging.DecisionAttrs("match_strategy", StrategyTranscript, reason)...)...)

	results := p.transcribeAll(ctx, store, pending, lang)
	logTranscriptionFailures(logger, results)

	transcriptsIn := make([]matcher.Transcript, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			row := report.row(r.file.Stem)
			row.Strategy = StrategyTranscript
			row.Status = StatusFailed
			row.Err = r.err
			continue
		}
		transcriptsIn = append(transcriptsIn, matcher.Transcript{Audio: r.file, Text: r.text})
	}

	candidates := matcher.MatchTranscripts(transcriptsIn, chapters)
	for _, c := range candidates {
		row := report.row(c.Audio.Stem)
		assessment := p.policy.Assess(c)
		row.Strategy = StrategyTranscript
		row.Best = c.Best
		row.Second = c.Second
		row.LowConfidence = assessment.LowConfidence
		row.Reasons = assessment.Reasons
		if c.Matched() {
			row.ChapterID = c.Chapter.ID
			row.Status = StatusMatched
		} else {
			row.Status = StatusUnmatched
		}
		if assessment.LowConfidence {
			logging.WarnWithContext(logger, "low confidence chapter match", "match_low_confidence",
				logging.String(logging.FieldAudio, c.Audio.Stem),
				logging.String(logging.FieldChapter, row.ChapterID),
				logging.Int("best", c.Best),
				logging.Int("second", c.Second),
				logging.String("reasons", strings.Join(assessment.Reasons, ",")),
				logging.String(logging.FieldImpact, "subtitles may belong to the wrong chapter"),
				logging.String(logging.FieldErrorHint, "check the match table, or rename audio files to follow the table of contents"),
			)
		}
		p.recordMatch(ctx, store, row)
	}
	return matcher.Pairs(candidates)
}

func (p *Pipeline) recordMatch(ctx context.Context, store *transcripts.Store, row *Row) {
	err := store.RecordMatch(ctx, transcripts.Match{
		Stem:       row.Audio.Stem,
		ChapterID:  row.ChapterID,
		Best:       row.Best,
		Second:     row.Second,
		TitleScore: row.TitleScore,
		Strategy:   row.Strategy,
	})
	if err != nil {
		logging.WarnWithContext(p.logger, "match not cached", "cache_write_failed",
			logging.String(logging.FieldAudio, row.Audio.Stem),
			logging.Error(err),
			logging.String(logging.FieldImpact, "cache list will not show this match"),
		)
	}
}

// alignAll aligns pairs one at a time with a single aligner.
func (p *Pipeline) alignAll(ctx context.Context, pairs []matcher.Pair, lang string, report *Report) {
	if len(pairs) == 0 {
		return
	}
	ctx = services.WithStage(ctx, "align")
	logger := logging.WithContext(ctx, p.logger)

	failAll := func(err error) {
		for _, pair := range pairs {
			row := report.row(pair.Audio.Stem)
			row.Status = StatusFailed
			row.Err = err
		}
	}
	if p.deps.Aligner == nil {
		failAll(services.Wrap(services.ErrConfiguration, "align", "init", "no aligner configured", nil))
		return
	}
	aligner, err := p.deps.Aligner(ctx)
	if err != nil {
		logging.ErrorWithContext(logger, "aligner unavailable", "aligner_start_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no subtitles written"),
			logging.String(logging.FieldErrorHint, "run booksync check and verify uvx can install stable-ts"),
		)
		failAll(err)
		return
	}
	defer func() {
		if err := aligner.Close(); err != nil {
			logger.Debug("aligner close failed", logging.Error(err))
		}
	}()

	pad := time.Duration(p.cfg.Alignment.PadSeconds * float64(time.Second))
	for _, pair := range pairs {
		row := report.row(pair.Audio.Stem)
		if err := ctx.Err(); err != nil {
			row.Status = StatusFailed
			row.Err = err
			continue
		}
		if err := p.alignOne(ctx, aligner, pair, lang, pad, row.SubtitlePath); err != nil {
			row.Status = StatusFailed
			row.Err = err
			logging.ErrorWithContext(logger, "alignment failed", "alignment_failed",
				logging.String(logging.FieldAudio, pair.Audio.Stem),
				logging.String(logging.FieldChapter, pair.Chapter.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "no subtitles for this chapter"),
				logging.String(logging.FieldErrorHint, "rerun to retry; existing subtitles are kept"),
			)
			continue
		}
		row.Status = StatusWritten
	}
}

func (p *Pipeline) alignOne(ctx context.Context, aligner Aligner, pair matcher.Pair, lang string, pad time.Duration, dest string) error {
	ctx = services.WithAudio(ctx, pair.Audio.Stem)
	logger := logging.WithContext(ctx, p.logger)
	start := time.Now()

	cues, err := aligner.Align(ctx, pair.Audio.Path, pair.Chapter.Text, lang)
	if err != nil {
		return err
	}
	if len(cues) == 0 {
		return services.Wrap(services.ErrExternalTool, "align", "cues", "aligner returned no cues", nil)
	}
	cues = subtitles.PadEnds(cues, pad)
	if err := subtitles.Write(dest, cues); err != nil {
		return services.Wrap(services.ErrTransient, "align", "write", "cannot write subtitles", err)
	}
	logger.Info("subtitles written",
		logging.String(logging.FieldChapter, pair.Chapter.ID),
		logging.Int("cues", len(cues)),
		logging.String("path", dest),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// renderVideos muxes a cover video for every subtitle written by this run.
func (p *Pipeline) renderVideos(ctx context.Context, book *ebook.Book, files []audio.File, report *Report) {
	if !p.cfg.Video.Enabled || report.Count(StatusWritten) == 0 || ctx.Err() != nil {
		return
	}
	ctx = services.WithStage(ctx, "video")
	logger := logging.WithContext(ctx, p.logger)

	if p.deps.Muxer == nil {
		report.VideoSkipped = "no video muxer configured"
		logging.WarnWithContext(logger, "video step skipped", "video_unavailable",
			logging.String(logging.FieldImpact, "no video output; subtitles unaffected"),
			logging.String(logging.FieldErrorHint, "check video.ffmpeg_binary"),
		)
		return
	}

	coverDir := filepath.Join(p.cfg.Paths.WorkDir, report.RunID)
	defer func() {
		if err := os.RemoveAll(coverDir); err != nil {
			logger.Debug("cover cleanup failed", logging.Error(err))
		}
	}()
	cover, err := video.ExtractCover(ctx, book, files, coverDir)
	if err != nil {
		report.VideoSkipped = err.Error()
		logging.WarnWithContext(logger, "video step skipped", "cover_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no video output; subtitles unaffected"),
			logging.String(logging.FieldErrorHint, "add a cover image to the e-book or embed artwork in the audio files"),
		)
		return
	}
	logger.Debug("cover extracted",
		logging.Args(logging.DecisionAttrs("cover_source", cover.Source, filepath.Base(cover.Path))...)...)

	for i := range report.Rows {
		row := &report.Rows[i]
		if row.Status != StatusWritten {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		out := filepath.Join(report.OutputDir, row.Audio.Stem+video.Extension)
		err := p.deps.Muxer.Mux(ctx, video.Request{
			CoverPath:    cover.Path,
			AudioPath:    row.Audio.Path,
			SubtitlePath: row.SubtitlePath,
			OutputPath:   out,
			Language:     report.Language,
		})
		if err != nil {
			row.VideoErr = err
			logging.WarnWithContext(logger, "video mux failed", "video_mux_failed",
				logging.String(logging.FieldAudio, row.Audio.Stem),
				logging.Error(err),
				logging.String(logging.FieldImpact, "subtitles written without video"),
				logging.String(logging.FieldErrorHint, "check the ffmpeg output in the log file"),
			)
			continue
		}
		row.VideoPath = out
	}
}
