package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"booksync/internal/config"
	"booksync/internal/matcher"
	"booksync/internal/pipeline"
	"booksync/internal/services"
	"booksync/internal/subtitles"
	"booksync/internal/testsupport"
	"booksync/internal/transcripts"
	"booksync/internal/video"
)

const (
	chapterOne = "OEBPS/text/ch01.xhtml"
	chapterTwo = "OEBPS/text/ch02.xhtml"
)

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

type fakeTranscriber struct {
	mu     sync.Mutex
	texts  map[string]string
	fail   map[string]error
	hold   time.Duration
	calls  int
	active int
	peak   int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audioPath, _ string) (string, error) {
	stem := stemOf(audioPath)
	f.mu.Lock()
	f.calls++
	f.active++
	f.peak = max(f.peak, f.active)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()
	if f.hold > 0 {
		time.Sleep(f.hold)
	}
	if err := f.fail[stem]; err != nil {
		return "", err
	}
	return f.texts[stem], nil
}

func (f *fakeTranscriber) Backend() string { return "fake" }
func (f *fakeTranscriber) Model() string   { return "fake-model" }

func (f *fakeTranscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAligner struct {
	fail   map[string]error
	calls  []string
	closed bool
}

// Align emits one cue per line, two seconds apart, each one second long.
func (f *fakeAligner) Align(_ context.Context, audioPath, text, _ string) ([]subtitles.Cue, error) {
	stem := stemOf(audioPath)
	f.calls = append(f.calls, stem)
	if err := f.fail[stem]; err != nil {
		return nil, err
	}
	var cues []subtitles.Cue
	for i, line := range strings.Split(text, "\n") {
		start := time.Duration(i) * 2 * time.Second
		cues = append(cues, subtitles.Cue{Index: i + 1, Start: start, End: start + time.Second, Text: line})
	}
	return cues, nil
}

func (f *fakeAligner) Close() error {
	f.closed = true
	return nil
}

type alignerSource struct {
	aligner *fakeAligner
	starts  int
}

func (s *alignerSource) provide(context.Context) (pipeline.Aligner, error) {
	s.starts++
	return s.aligner, nil
}

type fakeMuxer struct {
	requests []video.Request
}

func (m *fakeMuxer) Mux(_ context.Context, req video.Request) error {
	m.requests = append(m.requests, req)
	return nil
}

type fixture struct {
	cfg         *config.Config
	ebook       string
	audioDir    string
	transcriber *fakeTranscriber
	aligner     *alignerSource
	muxer       *fakeMuxer
	confirmer   matcher.Confirmer
}

type bookOptions struct {
	nav   bool
	cover []byte
}

func newFixture(t *testing.T, book bookOptions, stems []string, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	ebookPath := filepath.Join(t.TempDir(), "book.epub")
	testsupport.WriteEPUB(t, ebookPath, testsupport.EPUB{
		Title:    "猫",
		Language: "ja",
		Nav:      book.nav,
		Chapters: []testsupport.EPUBChapter{
			{Name: "ch01.xhtml", Title: "第一章", Paragraphs: []string{"吾輩は猫である。名前はまだ無い。"}},
			{Name: "ch02.xhtml", Title: "第二章", Paragraphs: []string{"親譲りの無鉄砲で小供の時から損ばかりしている。"}},
		},
		Cover:         book.cover,
		CoverDeclared: len(book.cover) > 0,
	})
	texts := map[string]string{}
	if len(stems) == 2 {
		texts[stems[0]] = "吾輩は猫である。名前はまだ無い。"
		texts[stems[1]] = "親譲りの無鉄砲で小供の時から損ばかりしている。"
	}
	return &fixture{
		cfg:         cfg,
		ebook:       ebookPath,
		audioDir:    testsupport.WriteAudioDir(t, ".mp3", stems...),
		transcriber: &fakeTranscriber{texts: texts},
		aligner:     &alignerSource{aligner: &fakeAligner{}},
		muxer:       &fakeMuxer{},
	}
}

func (f *fixture) run(t *testing.T, matchOnly bool) (*pipeline.Report, error) {
	t.Helper()
	p, err := pipeline.New(f.cfg, pipeline.Dependencies{
		Transcriber: f.transcriber,
		Aligner:     f.aligner.provide,
		Muxer:       f.muxer,
		Confirmer:   f.confirmer,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p.Run(context.Background(), pipeline.Request{
		EbookPath: f.ebook,
		AudioDir:  f.audioDir,
		MatchOnly: matchOnly,
	})
}

func (f *fixture) outputDir() string {
	return f.cfg.OutputDir(f.audioDir)
}

func TestRunMatchesByTableOfContents(t *testing.T) {
	f := newFixture(t, bookOptions{nav: true}, []string{"第一章", "第二章"})

	report, err := f.run(t, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Strategy != pipeline.StrategyTOC {
		t.Fatalf("strategy = %q (%s), want toc", report.Strategy, report.FallbackReason)
	}
	if f.transcriber.Calls() != 0 {
		t.Fatalf("transcriber called %d times for a toc match", f.transcriber.Calls())
	}
	if report.Language != "ja" || report.Title != "猫" {
		t.Fatalf("report language/title = %q/%q", report.Language, report.Title)
	}
	wantChapters := []string{chapterOne, chapterTwo}
	for i, row := range report.Rows {
		if row.Status != pipeline.StatusWritten {
			t.Fatalf("row %d status = %s (%v)", i, row.Status, row.Err)
		}
		if row.ChapterID != wantChapters[i] {
			t.Fatalf("row %d chapter = %q, want %q", i, row.ChapterID, wantChapters[i])
		}
		if row.TitleScore != 100 || row.Best != 0 || row.Second != 0 {
			t.Fatalf("row %d scores title=%d best=%d second=%d, want title score only", i, row.TitleScore, row.Best, row.Second)
		}
	}

	store, err := transcripts.Open(f.cfg.CachePath(f.audioDir))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer store.Close()
	matches, err := store.Matches(context.Background())
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if m := matches["第一章"]; m.TitleScore != 100 || m.Best != 0 {
		t.Fatalf("cached toc match = %+v, want title score only", m)
	}

	cues, err := subtitles.ReadFile(filepath.Join(f.outputDir(), "第一章.srt"))
	if err != nil {
		t.Fatalf("read subtitles: %v", err)
	}
	if len(cues) != 3 {
		t.Fatalf("expected 3 cues, got %d: %+v", len(cues), cues)
	}
	if cues[1].Text != "吾輩は猫である。" {
		t.Fatalf("unexpected cue text %q", cues[1].Text)
	}
	if cues[0].End != 1250*time.Millisecond {
		t.Fatalf("first cue end = %v, want padded 1.25s", cues[0].End)
	}
	if f.aligner.starts != 1 || !f.aligner.aligner.closed {
		t.Fatalf("aligner starts=%d closed=%v, want one closed aligner", f.aligner.starts, f.aligner.aligner.closed)
	}
}

func TestRunFallsBackToTranscripts(t *testing.T) {
	f := newFixture(t, bookOptions{}, []string{"track01", "track02"}, testsupport.WithoutTOC())

	report, err := f.run(t, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Strategy != pipeline.StrategyTranscript || report.FallbackReason == "" {
		t.Fatalf("strategy = %q reason = %q", report.Strategy, report.FallbackReason)
	}
	if report.Rows[0].ChapterID != chapterOne || report.Rows[1].ChapterID != chapterTwo {
		t.Fatalf("unexpected chapters %q, %q", report.Rows[0].ChapterID, report.Rows[1].ChapterID)
	}
	for _, row := range report.Rows {
		if row.Best <= row.Second {
			t.Fatalf("%s best %d not above second %d", row.Audio.Stem, row.Best, row.Second)
		}
	}

	store, err := transcripts.Open(f.cfg.CachePath(f.audioDir))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer store.Close()
	entry, err := store.Get(context.Background(), "track01")
	if err != nil || entry == nil {
		t.Fatalf("expected cached transcript, got %v, %v", entry, err)
	}
	if entry.Backend != "fake" || entry.Model != "fake-model" {
		t.Fatalf("unexpected cache entry %+v", entry)
	}
	matches, err := store.Matches(context.Background())
	if err != nil {
		t.Fatalf("matches: %v", err)
	}
	if matches["track02"].ChapterID != chapterTwo || matches["track02"].Strategy != transcripts.StrategyTranscript {
		t.Fatalf("unexpected recorded match %+v", matches["track02"])
	}
}

func TestRunReusesCachedTranscripts(t *testing.T) {
	f := newFixture(t, bookOptions{}, []string{"track01", "track02"}, testsupport.WithoutTOC())
	if _, err := f.run(t, false); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := os.Remove(filepath.Join(f.outputDir(), "track01.srt")); err != nil {
		t.Fatalf("remove subtitle: %v", err)
	}

	f.transcriber = &fakeTranscriber{}
	report, err := f.run(t, false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if f.transcriber.Calls() != 0 {
		t.Fatalf("transcriber called %d times despite cache", f.transcriber.Calls())
	}
	if report.Rows[0].Status != pipeline.StatusWritten || report.Rows[1].Status != pipeline.StatusSkipped {
		t.Fatalf("statuses = %s, %s", report.Rows[0].Status, report.Rows[1].Status)
	}
}

func TestRunSkipsExistingSubtitles(t *testing.T) {
	f := newFixture(t, bookOptions{}, []string{"track01", "track02"}, testsupport.WithoutTOC())
	if _, err := f.run(t, false); err != nil {
		t.Fatalf("first run: %v", err)
	}

	f.aligner = &alignerSource{aligner: &fakeAligner{}}
	report, err := f.run(t, false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := report.Count(pipeline.StatusSkipped); got != 2 {
		t.Fatalf("skipped = %d, want 2", got)
	}
	if f.aligner.starts != 0 {
		t.Fatalf("aligner started %d times with nothing to do", f.aligner.starts)
	}
	if report.Rows[0].ChapterID != chapterOne || report.Rows[0].Strategy != pipeline.StrategyTranscript {
		t.Fatalf("skipped row missing cached match: %+v", report.Rows[0])
	}
}

func TestRunRecordsAlignmentFailure(t *testing.T) {
	f := newFixture(t, bookOptions{}, []string{"track01", "track02"}, testsupport.WithoutTOC())
	f.aligner.aligner.fail = map[string]error{
		"track02": services.Wrap(services.ErrExternalTool, "align", "worker", "boom", nil),
	}

	report, err := f.run(t, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.HasFailures() {
		t.Fatal("expected failures")
	}
	if report.Rows[0].Status != pipeline.StatusWritten {
		t.Fatalf("track01 status = %s", report.Rows[0].Status)
	}
	failed := report.Rows[1]
	if failed.Status != pipeline.StatusFailed || !errors.Is(failed.Err, services.ErrExternalTool) {
		t.Fatalf("track02 row = %+v", failed)
	}
	if _, err := os.Stat(failed.SubtitlePath); !os.IsNotExist(err) {
		t.Fatalf("failed chapter left a subtitle file: %v", err)
	}
}

func TestRunContinuesAfterTranscriptionFailure(t *testing.T) {
	f := newFixture(t, bookOptions{}, []string{"track01", "track02"}, testsupport.WithoutTOC())
	f.transcriber.fail = map[string]error{"track02": errors.New("backend down")}

	report, err := f.run(t, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Rows[1].Status != pipeline.StatusFailed || report.Rows[1].Err == nil {
		t.Fatalf("track02 row = %+v", report.Rows[1])
	}
	if report.Rows[0].Status != pipeline.StatusWritten {
		t.Fatalf("track01 status = %s", report.Rows[0].Status)
	}
	if calls := f.aligner.aligner.calls; len(calls) != 1 || calls[0] != "track01" {
		t.Fatalf("aligner calls = %v", calls)
	}
}

func TestRunFallsBackWhenMappingRejected(t *testing.T) {
	f := newFixture(t, bookOptions{nav: true}, []string{"第一章", "第二章"})
	f.cfg.Matching.AutoConfirm = false
	var shown int
	f.confirmer = matcher.ConfirmerFunc(func(_ context.Context, proposals []matcher.Proposal) (bool, error) {
		shown = len(proposals)
		return false, nil
	})

	report, err := f.run(t, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if shown != 2 {
		t.Fatalf("confirmer saw %d proposals, want 2", shown)
	}
	if report.Strategy != pipeline.StrategyTranscript || report.FallbackReason != "toc mapping rejected" {
		t.Fatalf("strategy = %q reason = %q", report.Strategy, report.FallbackReason)
	}
	if f.transcriber.Calls() != 2 {
		t.Fatalf("transcriber calls = %d, want 2", f.transcriber.Calls())
	}
}

func TestRunMatchOnlyWritesNothing(t *testing.T) {
	f := newFixture(t, bookOptions{}, []string{"track01", "track02"}, testsupport.WithoutTOC())

	report, err := f.run(t, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := report.Count(pipeline.StatusMatched); got != 2 {
		t.Fatalf("matched = %d, want 2", got)
	}
	if f.aligner.starts != 0 {
		t.Fatalf("aligner started during a match-only run")
	}
	if _, err := os.Stat(f.outputDir()); !os.IsNotExist(err) {
		t.Fatalf("match-only run created the output directory: %v", err)
	}
}

func TestRunFatalErrors(t *testing.T) {
	t.Run("no audio", func(t *testing.T) {
		f := newFixture(t, bookOptions{}, nil)
		_, err := f.run(t, false)
		if !errors.Is(err, services.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
	t.Run("unreadable ebook", func(t *testing.T) {
		f := newFixture(t, bookOptions{}, []string{"track01"})
		testsupport.WriteFile(t, f.ebook, 64)
		_, err := f.run(t, false)
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})
	t.Run("locked output", func(t *testing.T) {
		f := newFixture(t, bookOptions{}, []string{"track01", "track02"}, testsupport.WithoutTOC())
		if err := os.MkdirAll(f.outputDir(), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		held := flock.New(filepath.Join(f.outputDir(), pipeline.LockFileName))
		ok, err := held.TryLock()
		if err != nil || !ok {
			t.Fatalf("hold lock: %v %v", ok, err)
		}
		defer held.Unlock()

		_, err = f.run(t, false)
		if !errors.Is(err, pipeline.ErrLocked) {
			t.Fatalf("expected ErrLocked, got %v", err)
		}
		if f.transcriber.Calls() != 0 {
			t.Fatal("locked run should not transcribe")
		}
	})
}

func TestRunRendersVideo(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	f := newFixture(t, bookOptions{nav: true, cover: png}, []string{"第一章", "第二章"}, testsupport.WithVideo())

	report, err := f.run(t, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.VideoSkipped != "" {
		t.Fatalf("video skipped: %s", report.VideoSkipped)
	}
	if len(f.muxer.requests) != 2 {
		t.Fatalf("mux requests = %d, want 2", len(f.muxer.requests))
	}
	req := f.muxer.requests[0]
	if filepath.Base(req.CoverPath) != "cover.png" || req.Language != "ja" {
		t.Fatalf("unexpected mux request %+v", req)
	}
	want := filepath.Join(f.outputDir(), "第一章"+video.Extension)
	if report.Rows[0].VideoPath != want {
		t.Fatalf("video path = %q, want %q", report.Rows[0].VideoPath, want)
	}
}

func TestRunSkipsVideoWithoutCover(t *testing.T) {
	f := newFixture(t, bookOptions{nav: true}, []string{"第一章", "第二章"}, testsupport.WithVideo())

	report, err := f.run(t, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.VideoSkipped == "" {
		t.Fatal("expected the video step to be skipped")
	}
	if len(f.muxer.requests) != 0 {
		t.Fatalf("muxer called %d times without a cover", len(f.muxer.requests))
	}
	if report.HasFailures() {
		t.Fatal("a skipped video step must not fail chapters")
	}
}

func TestRunBoundsTranscriptionPool(t *testing.T) {
	stems := []string{"01", "02", "03", "04", "05", "06"}
	f := newFixture(t, bookOptions{}, stems, testsupport.WithoutTOC())
	f.transcriber.hold = 30 * time.Millisecond
	for _, stem := range stems {
		f.transcriber.texts[stem] = "吾輩は猫である。名前はまだ無い。"
	}

	report, err := f.run(t, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.cfg.Transcription.PoolSize != 2 {
		t.Fatalf("fixture pool size = %d, want 2", f.cfg.Transcription.PoolSize)
	}
	if f.transcriber.peak > 2 {
		t.Fatalf("peak concurrent transcriptions = %d, want <= 2", f.transcriber.peak)
	}
	if f.transcriber.Calls() != len(stems) {
		t.Fatalf("transcriber calls = %d, want %d", f.transcriber.Calls(), len(stems))
	}
	if len(report.Rows) != len(stems) {
		t.Fatalf("rows = %d, want %d", len(report.Rows), len(stems))
	}
	seen := map[string]bool{}
	for _, row := range report.Rows {
		if seen[row.Audio.Stem] {
			t.Fatalf("duplicate row for %s", row.Audio.Stem)
		}
		seen[row.Audio.Stem] = true
		if row.ChapterID != chapterOne {
			t.Errorf("%s matched %q, want %q", row.Audio.Stem, row.ChapterID, chapterOne)
		}
	}
}

func TestRunWithAllSubtitlesPresentCreatesNoCache(t *testing.T) {
	f := newFixture(t, bookOptions{}, []string{"track01", "track02"}, testsupport.WithoutTOC())
	if err := os.MkdirAll(f.outputDir(), 0o755); err != nil {
		t.Fatalf("mkdir output: %v", err)
	}
	for _, stem := range []string{"track01", "track02"} {
		if err := os.WriteFile(filepath.Join(f.outputDir(), stem+".srt"), []byte("1\n00:00:00,000 --> 00:00:01,000\nx\n"), 0o644); err != nil {
			t.Fatalf("write subtitle: %v", err)
		}
	}

	report, err := f.run(t, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := report.Count(pipeline.StatusSkipped); got != 2 {
		t.Fatalf("skipped = %d, want 2", got)
	}
	if _, err := os.Stat(f.cfg.CachePath(f.audioDir)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no cache file after an all-skipped run, stat err = %v", err)
	}
	if f.transcriber.Calls() != 0 || f.aligner.starts != 0 {
		t.Fatalf("expected no transcription or alignment, got %d calls and %d starts", f.transcriber.Calls(), f.aligner.starts)
	}
}
