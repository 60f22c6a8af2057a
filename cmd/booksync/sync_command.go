package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"booksync/internal/config"
	"booksync/internal/logging"
	"booksync/internal/notifications"
	"booksync/internal/pipeline"
	"booksync/internal/preflight"
)

type syncOptions struct {
	output  string
	yes     bool
	noTOC   bool
	video   bool
	workDir string
}

// apply layers command line overrides onto a copy of the loaded config.
func (o syncOptions) apply(cfg *config.Config) error {
	if o.yes {
		cfg.Matching.AutoConfirm = true
	}
	if o.noTOC {
		cfg.Matching.TOCEnabled = false
	}
	if o.video {
		cfg.Video.Enabled = true
	}
	if dir := strings.TrimSpace(o.workDir); dir != "" {
		expanded, err := config.ExpandPath(dir)
		if err != nil {
			return fmt.Errorf("resolve work directory: %w", err)
		}
		cfg.Paths.WorkDir = expanded
	}
	return nil
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var opts syncOptions

	cmd := &cobra.Command{
		Use:   "sync <ebook> <audio-dir>",
		Short: "Align e-book chapters to audiobook files and write SRT subtitles",
		Long: `Match every audio file to an e-book chapter, force-align the chapter text to
the narration, and write <stem>.srt next to the audio (or into --output).

Audio files whose subtitle already exists are skipped, so an interrupted run
can simply be repeated.`,
		Args: exactArgs(2, "provide the e-book and the audio directory. Example: booksync sync book.epub ./audio"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, ctx, args, opts, false)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Subtitle output directory (default <audio-dir>/<book.output_subdir>)")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Accept the table of contents mapping without prompting")
	cmd.Flags().BoolVar(&opts.noTOC, "no-toc", false, "Skip table of contents matching and match by transcript")
	cmd.Flags().BoolVar(&opts.video, "video", false, "Also render <stem>.mp4 with the cover image and subtitles")
	cmd.Flags().StringVar(&opts.workDir, "work-dir", "", "Scratch directory for transcription and alignment")
	return cmd
}

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var opts syncOptions

	cmd := &cobra.Command{
		Use:   "match <ebook> <audio-dir>",
		Short: "Show which chapter each audio file matches without aligning",
		Long: `Run chapter matching only and print the best and second best scores.
A best score below matching.min_score, or a second best within
matching.min_margin of it, means the match may be wrong.`,
		Args: exactArgs(2, "provide the e-book and the audio directory. Example: booksync match book.epub ./audio"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, ctx, args, opts, true)
		},
	}

	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Accept the table of contents mapping without prompting")
	cmd.Flags().BoolVar(&opts.noTOC, "no-toc", false, "Skip table of contents matching and match by transcript")
	cmd.Flags().StringVar(&opts.workDir, "work-dir", "", "Scratch directory for transcription")
	return cmd
}

func runSync(cmd *cobra.Command, ctx *commandContext, args []string, opts syncOptions, matchOnly bool) error {
	loaded, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg := *loaded
	if err := opts.apply(&cfg); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ebookPath, audioDir, err := resolveInputs(args[0], args[1])
	if err != nil {
		return err
	}
	outputDir := strings.TrimSpace(opts.output)
	if outputDir != "" {
		if outputDir, err = config.ExpandPath(outputDir); err != nil {
			return fmt.Errorf("resolve output directory: %w", err)
		}
	}

	if failed := preflight.Failed(preflight.RunAll(cmd.Context(), &cfg, "")); len(failed) > 0 {
		msgs := make([]string, 0, len(failed))
		for _, r := range failed {
			msgs = append(msgs, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(msgs, "; "))
	}

	logger, err := ctx.newLogger(&cfg)
	if err != nil {
		return err
	}

	p, err := pipeline.New(&cfg, buildDependencies(cmd, &cfg, logger))
	if err != nil {
		return err
	}
	started := time.Now()
	report, runErr := p.Run(cmd.Context(), pipeline.Request{
		EbookPath: ebookPath,
		AudioDir:  audioDir,
		OutputDir: outputDir,
		MatchOnly: matchOnly,
	})
	if report != nil {
		printReport(cmd.OutOrStdout(), report, cfg.Matching, matchOnly)
	}
	if !matchOnly {
		notifyOutcome(cmd.Context(), notifications.NewService(&cfg), logger, report, runErr, time.Since(started))
	}
	if runErr != nil {
		return runErr
	}
	if report.HasFailures() {
		return fmt.Errorf("%d of %d audio files failed; see %s for details",
			report.Count(pipeline.StatusFailed), len(report.Rows), filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	}
	return nil
}

// notifyOutcome posts the run summary. Delivery problems are only logged.
func notifyOutcome(ctx context.Context, notifier notifications.Service, logger *slog.Logger, report *pipeline.Report, runErr error, elapsed time.Duration) {
	if errors.Is(runErr, context.Canceled) {
		return
	}
	var err error
	if runErr != nil {
		title := ""
		if report != nil {
			title = report.Title
		}
		err = notifier.NotifyError(ctx, runErr, title)
	} else {
		err = notifier.NotifySyncCompleted(ctx, notifications.Summary{
			Title:     report.Title,
			Written:   report.Count(pipeline.StatusWritten),
			Skipped:   report.Count(pipeline.StatusSkipped),
			Failed:    report.Count(pipeline.StatusFailed),
			Unmatched: report.Count(pipeline.StatusUnmatched),
			Duration:  elapsed,
		})
	}
	if err != nil {
		logging.WarnWithContext(logger, "notification not delivered", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no run summary on ntfy"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

func resolveInputs(ebookArg, audioArg string) (string, string, error) {
	ebookPath, err := config.ExpandPath(strings.TrimSpace(ebookArg))
	if err != nil {
		return "", "", fmt.Errorf("resolve e-book path: %w", err)
	}
	info, err := os.Stat(ebookPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "", "", fmt.Errorf("e-book %q not found", ebookPath)
	case err != nil:
		return "", "", fmt.Errorf("stat e-book: %w", err)
	case info.IsDir():
		return "", "", fmt.Errorf("e-book path %q is a directory", ebookPath)
	}

	audioDir, err := config.ExpandPath(strings.TrimSpace(audioArg))
	if err != nil {
		return "", "", fmt.Errorf("resolve audio directory: %w", err)
	}
	info, err = os.Stat(audioDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "", "", fmt.Errorf("audio directory %q not found", audioDir)
	case err != nil:
		return "", "", fmt.Errorf("stat audio directory: %w", err)
	case !info.IsDir():
		return "", "", fmt.Errorf("audio path %q is not a directory", audioDir)
	}
	return ebookPath, audioDir, nil
}
