package main

import (
	"bufio"
	"context"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"booksync/internal/config"
	"booksync/internal/logging"
	"booksync/internal/matcher"
	"booksync/internal/pipeline"
	"booksync/internal/services/openaistt"
	"booksync/internal/services/stablets"
	"booksync/internal/services/whisperx"
	"booksync/internal/video"
)

func buildDependencies(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) pipeline.Dependencies {
	deps := pipeline.Dependencies{
		Transcriber: newTranscriber(cfg, logger),
		Aligner:     alignerProvider(cfg, logger),
		Logger:      logger,
	}
	if cfg.Video.Enabled {
		deps.Muxer = video.NewMuxer(cfg.FFmpegBinary(), logger)
	}
	if !cfg.Matching.AutoConfirm && stdinIsTerminal() {
		deps.Confirmer = newPromptConfirmer(bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout())
	}
	return deps
}

func newTranscriber(cfg *config.Config, logger *slog.Logger) pipeline.Transcriber {
	if cfg.Transcription.Backend == config.BackendOpenAI {
		return openaistt.New(openaistt.Config{
			APIKey:            cfg.OpenAI.APIKey,
			BaseURL:           cfg.OpenAI.BaseURL,
			Model:             cfg.OpenAI.Model,
			RequestsPerMinute: cfg.OpenAI.RequestsPerMinute,
			MaxRetries:        cfg.OpenAI.MaxRetries,
		})
	}
	svc := whisperx.NewService(whisperx.Config{
		Model:       cfg.Transcription.Model,
		CUDAEnabled: cfg.Transcription.CUDAEnabled,
		VADMethod:   cfg.Transcription.VADMethod,
		HFToken:     cfg.Transcription.HFToken,
		WorkDir:     filepath.Join(cfg.Paths.WorkDir, "transcribe"),
	})
	if cfg.Transcription.VADMethod == whisperx.VADMethodPyannote && cfg.Transcription.HFToken == "" {
		logging.WarnWithContext(logger, "pyannote VAD needs a Hugging Face token", "vad_fallback",
			logging.String(logging.FieldErrorHint, "set transcription.hf_token or HF_TOKEN"),
			logging.String(logging.FieldImpact, "transcribing with silero VAD"),
		)
		svc.SetVADMethod(whisperx.VADMethodSilero)
	}
	return svc
}

// alignerProvider starts one stable-ts worker and waits for its model, so a
// broken install fails once instead of once per chapter.
func alignerProvider(cfg *config.Config, logger *slog.Logger) pipeline.AlignerProvider {
	return func(ctx context.Context) (pipeline.Aligner, error) {
		aligner := stablets.New(stablets.Config{
			Model:       cfg.Alignment.Model,
			CUDAEnabled: cfg.Alignment.CUDAEnabled,
			WorkDir:     filepath.Join(cfg.Paths.WorkDir, "align"),
		})
		logger.Info("loading alignment model", logging.String("model", aligner.Model()))
		if err := aligner.Prepare(ctx); err != nil {
			_ = aligner.Close()
			return nil, err
		}
		return aligner, nil
	}
}

var _ matcher.Confirmer = (*promptConfirmer)(nil)
