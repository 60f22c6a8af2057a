package video

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"booksync/internal/fileutil"
	langpkg "booksync/internal/language"
	"booksync/internal/logging"
	"booksync/internal/services"
)

// Extension is the container written by the muxer.
const Extension = ".mp4"

type commandRunner func(ctx context.Context, name string, args ...string) error

// Request describes one video to render.
type Request struct {
	CoverPath    string
	AudioPath    string
	SubtitlePath string
	OutputPath   string
	// Language is tagged on the subtitle track.
	Language string
}

// Muxer renders videos with ffmpeg.
type Muxer struct {
	binary string
	logger *slog.Logger
	run    commandRunner
}

// NewMuxer constructs a muxer using the given ffmpeg binary.
func NewMuxer(binary string, logger *slog.Logger) *Muxer {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &Muxer{
		binary: binary,
		logger: logging.NewComponentLogger(logger, "video"),
		run:    defaultCommandRunner,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (m *Muxer) WithCommandRunner(r commandRunner) {
	if m != nil && r != nil {
		m.run = r
	}
}

// Mux renders req.OutputPath. The output appears only after ffmpeg succeeds.
func (m *Muxer) Mux(ctx context.Context, req Request) error {
	if m == nil {
		return fmt.Errorf("muxer not initialized")
	}
	for label, path := range map[string]string{
		"cover":    req.CoverPath,
		"audio":    req.AudioPath,
		"subtitle": req.SubtitlePath,
	} {
		if strings.TrimSpace(path) == "" {
			return services.Wrap(services.ErrValidation, "video", "inputs", label+" path is required", nil)
		}
		if _, err := os.Stat(path); err != nil {
			return services.Wrap(services.ErrNotFound, "video", "inputs", label+" file not found", err)
		}
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return services.Wrap(services.ErrValidation, "video", "inputs", "output path is required", nil)
	}

	tmpPath := fileutil.TempSibling(req.OutputPath)
	args := buildArgs(req, tmpPath)

	m.logger.Debug("executing ffmpeg",
		logging.String("output", req.OutputPath),
		logging.String("language", req.Language),
	)

	if err := m.run(ctx, m.binary, args...); err != nil {
		_ = os.Remove(tmpPath)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrExternalTool, "video", "ffmpeg", "ffmpeg mux failed", err)
	}
	if _, err := os.Stat(tmpPath); err != nil {
		return services.Wrap(services.ErrExternalTool, "video", "ffmpeg", "ffmpeg did not produce output", err)
	}
	if err := os.Rename(tmpPath, req.OutputPath); err != nil {
		_ = os.Remove(tmpPath)
		return services.Wrap(services.ErrTransient, "video", "finalize", "failed to move video into place", err)
	}

	m.logger.Info("video written",
		logging.String(logging.FieldEventType, "video_mux_complete"),
		logging.String("output", req.OutputPath),
	)
	return nil
}

func buildArgs(req Request, outputPath string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-loop", "1",
		"-i", req.CoverPath,
		"-i", req.AudioPath,
		"-i", req.SubtitlePath,
		"-map", "0:v",
		"-map", "1:a",
		"-map", "2:s",
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-c:s", "mov_text",
		"-metadata:s:s:0", "language=" + langpkg.ToISO3(req.Language),
		"-shortest",
		outputPath,
	}
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
