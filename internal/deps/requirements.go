package deps

import "booksync/internal/config"

// Requirements lists the external tools a sync run needs under cfg. uvx is
// only optional when the hosted backend transcribes; alignment still needs
// it. FFmpeg is required only when video output is enabled.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{
			Name:        "uvx",
			Command:     "uvx",
			Description: "Runs stable-ts alignment and WhisperX transcription",
		},
	}
	ffmpeg := "ffmpeg"
	videoEnabled := false
	if cfg != nil {
		ffmpeg = cfg.FFmpegBinary()
		videoEnabled = cfg.Video.Enabled
	}
	reqs = append(reqs, Requirement{
		Name:        "FFmpeg",
		Command:     ffmpeg,
		Description: "Muxes cover video output",
		Optional:    !videoEnabled,
	})
	return reqs
}
