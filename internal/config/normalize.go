package config

import (
	"fmt"
	"os"
	"strings"

	"booksync/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBook()
	c.normalizeSegmenter()
	c.normalizeTranscription()
	c.normalizeAlignment()
	c.normalizeOpenAI()
	c.normalizeVideo()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeBook() {
	c.Book.Language = strings.TrimSpace(c.Book.Language)
	if c.Book.Language == "" {
		if value, ok := os.LookupEnv("BOOKSYNC_LANGUAGE"); ok {
			c.Book.Language = strings.TrimSpace(value)
		}
	}
	if c.Book.Language != "" {
		if iso := language.ToISO2(c.Book.Language); iso != "" {
			c.Book.Language = iso
		}
	}

	exts := make([]string, 0, len(c.Book.AudioExtensions))
	seen := make(map[string]struct{}, len(c.Book.AudioExtensions))
	for _, ext := range c.Book.AudioExtensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultAudioExtensions...)
	}
	c.Book.AudioExtensions = exts

	c.Book.OutputSubdir = strings.TrimSpace(c.Book.OutputSubdir)
	if c.Book.OutputSubdir == "" {
		c.Book.OutputSubdir = defaultOutputSubdir
	}
	c.Book.CacheFile = strings.TrimSpace(c.Book.CacheFile)
	if c.Book.CacheFile == "" {
		c.Book.CacheFile = defaultCacheFile
	}
}

func (c *Config) normalizeSegmenter() {
	if c.Segmenter.MaxLineLength == 0 {
		c.Segmenter.MaxLineLength = defaultMaxLineLength
	}
	if strings.TrimSpace(c.Segmenter.SentenceDelimiters) == "" {
		c.Segmenter.SentenceDelimiters = defaultSentenceDelimiters
	}
	if strings.TrimSpace(c.Segmenter.ClauseDelimiters) == "" {
		c.Segmenter.ClauseDelimiters = defaultClauseDelimiters
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Backend = strings.ToLower(strings.TrimSpace(c.Transcription.Backend))
	if c.Transcription.Backend == "" {
		c.Transcription.Backend = defaultTranscriptionBackend
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultTranscriptionModel
	}
	if c.Transcription.PoolSize == 0 {
		c.Transcription.PoolSize = defaultTranscriptionPool
	}
	c.Transcription.VADMethod = strings.ToLower(strings.TrimSpace(c.Transcription.VADMethod))
	if c.Transcription.VADMethod == "" {
		c.Transcription.VADMethod = defaultVADMethod
	}
	c.Transcription.HFToken = strings.TrimSpace(c.Transcription.HFToken)
	if c.Transcription.HFToken == "" {
		if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			c.Transcription.HFToken = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.Transcription.HFToken = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeAlignment() {
	c.Alignment.Model = strings.TrimSpace(c.Alignment.Model)
	if c.Alignment.Model == "" {
		c.Alignment.Model = defaultAlignmentModel
	}
}

func (c *Config) normalizeOpenAI() {
	c.OpenAI.APIKey = strings.TrimSpace(c.OpenAI.APIKey)
	if c.OpenAI.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.OpenAI.APIKey = strings.TrimSpace(value)
		}
	}
	c.OpenAI.BaseURL = strings.TrimRight(strings.TrimSpace(c.OpenAI.BaseURL), "/")
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = defaultOpenAIBaseURL
	}
	c.OpenAI.Model = strings.TrimSpace(c.OpenAI.Model)
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = defaultOpenAIModel
	}
	if c.OpenAI.RequestsPerMinute == 0 {
		c.OpenAI.RequestsPerMinute = defaultOpenAIRequestsPerMin
	}
}

func (c *Config) normalizeVideo() {
	c.Video.FFmpegBinary = strings.TrimSpace(c.Video.FFmpegBinary)
	if c.Video.FFmpegBinary == "" {
		c.Video.FFmpegBinary = defaultFFmpegBinary
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
