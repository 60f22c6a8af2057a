package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSegmenter(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateAlignment(); err != nil {
		return err
	}
	if err := c.validateOpenAI(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSegmenter() error {
	if c.Segmenter.MaxLineLength <= 0 {
		return errors.New("segmenter.max_line_length must be positive")
	}
	return nil
}

func (c *Config) validateMatching() error {
	if c.Matching.MinScore < 0 || c.Matching.MinScore > 100 {
		return errors.New("matching.min_score must be between 0 and 100")
	}
	if c.Matching.MinMargin < 0 || c.Matching.MinMargin > 100 {
		return errors.New("matching.min_margin must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Backend {
	case BackendWhisperX, BackendOpenAI:
	default:
		return fmt.Errorf("transcription.backend must be %q or %q", BackendWhisperX, BackendOpenAI)
	}
	if c.Transcription.PoolSize <= 0 {
		return errors.New("transcription.pool_size must be positive")
	}
	switch c.Transcription.VADMethod {
	case "silero", "pyannote":
	default:
		return errors.New("transcription.vad_method must be silero or pyannote")
	}
	return nil
}

func (c *Config) validateAlignment() error {
	if c.Alignment.PadSeconds < 0 {
		return errors.New("alignment.pad_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateOpenAI() error {
	if c.Transcription.Backend != BackendOpenAI {
		return nil
	}
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("openai.api_key is required when transcription.backend is openai. Set OPENAI_API_KEY env var or edit %s (create with 'booksync config init')", defaultPath)
	}
	if c.OpenAI.RequestsPerMinute <= 0 {
		return errors.New("openai.requests_per_minute must be positive")
	}
	if c.OpenAI.MaxRetries < 0 {
		return errors.New("openai.max_retries must be >= 0")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full URL, got %q", topic)
	}
	return nil
}
