package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir string `toml:"work_dir"`
	LogDir  string `toml:"log_dir"`
}

// Book describes how the e-book and the audio collection are read.
type Book struct {
	// Language is the ISO 639-1 code of the book. Empty means detect from text.
	Language        string   `toml:"language"`
	AudioExtensions []string `toml:"audio_extensions"`
	// OutputSubdir is created inside the audio directory when no output
	// directory is given on the command line.
	OutputSubdir string `toml:"output_subdir"`
	// CacheFile is the transcript cache database, relative to the audio directory.
	CacheFile string `toml:"cache_file"`
}

// Segmenter contains the line splitting rules for chapter text.
type Segmenter struct {
	MaxLineLength      int    `toml:"max_line_length"`
	SentenceDelimiters string `toml:"sentence_delimiters"`
	ClauseDelimiters   string `toml:"clause_delimiters"`
}

// Matching contains chapter matching thresholds and strategy switches.
type Matching struct {
	TOCEnabled     bool `toml:"toc_enabled"`
	AutoConfirm    bool `toml:"auto_confirm"`
	UseAudioTitles bool `toml:"use_audio_titles"`
	// MinScore is the best similarity (0-100) below which a transcript match is flagged.
	MinScore int `toml:"min_score"`
	// MinMargin is the best/second-best gap below which a transcript match is flagged.
	MinMargin int `toml:"min_margin"`
}

// Transcription configures the rough speech-to-text pass used for matching.
type Transcription struct {
	Backend     string `toml:"backend"`
	Model       string `toml:"model"`
	PoolSize    int    `toml:"pool_size"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	VADMethod   string `toml:"vad_method"`
	HFToken     string `toml:"hf_token"`
}

// Alignment configures forced alignment and cue padding.
type Alignment struct {
	Model       string  `toml:"model"`
	CUDAEnabled bool    `toml:"cuda_enabled"`
	PadSeconds  float64 `toml:"pad_seconds"`
}

// OpenAI contains settings for the hosted transcription backend.
type OpenAI struct {
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	MaxRetries        int    `toml:"max_retries"`
}

// Video controls the optional cover + audio + subtitle video mux.
type Video struct {
	Enabled      bool   `toml:"enabled"`
	FFmpegBinary string `toml:"ffmpeg_binary"`
}

// Notifications configures the optional ntfy run summary.
type Notifications struct {
	// NtfyTopic is the full topic URL, e.g. https://ntfy.sh/my-books.
	NtfyTopic string `toml:"ntfy_topic"`
	// RequestTimeout is in seconds.
	RequestTimeout int `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for booksync.
//
// Configuration sections by subsystem:
//   - Paths: work and log directories
//   - Book: language, audio discovery, output and cache locations
//   - Segmenter: line length and delimiter sets for chapter text
//   - Matching: TOC strategy switches and transcript confidence thresholds
//   - Transcription: rough transcription backend and worker pool
//   - Alignment: forced alignment model and cue padding
//   - OpenAI: hosted transcription credentials and rate limits
//   - Video: optional cover video muxing
//   - Notifications: ntfy run summaries
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Book          Book          `toml:"book"`
	Segmenter     Segmenter     `toml:"segmenter"`
	Matching      Matching      `toml:"matching"`
	Transcription Transcription `toml:"transcription"`
	Alignment     Alignment     `toml:"alignment"`
	OpenAI        OpenAI        `toml:"openai"`
	Video         Video         `toml:"video"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("booksync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the work and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// OutputDir returns the default subtitle directory for an audio directory.
func (c *Config) OutputDir(audioDir string) string {
	return filepath.Join(audioDir, c.Book.OutputSubdir)
}

// CachePath returns the transcript cache location for an audio directory.
func (c *Config) CachePath(audioDir string) string {
	if filepath.IsAbs(c.Book.CacheFile) {
		return c.Book.CacheFile
	}
	return filepath.Join(audioDir, c.Book.CacheFile)
}

// FFmpegBinary returns the ffmpeg executable used for video muxing.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Video.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
