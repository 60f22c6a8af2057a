package config

const (
	defaultConfigPath           = "~/.config/booksync/config.toml"
	defaultWorkDir              = "~/.local/share/booksync/work"
	defaultLogDir               = "~/.local/share/booksync/logs"
	defaultOutputSubdir         = "subtitles"
	defaultCacheFile            = "booksync-cache.db"
	defaultMaxLineLength        = 40
	defaultSentenceDelimiters   = "。？！…〜"
	defaultClauseDelimiters     = "、，,；;：:"
	defaultMinScore             = 70
	defaultMinMargin            = 10
	defaultTranscriptionBackend = "whisperx"
	defaultTranscriptionModel   = "tiny"
	defaultTranscriptionPool    = 8
	defaultVADMethod            = "silero"
	defaultAlignmentModel       = "large-v3"
	defaultPadSeconds           = 0.25
	defaultOpenAIBaseURL        = "https://api.openai.com/v1"
	defaultOpenAIModel          = "whisper-1"
	defaultOpenAIRequestsPerMin = 50
	defaultOpenAIMaxRetries     = 5
	defaultFFmpegBinary         = "ffmpeg"
	defaultNtfyRequestTimeout   = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Transcription backends.
const (
	BackendWhisperX = "whisperx"
	BackendOpenAI   = "openai"
)

var defaultAudioExtensions = []string{".mp3", ".m4a", ".m4b", ".flac", ".ogg", ".opus", ".wav"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
		},
		Book: Book{
			AudioExtensions: append([]string(nil), defaultAudioExtensions...),
			OutputSubdir:    defaultOutputSubdir,
			CacheFile:       defaultCacheFile,
		},
		Segmenter: Segmenter{
			MaxLineLength:      defaultMaxLineLength,
			SentenceDelimiters: defaultSentenceDelimiters,
			ClauseDelimiters:   defaultClauseDelimiters,
		},
		Matching: Matching{
			TOCEnabled: true,
			MinScore:   defaultMinScore,
			MinMargin:  defaultMinMargin,
		},
		Transcription: Transcription{
			Backend:   defaultTranscriptionBackend,
			Model:     defaultTranscriptionModel,
			PoolSize:  defaultTranscriptionPool,
			VADMethod: defaultVADMethod,
		},
		Alignment: Alignment{
			Model:      defaultAlignmentModel,
			PadSeconds: defaultPadSeconds,
		},
		OpenAI: OpenAI{
			BaseURL:           defaultOpenAIBaseURL,
			Model:             defaultOpenAIModel,
			RequestsPerMinute: defaultOpenAIRequestsPerMin,
			MaxRetries:        defaultOpenAIMaxRetries,
		},
		Video: Video{
			FFmpegBinary: defaultFFmpegBinary,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
