package openaistt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	langpkg "booksync/internal/language"
	"booksync/internal/services"
)

// MaxUploadBytes is the API's per-file upload limit.
const MaxUploadBytes = 25 << 20

// BackendName identifies transcripts produced by this package in the cache.
const BackendName = "openai"

const (
	defaultModel     = openai.Whisper1
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 30 * time.Second
)

// Config captures the hosted backend settings.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	RequestsPerMinute int
	MaxRetries        int
}

// audioTranscriber is satisfied by *openai.Client.
type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

var _ audioTranscriber = (*openai.Client)(nil)

// Client transcribes audio files through the API.
type Client struct {
	api        audioTranscriber
	model      string
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithTranscriber replaces the API client (for testing).
func WithTranscriber(api audioTranscriber) Option {
	return func(c *Client) {
		c.api = api
	}
}

// WithRetryDelays sets the base and max backoff delays.
func WithRetryDelays(base, max time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.baseDelay = base
		}
		if max > 0 {
			c.maxDelay = max
		}
	}
}

// New builds a client from cfg.
func New(cfg Config, opts ...Option) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		apiCfg.BaseURL = base
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	c := &Client{
		api:        openai.NewClientWithConfig(apiCfg),
		model:      model,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: max(cfg.MaxRetries, 0),
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backend returns the cache label for transcripts from this client.
func (c *Client) Backend() string {
	return BackendName
}

// Model returns the API model name.
func (c *Client) Model() string {
	return c.model
}

// Transcribe uploads audioPath and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "transcribe", "openai", "audio file unavailable", err)
	}
	if info.Size() > MaxUploadBytes {
		return "", services.Wrap(services.ErrValidation, "transcribe", "openai",
			fmt.Sprintf("%s is %d MB, over the 25 MB upload limit", info.Name(), info.Size()>>20), nil)
	}

	req := openai.AudioRequest{
		Model:    c.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatJSON,
		Language: langpkg.ToISO2(language),
	}
	return c.transcribeWithRetry(ctx, req)
}

func (c *Client) transcribeWithRetry(ctx context.Context, req openai.AudioRequest) (string, error) {
	delay := c.baseDelay
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
			delay = min(delay*2, c.maxDelay)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		resp, err := c.api.CreateTranscription(ctx, req)
		if err == nil {
			return strings.TrimSpace(resp.Text), nil
		}
		lastErr = classifyError(err)
		if !isRetryable(lastErr) {
			return "", lastErr
		}
	}
	return "", fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			if strings.Contains(apiErr.Message, "quota") || strings.Contains(apiErr.Message, "billing") {
				return services.Wrap(services.ErrConfiguration, "transcribe", "openai", "quota exceeded", err)
			}
			return services.Wrap(services.ErrTransient, "transcribe", "openai", "rate limited", err)
		case http.StatusUnauthorized:
			return services.Wrap(services.ErrConfiguration, "transcribe", "openai", "authentication failed", err)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return services.Wrap(services.ErrTimeout, "transcribe", "openai", "request timed out", err)
		case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusRequestEntityTooLarge:
			return services.Wrap(services.ErrValidation, "transcribe", "openai", "request rejected", err)
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			return services.Wrap(services.ErrTransient, "transcribe", "openai", "server error", err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "transcribe", "openai", "request timed out", err)
	}
	return services.Wrap(services.ErrExternalTool, "transcribe", "openai", "request failed", err)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, services.ErrTransient) || errors.Is(err, services.ErrTimeout)
}
