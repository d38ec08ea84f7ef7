package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"code-reels/internal/resilience/retry"
	"code-reels/internal/utils/text"
)

// ClaudeConfig holds configuration parameters for the Claude adapter.
type ClaudeConfig struct {
	APIKey string

	// Model is the Claude API model identifier.
	Model string

	// MaxTokens is the maximum number of tokens for the API response.
	MaxTokens int

	// Timeout is the maximum duration for a single API call.
	Timeout time.Duration

	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
}

// DefaultClaudeConfig returns the default Claude configuration.
func DefaultClaudeConfig(apiKey string) ClaudeConfig {
	return ClaudeConfig{
		APIKey:    apiKey,
		Model:     string(anthropic.ModelClaudeSonnet4_5_20250929),
		MaxTokens: 2048,
		Timeout:   defaultTimeout,
	}
}

// Validate checks configuration correctness.
func (c ClaudeConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("claude: %w", ErrMissingAPIKey)
	}
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// Claude implements Completer using Anthropic's Messages API.
type Claude struct {
	client anthropic.Client
	config ClaudeConfig
	logger *slog.Logger
}

// NewClaude creates a Claude adapter. SDK level retries are disabled.
func NewClaude(cfg ClaudeConfig, opts ...Option) (*Claude, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}

	o.logger.Info("Initialized Claude provider",
		slog.String("model", cfg.Model),
		slog.Int("max_tokens", cfg.MaxTokens))

	return &Claude{
		client: anthropic.NewClient(reqOpts...),
		config: cfg,
		logger: o.logger,
	}, nil
}

// Name implements Completer.
func (c *Claude) Name() string {
	return "claude"
}

// Complete sends prompt as a single user message and returns the first text block.
func (c *Claude) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorContext(ctx, "Claude API call failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", classifyClaudeError(err)
	}

	if len(message.Content) == 0 {
		return "", fmt.Errorf("claude: %w", ErrEmptyResponse)
	}
	block, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok || block.Text == "" {
		return "", fmt.Errorf("claude: %w", ErrEmptyResponse)
	}

	c.logger.DebugContext(ctx, "Claude API call completed",
		slog.Duration("duration", duration),
		slog.Int("response_length", text.CountRunes(block.Text)))
	return block.Text, nil
}

// classifyClaudeError exposes the HTTP status as a retry.HTTPError so
// retry.IsRetryable can tell throttling from bad credentials.
func classifyClaudeError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &retry.HTTPError{
			StatusCode: apiErr.StatusCode,
			Message:    "claude api error",
			Err:        err,
		}
	}
	return fmt.Errorf("claude api error: %w", err)
}
