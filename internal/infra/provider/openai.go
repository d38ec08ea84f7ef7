package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"code-reels/internal/resilience/retry"
	"code-reels/internal/utils/text"
)

// OpenAIConfig holds configuration parameters for the OpenAI adapter.
type OpenAIConfig struct {
	APIKey string

	// Model is the chat completion model identifier.
	Model string

	// MaxTokens is the maximum number of tokens for the API response.
	MaxTokens int

	// Timeout is the maximum duration for a single API call.
	Timeout time.Duration

	// BaseURL overrides the API endpoint including the /v1 suffix.
	BaseURL string
}

// DefaultOpenAIConfig returns the default OpenAI configuration.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:    apiKey,
		Model:     openai.GPT4oMini,
		MaxTokens: 2048,
		Timeout:   defaultTimeout,
	}
}

// Validate checks configuration correctness.
func (c OpenAIConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("openai: %w", ErrMissingAPIKey)
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

// OpenAI implements Completer using the chat completions API in JSON mode.
type OpenAI struct {
	client *openai.Client
	config OpenAIConfig
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI adapter.
func NewOpenAI(cfg OpenAIConfig, opts ...Option) (*OpenAI, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if o.httpClient != nil {
		clientCfg.HTTPClient = o.httpClient
	}

	o.logger.Info("Initialized OpenAI provider",
		slog.String("model", cfg.Model),
		slog.Int("max_tokens", cfg.MaxTokens))

	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		config: cfg,
		logger: o.logger,
	}, nil
}

// Name implements Completer.
func (o *OpenAI) Name() string {
	return "openai"
}

// Complete sends prompt as a user message and returns the first choice.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.config.Model,
		MaxTokens: o.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	duration := time.Since(start)

	if err != nil {
		o.logger.ErrorContext(ctx, "OpenAI API call failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", classifyOpenAIError(err)
	}

	// Validate response structure (safety check to prevent panic on array access)
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai: %w", ErrEmptyResponse)
	}
	content := resp.Choices[0].Message.Content

	o.logger.DebugContext(ctx, "OpenAI API call completed",
		slog.Duration("duration", duration),
		slog.Int("response_length", text.CountRunes(content)))
	return content, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &retry.HTTPError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &retry.HTTPError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    "openai request error",
			Err:        err,
		}
	}
	return fmt.Errorf("openai api error: %w", err)
}
