// Package provider adapts generative-AI vendor SDKs to the generation
// pipeline. Every Complete call makes exactly one API request; retries,
// circuit breaking and caching belong to the generate service.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Completer turns a prompt into response text.
type Completer interface {
	// Name identifies the provider and selects its circuit breaker.
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

var (
	// ErrEmptyResponse is returned when the provider answered without text.
	ErrEmptyResponse = errors.New("provider returned empty response")

	// ErrNoJSON is returned when the response text holds no JSON object.
	ErrNoJSON = errors.New("response contains no JSON object")

	// ErrMissingAPIKey is returned by constructors when no key is configured.
	ErrMissingAPIKey = errors.New("api key is required")
)

const defaultTimeout = 60 * time.Second

// Option configures an adapter.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	httpClient *http.Client
	static     []Response
}

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHTTPClient replaces the SDK's HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// JSONAttempt returns an attempt function for generate.Service that sends
// prompt to c and decodes the first JSON object in the answer.
func JSONAttempt(c Completer, prompt string) func(ctx context.Context, attempt int) (any, error) {
	return func(ctx context.Context, attempt int) (any, error) {
		text, err := c.Complete(ctx, prompt)
		if err != nil {
			return nil, err
		}
		obj, err := DecodeJSON(text)
		if err != nil {
			return nil, fmt.Errorf("%s attempt %d: %w", c.Name(), attempt, err)
		}
		return obj, nil
	}
}

// DecodeJSON extracts the outermost JSON object from text. Markdown code
// fences and prose around the object are ignored.
func DecodeJSON(text string) (map[string]any, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, ErrNoJSON
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("decode response json: %w", err)
	}
	return out, nil
}
