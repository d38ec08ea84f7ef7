package provider

import (
	"errors"
	"fmt"

	"code-reels/internal/config"
)

// ErrNoStaticResponses is returned by New for the static provider when no
// responses were scripted with WithStaticResponses.
var ErrNoStaticResponses = errors.New("static provider needs scripted responses")

// WithStaticResponses scripts the provider New returns for the static name.
func WithStaticResponses(responses ...Response) Option {
	return func(o *options) {
		o.static = append(o.static, responses...)
	}
}

// New builds the Completer named by cfg.
func New(cfg config.ProviderConfig, opts ...Option) (Completer, error) {
	o := buildOptions(opts)

	switch cfg.Name {
	case config.ProviderClaude:
		c := DefaultClaudeConfig(cfg.AnthropicAPIKey)
		if cfg.Model != "" {
			c.Model = cfg.Model
		}
		if cfg.Timeout > 0 {
			c.Timeout = cfg.Timeout
		}
		return NewClaude(c, opts...)

	case config.ProviderOpenAI:
		c := DefaultOpenAIConfig(cfg.OpenAIAPIKey)
		if cfg.Model != "" {
			c.Model = cfg.Model
		}
		if cfg.Timeout > 0 {
			c.Timeout = cfg.Timeout
		}
		return NewOpenAI(c, opts...)

	case config.ProviderStatic:
		if len(o.static) == 0 {
			return nil, ErrNoStaticResponses
		}
		return NewStatic(o.static...), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}
