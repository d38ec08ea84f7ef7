// Package config loads the generation pipeline configuration.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file named by GENAI_CONFIG_FILE, and GENAI_* environment variables, each
// layer overriding the previous one.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"code-reels/internal/cache"
	"code-reels/internal/resilience/circuitbreaker"
	"code-reels/internal/resilience/retry"
	"code-reels/internal/validation"
	pkgconfig "code-reels/pkg/config"
)

// GenAIConfig holds configuration for the generation pipeline.
type GenAIConfig struct {
	Cache          CacheConfig          `yaml:"cache"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Quality        QualityConfig        `yaml:"quality"`
	Provider       ProviderConfig       `yaml:"provider"`
	Observability  ObservabilityConfig  `yaml:"observability"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	// Enabled turns the response cache on. Default: true
	Enabled bool `yaml:"enabled"`
	// TTL of cached responses. Default: 24h
	TTL time.Duration `yaml:"ttl"`
	// MaxSize is the maximum number of cached responses. Default: 1000
	MaxSize int `yaml:"max_size"`
}

// RetryConfig holds retry settings for provider calls.
type RetryConfig struct {
	// MaxAttempts including the first call. Default: 3
	MaxAttempts int `yaml:"max_attempts"`
	// InitialDelay before the second attempt. Default: 1s
	InitialDelay time.Duration `yaml:"initial_delay"`
	// Multiplier applied to the delay after every failure. Default: 2.0
	Multiplier float64 `yaml:"multiplier"`
	// MaxDelay caps the delay; zero means uncapped. Default: 0
	MaxDelay time.Duration `yaml:"max_delay"`
	// JitterFraction adds random jitter to each delay. Default: 0
	JitterFraction float64 `yaml:"jitter_fraction"`
	// ClassifyErrors stops retrying errors retry.IsRetryable rejects. Default: false
	ClassifyErrors bool `yaml:"classify_errors"`
}

// CircuitBreakerConfig holds per provider breaker settings.
type CircuitBreakerConfig struct {
	// FailureThreshold consecutive failures open the circuit. Default: 5
	FailureThreshold int `yaml:"failure_threshold"`
	// ResetTimeout before a probe is admitted. Default: 60s
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// QualityConfig holds the response quality thresholds.
type QualityConfig struct {
	// Rules per task type. File entries replace the built-in rule of the same task type.
	Rules map[string]validation.QualityRule `yaml:"rules"`
	// TrivialPatterns are regular expressions flagging placeholder diagrams.
	TrivialPatterns []string `yaml:"trivial_patterns"`
}

// ProviderConfig selects and authenticates the AI provider.
type ProviderConfig struct {
	// Name of the provider: claude, openai or static. Default: claude
	Name string `yaml:"name"`
	// Model overrides the provider's default model.
	Model string `yaml:"model"`
	// Timeout for one provider call. Default: 60s
	Timeout time.Duration `yaml:"timeout"`
	// Deduplicate shares one provider call between identical concurrent requests. Default: false
	Deduplicate bool `yaml:"deduplicate"`
	// AnthropicAPIKey is read from ANTHROPIC_API_KEY only.
	AnthropicAPIKey string `yaml:"-"`
	// OpenAIAPIKey is read from OPENAI_API_KEY only.
	OpenAIAPIKey string `yaml:"-"`
}

// ObservabilityConfig holds logging, metrics and tracing settings.
type ObservabilityConfig struct {
	// MetricsEnabled mirrors metrics to Prometheus. Default: true
	MetricsEnabled bool `yaml:"metrics_enabled"`
	// TracingEnabled installs the log span exporter. Default: false
	TracingEnabled bool `yaml:"tracing_enabled"`
	// LogLevel: debug, info, warn or error. Default: info
	LogLevel string `yaml:"log_level"`
}

// Supported provider names.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderStatic = "static"
)

// DefaultGenAIConfig returns the built-in configuration.
func DefaultGenAIConfig() *GenAIConfig {
	return &GenAIConfig{
		Cache: CacheConfig{
			Enabled: true,
			TTL:     24 * time.Hour,
			MaxSize: 1000,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			Multiplier:   2.0,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     60 * time.Second,
		},
		Quality: QualityConfig{
			Rules:           validation.DefaultRules(),
			TrivialPatterns: validation.DefaultTrivialPatterns(),
		},
		Provider: ProviderConfig{
			Name:    ProviderClaude,
			Timeout: 60 * time.Second,
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: true,
			LogLevel:       "info",
		},
	}
}

// LoadGenAIConfig loads configuration from GENAI_CONFIG_FILE, when set, and
// the environment.
func LoadGenAIConfig() (*GenAIConfig, error) {
	cfg := DefaultGenAIConfig()

	if path := os.Getenv("GENAI_CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genai configuration: %w", err)
	}
	return cfg, nil
}

// mergeFile overlays the YAML document at path onto cfg.
func (c *GenAIConfig) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *GenAIConfig) applyEnv() {
	c.Cache.Enabled = pkgconfig.GetEnvBool("GENAI_CACHE_ENABLED", c.Cache.Enabled)
	c.Cache.TTL = pkgconfig.GetEnvDuration("GENAI_CACHE_TTL", c.Cache.TTL)
	c.Cache.MaxSize = pkgconfig.GetEnvInt("GENAI_CACHE_MAX_SIZE", c.Cache.MaxSize)

	c.Retry.MaxAttempts = pkgconfig.GetEnvInt("GENAI_RETRY_MAX_ATTEMPTS", c.Retry.MaxAttempts)
	c.Retry.InitialDelay = pkgconfig.GetEnvDuration("GENAI_RETRY_INITIAL_DELAY", c.Retry.InitialDelay)
	c.Retry.Multiplier = pkgconfig.GetEnvFloat("GENAI_RETRY_MULTIPLIER", c.Retry.Multiplier)
	c.Retry.MaxDelay = pkgconfig.GetEnvDuration("GENAI_RETRY_MAX_DELAY", c.Retry.MaxDelay)
	c.Retry.JitterFraction = pkgconfig.GetEnvFloat("GENAI_RETRY_JITTER", c.Retry.JitterFraction)
	c.Retry.ClassifyErrors = pkgconfig.GetEnvBool("GENAI_RETRY_CLASSIFY_ERRORS", c.Retry.ClassifyErrors)

	c.CircuitBreaker.FailureThreshold = pkgconfig.GetEnvInt("GENAI_CB_FAILURE_THRESHOLD", c.CircuitBreaker.FailureThreshold)
	c.CircuitBreaker.ResetTimeout = pkgconfig.GetEnvDuration("GENAI_CB_RESET_TIMEOUT", c.CircuitBreaker.ResetTimeout)

	c.Quality.TrivialPatterns = pkgconfig.GetEnvStringList("GENAI_TRIVIAL_PATTERNS", c.Quality.TrivialPatterns)

	c.Provider.Name = pkgconfig.GetEnvString("GENAI_PROVIDER", c.Provider.Name)
	c.Provider.Model = pkgconfig.GetEnvString("GENAI_MODEL", c.Provider.Model)
	c.Provider.Timeout = pkgconfig.GetEnvDuration("GENAI_PROVIDER_TIMEOUT", c.Provider.Timeout)
	c.Provider.Deduplicate = pkgconfig.GetEnvBool("GENAI_DEDUPLICATE", c.Provider.Deduplicate)
	c.Provider.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	c.Provider.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")

	c.Observability.MetricsEnabled = pkgconfig.GetEnvBool("GENAI_METRICS_ENABLED", c.Observability.MetricsEnabled)
	c.Observability.TracingEnabled = pkgconfig.GetEnvBool("GENAI_TRACING_ENABLED", c.Observability.TracingEnabled)
	c.Observability.LogLevel = pkgconfig.GetEnvString("LOG_LEVEL", c.Observability.LogLevel)
}

// Validate checks configuration correctness. All problems are reported
// together.
func (c *GenAIConfig) Validate() error {
	var errs []error

	if err := pkgconfig.ValidatePositiveDuration(c.Cache.TTL); err != nil {
		errs = append(errs, fmt.Errorf("GENAI_CACHE_TTL: %w", err))
	}
	if err := pkgconfig.ValidateIntRange(c.Cache.MaxSize, 1, 1_000_000); err != nil {
		errs = append(errs, fmt.Errorf("GENAI_CACHE_MAX_SIZE: %w", err))
	}

	if err := pkgconfig.ValidateIntRange(c.Retry.MaxAttempts, 1, 10); err != nil {
		errs = append(errs, fmt.Errorf("GENAI_RETRY_MAX_ATTEMPTS: %w", err))
	}
	if err := pkgconfig.ValidateNonNegativeDuration(c.Retry.InitialDelay); err != nil {
		errs = append(errs, fmt.Errorf("GENAI_RETRY_INITIAL_DELAY: %w", err))
	}
	if err := pkgconfig.ValidateFloatRange(c.Retry.Multiplier, 1.0, 10.0); err != nil {
		errs = append(errs, fmt.Errorf("GENAI_RETRY_MULTIPLIER: %w", err))
	}
	if err := pkgconfig.ValidateNonNegativeDuration(c.Retry.MaxDelay); err != nil {
		errs = append(errs, fmt.Errorf("GENAI_RETRY_MAX_DELAY: %w", err))
	}
	if err := pkgconfig.ValidateFloatRange(c.Retry.JitterFraction, 0, 1); err != nil {
		errs = append(errs, fmt.Errorf("GENAI_RETRY_JITTER: %w", err))
	}

	if err := pkgconfig.ValidateIntRange(c.CircuitBreaker.FailureThreshold, 1, 1000); err != nil {
		errs = append(errs, fmt.Errorf("GENAI_CB_FAILURE_THRESHOLD: %w", err))
	}
	if err := pkgconfig.ValidatePositiveDuration(c.CircuitBreaker.ResetTimeout); err != nil {
		errs = append(errs, fmt.Errorf("GENAI_CB_RESET_TIMEOUT: %w", err))
	}

	switch c.Provider.Name {
	case ProviderClaude, ProviderOpenAI, ProviderStatic:
	default:
		errs = append(errs, fmt.Errorf("GENAI_PROVIDER: unknown provider %q", c.Provider.Name))
	}
	if err := pkgconfig.ValidateDurationRange(c.Provider.Timeout, time.Second, 10*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("GENAI_PROVIDER_TIMEOUT: %w", err))
	}

	if _, err := c.NewValidator(); err != nil {
		errs = append(errs, fmt.Errorf("quality: %w", err))
	}

	return errors.Join(errs...)
}

// CacheSettings converts the cache section for cache.New.
func (c *GenAIConfig) CacheSettings() cache.Config {
	return cache.Config{
		Enabled: c.Cache.Enabled,
		TTL:     c.Cache.TTL,
		MaxSize: c.Cache.MaxSize,
	}
}

// RetrySettings converts the retry section for retry.Do.
func (c *GenAIConfig) RetrySettings() retry.Config {
	cfg := retry.Config{
		MaxAttempts:    c.Retry.MaxAttempts,
		InitialDelay:   c.Retry.InitialDelay,
		Multiplier:     c.Retry.Multiplier,
		MaxDelay:       c.Retry.MaxDelay,
		JitterFraction: c.Retry.JitterFraction,
	}
	if c.Retry.ClassifyErrors {
		cfg.ShouldRetry = retry.IsRetryable
	}
	return cfg
}

// SharedCallTimeout bounds a deduplicated provider call that has outlived its
// callers: every attempt at the provider timeout plus the largest backoff
// between attempts.
func (c *GenAIConfig) SharedCallTimeout() time.Duration {
	total := time.Duration(c.Retry.MaxAttempts) * c.Provider.Timeout
	delay := float64(c.Retry.InitialDelay)
	for i := 1; i < c.Retry.MaxAttempts; i++ {
		d := time.Duration(delay * (1 + c.Retry.JitterFraction))
		if c.Retry.MaxDelay > 0 && d > c.Retry.MaxDelay {
			d = c.Retry.MaxDelay
		}
		total += d
		delay *= c.Retry.Multiplier
	}
	return total
}

// BreakerSettings converts the circuit breaker section for circuitbreaker.New.
func (c *GenAIConfig) BreakerSettings(name string) circuitbreaker.Config {
	return circuitbreaker.Config{
		Name:             name,
		FailureThreshold: c.CircuitBreaker.FailureThreshold,
		ResetTimeout:     c.CircuitBreaker.ResetTimeout,
	}
}

// NewValidator builds a validator from the quality section.
func (c *GenAIConfig) NewValidator() (*validation.Validator, error) {
	return validation.NewValidator(
		validation.WithRules(c.Quality.Rules),
		validation.WithTrivialPatterns(c.Quality.TrivialPatterns),
	)
}
