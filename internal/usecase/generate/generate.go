// Package generate orchestrates one logical generation request: cache
// lookup, circuit breaker gate, retried provider call, validation, and
// outcome recording.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"code-reels/internal/cache"
	"code-reels/internal/observability/logging"
	"code-reels/internal/observability/metrics"
	"code-reels/internal/observability/tracing"
	"code-reels/internal/resilience/circuitbreaker"
	"code-reels/internal/resilience/retry"
	"code-reels/internal/validation"
)

// DefaultProvider names the breaker used when a request names no provider.
const DefaultProvider = "default"

// AttemptFunc performs one provider call. attempt starts at 1. A returned
// error marks the attempt as failed.
type AttemptFunc func(ctx context.Context, attempt int) (any, error)

// RetryOverrides adjusts the retry policy for one request. Zero fields keep
// the service default.
type RetryOverrides struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
}

// BreakerOverrides configures a provider's circuit breaker. They only apply
// when the breaker is created, which happens on the first request naming the
// provider. Zero fields keep the registry default.
type BreakerOverrides struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

// Options tunes one request.
type Options struct {
	// Provider selects the circuit breaker. Empty uses the service default.
	Provider string
	// Model is part of the cache key.
	Model string
	// CacheTTL overrides the cache TTL for the stored response.
	CacheTTL time.Duration
	// SkipCache bypasses both cache lookup and store.
	SkipCache bool
	Retry     *RetryOverrides
	Breaker   *BreakerOverrides
	// StrictQuality turns quality warnings into a ValidationError.
	StrictQuality bool
}

// Request describes one logical generation.
type Request struct {
	TaskType string
	// Context is the serializable payload the response is generated from.
	Context any
	Schema  validation.Schema
	Options Options
}

// Result is a validated response.
type Result struct {
	Value      any               `json:"value"`
	FromCache  bool              `json:"from_cache"`
	Attempts   int               `json:"attempts"`
	Validation validation.Result `json:"validation"`
	Latency    time.Duration     `json:"latency"`
	RequestID  string            `json:"request_id"`
}

// Snapshot is the operational state of a service.
type Snapshot struct {
	Cache    cache.Stats                  `json:"cache"`
	Breakers []circuitbreaker.Snapshot    `json:"breakers"`
	Metrics  metrics.Summary              `json:"metrics"`
	Tasks    map[string]metrics.TaskStats `json:"tasks"`
}

// Gauges receives point-in-time values after every request.
// metrics.PrometheusRecorder implements it.
type Gauges interface {
	SetCircuitState(name string, state gobreaker.State)
	SetCacheEntries(n int)
}

// Config holds the service defaults.
type Config struct {
	// Retry is the default retry policy. OnRetry, if set, is called in
	// addition to the service's own retry bookkeeping.
	Retry retry.Config
	// DefaultProvider is used when a request names no provider.
	DefaultProvider string
	// Deduplicate lets concurrent requests with the same cache key share one
	// provider call. The shared call keeps the values of the first request's
	// context but not its cancellation, so a caller that gives up only stops
	// waiting.
	Deduplicate bool

	// SharedTimeout bounds a deduplicated call once it no longer follows any
	// caller's cancellation. Zero leaves it bounded by the retry policy alone.
	SharedTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer sets the tracer. The default follows the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithClock replaces time.Now for latency measurement.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithGauges publishes breaker state and cache size after every request.
func WithGauges(g Gauges) Option {
	return func(s *Service) {
		s.gauges = g
	}
}

// Service composes the cache, breakers, retry policy, validator and metrics
// collector. It is safe for concurrent use.
type Service struct {
	cache     *cache.Cache
	breakers  *circuitbreaker.Registry
	validator *validation.Validator
	metrics   *metrics.Collector
	cfg       Config

	group singleflight.Group

	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
	gauges Gauges
}

// NewService creates a generation service from its collaborators.
func NewService(
	c *cache.Cache,
	breakers *circuitbreaker.Registry,
	validator *validation.Validator,
	collector *metrics.Collector,
	cfg Config,
	opts ...Option,
) (*Service, error) {
	switch {
	case c == nil:
		return nil, errors.New("cache is required")
	case breakers == nil:
		return nil, errors.New("circuit breaker registry is required")
	case validator == nil:
		return nil, errors.New("validator is required")
	case collector == nil:
		return nil, errors.New("metrics collector is required")
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = DefaultProvider
	}

	s := &Service{
		cache:     c,
		breakers:  breakers,
		validator: validator,
		metrics:   collector,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = tracing.GetTracer()
	}
	return s, nil
}

// outcome is what the provider side of a request produced. It is shared
// between deduplicated callers.
type outcome struct {
	value      any
	attempts   int
	validation validation.Result
}

// Generate serves req from the cache or by calling attempt under the
// provider's circuit breaker and the retry policy, then validates the value.
//
// Errors:
//   - ErrInvalidTaskType, ErrNilAttempt: bad input
//   - *CircuitOpenError: the provider is failing fast; attempt was not called
//   - *retry.ExhaustedError: every attempt failed (or the raw error with a single attempt)
//   - *ValidationError: the response failed schema validation, or quality under StrictQuality
func (s *Service) Generate(ctx context.Context, req Request, attempt AttemptFunc) (*Result, error) {
	if req.TaskType == "" {
		return nil, ErrInvalidTaskType
	}
	if attempt == nil {
		return nil, ErrNilAttempt
	}

	requestID := logging.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
		ctx = logging.ContextWithRequestID(ctx, requestID)
	}
	provider := s.provider(req.Options)
	logger := logging.WithRequestID(ctx, s.logger).With(
		slog.String("task_type", req.TaskType),
		slog.String("provider", provider))

	ctx, span := s.tracer.Start(ctx, "genai.generate", trace.WithAttributes(
		attribute.String("genai.task_type", req.TaskType),
		attribute.String("genai.provider", provider),
		attribute.String("genai.model", req.Options.Model),
		attribute.String("genai.request_id", requestID),
	))
	defer span.End()
	defer s.publishGauges(provider)

	start := s.now()

	key := s.cacheKey(req, logger)
	if key != "" {
		if value, ok := s.cache.Get(key); ok {
			latency := s.now().Sub(start)
			s.metrics.RecordSuccess(req.TaskType, latency, true)
			span.SetAttributes(attribute.Bool("genai.cache_hit", true))
			logger.Debug("served from cache", slog.Duration("latency", latency))
			return &Result{
				Value:      value,
				FromCache:  true,
				Validation: s.validator.Validate(req.TaskType, value, req.Schema),
				Latency:    latency,
				RequestID:  requestID,
			}, nil
		}
	}
	span.SetAttributes(attribute.Bool("genai.cache_hit", false))

	var (
		out *outcome
		err error
	)
	if s.cfg.Deduplicate && key != "" {
		out, err = s.executeShared(ctx, span, req, provider, key, attempt, logger)
	} else {
		out, err = s.execute(ctx, req, provider, key, attempt, logger)
	}

	latency := s.now().Sub(start)
	if err != nil {
		reason := failureReason(err)
		s.metrics.RecordFailure(req.TaskType, reason)
		tracing.RecordError(span, err)
		logger.Error("generation failed",
			slog.String("reason", reason),
			slog.Duration("latency", latency),
			slog.Any("error", err))
		return nil, err
	}

	s.metrics.RecordSuccess(req.TaskType, latency, false)
	span.SetAttributes(attribute.Int("genai.attempts", out.attempts))
	logger.Info("generation succeeded",
		slog.Int("attempts", out.attempts),
		slog.Duration("latency", latency),
		slog.Int("quality_warnings", len(out.validation.QualityWarnings)))

	return &Result{
		Value:      out.value,
		Attempts:   out.attempts,
		Validation: out.validation,
		Latency:    latency,
		RequestID:  requestID,
	}, nil
}

// executeShared joins or starts the in-flight call for key. The caller
// waits until the call finishes or its own ctx is done.
func (s *Service) executeShared(
	ctx context.Context,
	span trace.Span,
	req Request,
	provider string,
	key string,
	attempt AttemptFunc,
	logger *slog.Logger,
) (*outcome, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		sharedCtx := context.WithoutCancel(ctx)
		if s.cfg.SharedTimeout > 0 {
			var cancel context.CancelFunc
			sharedCtx, cancel = context.WithTimeout(sharedCtx, s.cfg.SharedTimeout)
			defer cancel()
		}
		return s.execute(sharedCtx, req, provider, key, attempt, logger)
	})

	select {
	case r := <-ch:
		span.SetAttributes(attribute.Bool("genai.shared", r.Shared))
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*outcome), nil
	case <-ctx.Done():
		logger.Debug("stopped waiting for shared provider call", slog.Any("error", ctx.Err()))
		return nil, ctx.Err()
	}
}

// execute runs the breaker gated, retried provider call and validates the
// value. The breaker sees one outcome per logical request.
func (s *Service) execute(
	ctx context.Context,
	req Request,
	provider string,
	key string,
	attempt AttemptFunc,
	logger *slog.Logger,
) (*outcome, error) {
	cb := s.breaker(provider, req.Options.Breaker)
	if cb.IsOpen() {
		snap := cb.Snapshot()
		logger.Warn("circuit breaker open, failing fast")
		return nil, &CircuitOpenError{Provider: provider, OpenedAt: snap.OpenedAt}
	}

	var attempts int
	value, err := retry.Do(ctx, s.retryConfig(req, logger), func(ctx context.Context, n int) (any, error) {
		attempts = n
		ctx, span := s.tracer.Start(ctx, "genai.attempt", trace.WithAttributes(
			attribute.Int("genai.attempt", n)))
		defer span.End()

		v, err := attempt(ctx, n)
		tracing.RecordError(span, err)
		return v, err
	})
	if err != nil {
		// Abandoned requests say nothing about provider health
		if ctx.Err() == nil {
			cb.RecordFailure()
		}
		return nil, err
	}
	cb.RecordSuccess()

	result := s.validator.Validate(req.TaskType, value, req.Schema)
	if !result.SchemaValid() {
		return nil, &ValidationError{TaskType: req.TaskType, Result: result}
	}
	if len(result.QualityWarnings) > 0 {
		if req.Options.StrictQuality {
			return nil, &ValidationError{TaskType: req.TaskType, Result: result, Strict: true}
		}
		logger.Warn("response accepted with quality warnings",
			slog.Any("warnings", result.QualityWarnings))
	}

	if key != "" {
		s.cache.SetWithTTL(key, value, req.Options.CacheTTL)
	}

	return &outcome{value: value, attempts: attempts, validation: result}, nil
}

// Snapshot returns cache statistics, breaker states and metrics.
func (s *Service) Snapshot() Snapshot {
	return Snapshot{
		Cache:    s.cache.Stats(),
		Breakers: s.breakers.Snapshots(),
		Metrics:  s.metrics.Summary(),
		Tasks:    s.metrics.Tasks(),
	}
}

// Report renders the metrics report followed by cache and breaker state.
func (s *Service) Report() string {
	snap := s.Snapshot()
	report := s.metrics.Report()
	report += fmt.Sprintf("Cache: %d/%d entries, %d hits, %d misses, hit rate %.1f%%\n",
		snap.Cache.Size, snap.Cache.MaxSize, snap.Cache.Hits, snap.Cache.Misses, snap.Cache.HitRate)
	for _, b := range snap.Breakers {
		report += fmt.Sprintf("Circuit %s: %s (consecutive failures: %d)\n",
			b.Name, b.StateName, b.ConsecutiveFailures)
	}
	return report
}

func (s *Service) provider(opts Options) string {
	if opts.Provider != "" {
		return opts.Provider
	}
	return s.cfg.DefaultProvider
}

// cacheKey returns "" when the request bypasses the cache. A disabled cache
// still gets a key so its lookups are counted as misses.
func (s *Service) cacheKey(req Request, logger *slog.Logger) string {
	if req.Options.SkipCache {
		return ""
	}
	key, err := cache.ComputeKey(req.TaskType, req.Context, req.Options.Model)
	if err != nil {
		logger.Warn("cache key unavailable, bypassing cache", slog.Any("error", err))
		return ""
	}
	return key
}

func (s *Service) breaker(provider string, overrides *BreakerOverrides) *circuitbreaker.CircuitBreaker {
	if overrides == nil {
		return s.breakers.Get(provider)
	}
	cfg := s.breakers.Defaults()
	if overrides.FailureThreshold > 0 {
		cfg.FailureThreshold = overrides.FailureThreshold
	}
	if overrides.ResetTimeout > 0 {
		cfg.ResetTimeout = overrides.ResetTimeout
	}
	return s.breakers.GetWithConfig(provider, cfg)
}

func (s *Service) retryConfig(req Request, logger *slog.Logger) retry.Config {
	cfg := s.cfg.Retry
	if o := req.Options.Retry; o != nil {
		if o.MaxAttempts > 0 {
			cfg.MaxAttempts = o.MaxAttempts
		}
		if o.InitialDelay > 0 {
			cfg.InitialDelay = o.InitialDelay
		}
		if o.Multiplier > 0 {
			cfg.Multiplier = o.Multiplier
		}
	}

	hook := cfg.OnRetry
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		s.metrics.RecordRetry(req.TaskType)
		if hook != nil {
			hook(attempt, err, delay)
		}
	}
	cfg.Logger = logger
	return cfg
}

func (s *Service) publishGauges(provider string) {
	if s.gauges == nil {
		return
	}
	s.gauges.SetCircuitState(provider, s.breakers.Get(provider).State())
	s.gauges.SetCacheEntries(s.cache.Len())
}

// failureReason maps an error onto a metrics failure reason.
func failureReason(err error) string {
	var (
		openErr       *CircuitOpenError
		validationErr *ValidationError
		exhaustedErr  *retry.ExhaustedError
	)
	switch {
	case errors.As(err, &openErr):
		return metrics.ReasonCircuitOpen
	case errors.As(err, &validationErr):
		return metrics.ReasonValidation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.ReasonCanceled
	case errors.As(err, &exhaustedErr):
		return metrics.ReasonExhausted
	default:
		return metrics.ReasonError
	}
}
