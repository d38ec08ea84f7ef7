// Package retry provides bounded retries with exponential backoff for a
// single logical call. It is count and delay driven: every error is retried
// unless the caller installs a ShouldRetry classifier.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Config holds the configuration for retry logic.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first one.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// InitialDelay is the delay before the second attempt
	InitialDelay time.Duration

	// Multiplier grows the delay after every failed attempt
	Multiplier float64

	// MaxDelay caps the delay between attempts. Zero means uncapped.
	MaxDelay time.Duration

	// JitterFraction adds up to this fraction of the delay as random jitter (0.0 to 1.0).
	// Jitter is applied to the wait only and never compounds into the next delay.
	JitterFraction float64

	// OnRetry is invoked after a failed attempt that will be retried, before sleeping.
	OnRetry func(attempt int, err error, delay time.Duration)

	// ShouldRetry classifies errors. Nil retries every error.
	ShouldRetry func(err error) bool

	// Logger receives retry diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
	}
}

// AIAPIConfig returns configuration tuned for generative-AI provider calls.
// Moderate retry due to cost considerations.
func AIAPIConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     10 * time.Second,
	}
}

// Validate checks that the configuration describes a usable retry policy.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.InitialDelay < 0 {
		return fmt.Errorf("initial delay must be non-negative, got %v", c.InitialDelay)
	}
	if c.Multiplier <= 0 {
		return fmt.Errorf("backoff multiplier must be positive, got %g", c.Multiplier)
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("max delay must be non-negative, got %v", c.MaxDelay)
	}
	if c.JitterFraction < 0 || c.JitterFraction > 1 {
		return fmt.Errorf("jitter fraction must be between 0.0 and 1.0, got %g", c.JitterFraction)
	}
	return nil
}

// Func is a single attempt. attempt starts at 1.
type Func[T any] func(ctx context.Context, attempt int) (T, error)

// ExhaustedError is returned when every attempt failed. It unwraps to the
// error of the final attempt.
type ExhaustedError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max retry attempts (%d) exceeded: %v", e.Attempts, e.Err)
}

// Unwrap returns the final attempt's error.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do runs fn until it succeeds or MaxAttempts is reached. Attempts are
// sequential. After a failed attempt i < MaxAttempts it calls OnRetry, waits
// for the current delay (aborting if ctx is done) and then multiplies the
// delay by Multiplier, rounding down.
//
// With MaxAttempts == 1 the error of the only attempt is returned as is.
// Otherwise exhaustion yields an *ExhaustedError wrapping the last error, and
// an error rejected by ShouldRetry is returned unwrapped immediately.
func Do[T any](ctx context.Context, cfg Config, fn Func[T]) (T, error) {
	var zero T

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		value, err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				logger.InfoContext(ctx, "operation succeeded after retry",
					slog.Int("attempt", attempt))
			}
			return value, nil
		}
		lastErr = err

		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(err) {
			logger.WarnContext(ctx, "non-retryable error, aborting",
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			return zero, err
		}

		// Don't wait after last attempt
		if attempt == maxAttempts {
			break
		}

		wait := addJitter(delay, cfg.JitterFraction)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, wait)
		}

		logger.WarnContext(ctx, "operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("delay", wait),
			slog.Any("error", err))

		if sleepErr := sleep(ctx, wait); sleepErr != nil {
			return zero, fmt.Errorf("retry aborted after attempt %d: %w", attempt, sleepErr)
		}

		delay = nextDelay(delay, cfg.Multiplier, cfg.MaxDelay)
	}

	if maxAttempts == 1 {
		return zero, lastErr
	}
	return zero, &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// nextDelay returns floor(delay * multiplier), capped at maxDelay when set.
// Delays of a millisecond or more are floored to whole milliseconds.
func nextDelay(delay time.Duration, multiplier float64, maxDelay time.Duration) time.Duration {
	if multiplier <= 0 {
		multiplier = 1
	}

	scaled := float64(delay) * multiplier
	if delay >= time.Millisecond {
		scaled = math.Floor(scaled/float64(time.Millisecond)) * float64(time.Millisecond)
	}

	next := time.Duration(math.Floor(scaled))
	if maxDelay > 0 && next > maxDelay {
		next = maxDelay
	}
	return next
}

// IsRetryable reports whether err looks transient: network timeouts, refused
// or reset connections, and HTTP 408, 429 and 5xx responses. Install it as
// Config.ShouldRetry to stop retrying permanent failures such as 401.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 500 && httpErr.StatusCode < 600 {
			return true
		}
		if httpErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		if httpErr.StatusCode == http.StatusRequestTimeout {
			return true
		}
	}

	return false
}

// HTTPError represents a provider error with an HTTP status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap returns the underlying SDK error, if any.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// addJitter adds random jitter to a duration to prevent thundering herd.
func addJitter(duration time.Duration, jitterFraction float64) time.Duration {
	if jitterFraction <= 0 {
		return duration
	}
	if jitterFraction > 1.0 {
		jitterFraction = 1.0
	}
	// #nosec G404 -- Using math/rand is acceptable for jitter calculation.
	jitter := time.Duration(rand.Float64() * float64(duration) * jitterFraction)
	return duration + jitter
}
