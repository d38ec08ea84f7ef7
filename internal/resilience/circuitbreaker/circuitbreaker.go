// Package circuitbreaker provides a consecutive-failure circuit breaker for
// generative-AI provider calls. State names, counters and the open-state
// sentinel are shared with github.com/sony/gobreaker so callers can branch on
// gobreaker.ErrOpenState and gobreaker.State exactly as they would with a
// gobreaker-backed client.
//
// Transitions are evaluated lazily: there is no timer goroutine, the open
// window is checked whenever IsOpen is called.
package circuitbreaker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name is the circuit breaker name for logging and metrics
	Name string

	// FailureThreshold is the number of consecutive failures that trips the circuit
	FailureThreshold int

	// ResetTimeout is how long to stay open before admitting a probe call
	ResetTimeout time.Duration
}

// DefaultConfig returns a default configuration for circuit breakers.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
	}
}

// Validate checks configuration correctness.
func (c Config) Validate() error {
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure threshold must be at least 1, got %d", c.FailureThreshold)
	}
	if c.ResetTimeout <= 0 {
		return fmt.Errorf("reset timeout must be positive, got %v", c.ResetTimeout)
	}
	return nil
}

// StateChangeFunc observes state transitions. It is called without the
// breaker lock held.
type StateChangeFunc func(name string, from, to gobreaker.State)

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

// WithLogger sets the logger used for state change warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(cb *CircuitBreaker) {
		cb.logger = logger
	}
}

// WithStateChangeHook registers an additional transition observer.
func WithStateChangeHook(fn StateChangeFunc) Option {
	return func(cb *CircuitBreaker) {
		cb.hooks = append(cb.hooks, fn)
	}
}

// Snapshot is a point-in-time view of a breaker for operational display.
type Snapshot struct {
	Name                string           `json:"name"`
	State               gobreaker.State  `json:"-"`
	StateName           string           `json:"state"`
	ConsecutiveFailures int              `json:"consecutive_failures"`
	OpenedAt            *time.Time       `json:"opened_at,omitempty"`
	Counts              gobreaker.Counts `json:"-"`
}

// CircuitBreaker guards a single provider. It is safe for concurrent use.
type CircuitBreaker struct {
	mu sync.Mutex

	cfg   Config
	state gobreaker.State

	consecutiveFailures int
	openedAt            time.Time
	probeStartedAt      time.Time
	counts              gobreaker.Counts

	now    func() time.Time
	logger *slog.Logger
	hooks  []StateChangeFunc
}

// New creates a new circuit breaker with the given configuration.
// Non-positive thresholds fall back to DefaultConfig values.
func New(cfg Config, opts ...Option) *CircuitBreaker {
	defaults := DefaultConfig(cfg.Name)
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaults.ResetTimeout
	}

	cb := &CircuitBreaker{
		cfg:   cfg,
		state: gobreaker.StateClosed,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	if cb.logger == nil {
		cb.logger = slog.Default()
	}
	return cb
}

// IsOpen reports whether calls must fail fast.
//
// While open it returns true until ResetTimeout has elapsed since the circuit
// opened; the first check after that moves the breaker to half-open and
// returns false, admitting exactly one probe. Later checks return true until
// the probe is resolved by RecordSuccess or RecordFailure. A probe that is
// never resolved is replaced after another ResetTimeout.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	now := cb.now()

	var (
		open   bool
		from   gobreaker.State
		to     gobreaker.State
		change bool
	)

	switch cb.state {
	case gobreaker.StateClosed:
		open = false
	case gobreaker.StateOpen:
		if now.Sub(cb.openedAt) > cb.cfg.ResetTimeout {
			from, to, change = cb.setState(gobreaker.StateHalfOpen)
			cb.probeStartedAt = now
			open = false
		} else {
			open = true
		}
	case gobreaker.StateHalfOpen:
		if now.Sub(cb.probeStartedAt) > cb.cfg.ResetTimeout {
			cb.probeStartedAt = now
			open = false
		} else {
			open = true
		}
	}
	cb.mu.Unlock()

	if change {
		cb.notify(from, to)
	}
	return open
}

// RecordSuccess records a successful call. A half-open breaker closes; a
// closed breaker forgets earlier failures.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	cb.counts.Requests++
	cb.counts.TotalSuccesses++
	cb.counts.ConsecutiveSuccesses++
	cb.counts.ConsecutiveFailures = 0

	var (
		from   gobreaker.State
		to     gobreaker.State
		change bool
	)

	switch cb.state {
	case gobreaker.StateClosed:
		cb.consecutiveFailures = 0
	case gobreaker.StateHalfOpen:
		from, to, change = cb.setState(gobreaker.StateClosed)
		cb.consecutiveFailures = 0
		cb.openedAt = time.Time{}
		cb.probeStartedAt = time.Time{}
	case gobreaker.StateOpen:
		// a straggler admitted before the circuit opened; the window stands
	}
	cb.mu.Unlock()

	if change {
		cb.notify(from, to)
	}
}

// RecordFailure records a failed call. A closed breaker opens once
// FailureThreshold consecutive failures accumulate; a half-open breaker
// reopens immediately with a fresh window and its failure count unchanged.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	now := cb.now()
	cb.counts.Requests++
	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0

	var (
		from   gobreaker.State
		to     gobreaker.State
		change bool
	)

	switch cb.state {
	case gobreaker.StateClosed:
		cb.consecutiveFailures++
		if cb.consecutiveFailures >= cb.cfg.FailureThreshold {
			from, to, change = cb.setState(gobreaker.StateOpen)
			cb.openedAt = now
		}
	case gobreaker.StateHalfOpen:
		from, to, change = cb.setState(gobreaker.StateOpen)
		cb.openedAt = now
		cb.probeStartedAt = time.Time{}
	case gobreaker.StateOpen:
		// stragglers do not extend the open window
		cb.consecutiveFailures++
	}
	cb.mu.Unlock()

	if change {
		cb.notify(from, to)
	}
}

// Reset forces the breaker closed with no failures, whatever its state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from, to, change := cb.setState(gobreaker.StateClosed)
	cb.consecutiveFailures = 0
	cb.openedAt = time.Time{}
	cb.probeStartedAt = time.Time{}
	cb.counts = gobreaker.Counts{}
	cb.mu.Unlock()

	cb.logger.Info("circuit breaker reset",
		slog.String("circuit", cb.cfg.Name))
	if change {
		cb.notify(from, to)
	}
}

// State returns the current state without evaluating the open window.
func (cb *CircuitBreaker) State() gobreaker.State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.cfg.Name
}

// Config returns the effective configuration.
func (cb *CircuitBreaker) Config() Config {
	return cb.cfg
}

// Snapshot returns the current state for reporting.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s := Snapshot{
		Name:                cb.cfg.Name,
		State:               cb.state,
		StateName:           cb.state.String(),
		ConsecutiveFailures: cb.consecutiveFailures,
		Counts:              cb.counts,
	}
	if !cb.openedAt.IsZero() {
		openedAt := cb.openedAt
		s.OpenedAt = &openedAt
	}
	return s
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(to gobreaker.State) (gobreaker.State, gobreaker.State, bool) {
	from := cb.state
	if from == to {
		return from, to, false
	}
	cb.state = to
	return from, to, true
}

func (cb *CircuitBreaker) notify(from, to gobreaker.State) {
	cb.logger.Warn("circuit breaker state changed",
		slog.String("circuit", cb.cfg.Name),
		slog.String("from", from.String()),
		slog.String("to", to.String()))
	for _, hook := range cb.hooks {
		hook(cb.cfg.Name, from, to)
	}
}
