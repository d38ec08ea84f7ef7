package generate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"code-reels/internal/validation"
)

// Sentinel errors for generate use case operations.
var (
	// ErrInvalidTaskType is returned when the request has no task type.
	ErrInvalidTaskType = errors.New("task type cannot be empty")

	// ErrNilAttempt is returned when no attempt function is supplied.
	ErrNilAttempt = errors.New("attempt function cannot be nil")
)

// CircuitOpenError is returned without calling the provider while its circuit
// breaker is open. It unwraps to gobreaker.ErrOpenState.
type CircuitOpenError struct {
	Provider string
	OpenedAt *time.Time
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for provider %q", e.Provider)
}

// Unwrap returns gobreaker.ErrOpenState.
func (e *CircuitOpenError) Unwrap() error {
	return gobreaker.ErrOpenState
}

// ValidationError is returned when a provider response fails schema
// validation, or carries quality warnings while strict quality is requested.
type ValidationError struct {
	TaskType string
	Result   validation.Result
	// Strict is set when only quality warnings caused the failure
	Strict bool
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	problems := e.Result.SchemaErrors
	if e.Strict {
		problems = e.Result.QualityWarnings
	}
	return fmt.Sprintf("%s response failed validation: %s", e.TaskType, strings.Join(problems, "; "))
}
