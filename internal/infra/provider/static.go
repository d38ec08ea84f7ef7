package provider

import (
	"context"
	"sync"
)

// Response is one scripted Static answer.
type Response struct {
	Text string
	Err  error
}

// Static replays scripted responses in order and then repeats the last one.
// It backs dry runs and tests.
type Static struct {
	mu        sync.Mutex
	responses []Response
	prompts   []string
}

// NewStatic creates a Static provider.
func NewStatic(responses ...Response) *Static {
	return &Static{responses: responses}
}

// Name implements Completer.
func (s *Static) Name() string {
	return "static"
}

// Complete returns the next scripted response.
func (s *Static) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, prompt)
	if len(s.responses) == 0 {
		return "", ErrEmptyResponse
	}
	i := len(s.prompts) - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	r := s.responses[i]
	return r.Text, r.Err
}

// Calls returns how many times Complete has been called.
func (s *Static) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// Prompts returns every prompt received, oldest first.
func (s *Static) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}
