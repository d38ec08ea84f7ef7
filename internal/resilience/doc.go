// Package resilience groups the fault tolerance building blocks used around
// generative-AI provider calls.
//
// The subpackages are:
//   - circuitbreaker: a consecutive-failure breaker per provider, with a registry
//   - retry: bounded retries with exponential backoff and an optional error classifier
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.DefaultConfig("claude"))
//	if cb.IsOpen() {
//	    return gobreaker.ErrOpenState
//	}
//
//	value, err := retry.Do(ctx, retry.AIAPIConfig(), func(ctx context.Context, attempt int) (string, error) {
//	    return callProvider()
//	})
package resilience
