package circuitbreaker

import (
	"sort"
	"sync"
)

// Registry holds one circuit breaker per provider name. Breakers are created
// on first use and live for the lifetime of the registry.
type Registry struct {
	mu       sync.Mutex
	defaults Config
	opts     []Option
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates a registry whose breakers start from defaults. The
// options are applied to every breaker the registry creates.
func NewRegistry(defaults Config, opts ...Option) *Registry {
	return &Registry{
		defaults: defaults,
		opts:     opts,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Defaults returns the configuration new breakers start from.
func (r *Registry) Defaults() Config {
	return r.defaults
}

// Get returns the breaker for name, creating it from the registry defaults.
func (r *Registry) Get(name string) *CircuitBreaker {
	cfg := r.defaults
	cfg.Name = name
	return r.GetWithConfig(name, cfg)
}

// GetWithConfig returns the breaker for name, creating it from cfg when it
// does not exist yet. An existing breaker keeps its original configuration.
func (r *Registry) GetWithConfig(name string, cfg Config) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}
	cfg.Name = name
	cb := New(cfg, r.opts...)
	r.breakers[name] = cb
	return cb
}

// Snapshots returns the state of every breaker, sorted by name.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.Unlock()

	snapshots := make([]Snapshot, 0, len(breakers))
	for _, cb := range breakers {
		snapshots = append(snapshots, cb.Snapshot())
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Name < snapshots[j].Name
	})
	return snapshots
}

// ResetAll forces every breaker closed.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.Unlock()

	for _, cb := range breakers {
		cb.Reset()
	}
}
