// Package cache stores generated AI responses in memory with a TTL and a
// bounded size. When full, the oldest inserted entry is evicted first.
//
// Expiry is checked lazily on Get; there is no sweep goroutine, so expired
// entries stay in memory until they are looked up or pushed out by eviction.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Config holds the cache settings.
type Config struct {
	// Enabled turns caching on. A disabled cache misses on every Get and ignores Set.
	Enabled bool

	// TTL is the default lifetime of an entry
	TTL time.Duration

	// MaxSize is the maximum number of entries kept at once
	MaxSize int
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		TTL:     24 * time.Hour,
		MaxSize: 1000,
	}
}

// Validate checks configuration correctness.
func (c Config) Validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %v", c.TTL)
	}
	if c.MaxSize < 1 {
		return fmt.Errorf("cache max size must be at least 1, got %d", c.MaxSize)
	}
	return nil
}

// Entry is a stored response. ExpiresAt is always CreatedAt plus the TTL the
// entry was stored with.
type Entry struct {
	Key       string
	Value     any
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the logger used for eviction diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// Cache is an in-memory response cache. It is safe for concurrent use.
type Cache struct {
	mu sync.Mutex

	cfg Config

	// order holds *Entry values from oldest (front) to newest insertion
	order   *list.List
	entries map[string]*list.Element

	hits   int64
	misses int64

	now    func() time.Time
	logger *slog.Logger
}

// New creates a cache. The configuration is validated even when the cache is
// disabled so that enabling it later through configuration cannot fail.
func New(cfg Config, opts ...Option) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}

	c := &Cache{
		cfg:     cfg,
		order:   list.New(),
		entries: make(map[string]*list.Element),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// keyMaterial fixes the field order of the hashed document.
type keyMaterial struct {
	TaskType string `json:"task_type"`
	Context  any    `json:"context"`
	Model    string `json:"model"`
}

// ComputeKey derives the cache key for a request. It is a hex encoded SHA-256
// over the JSON form of the task type, context payload and model. Map keys in
// the payload are sorted by encoding/json, so equal payloads give equal keys.
func ComputeKey(taskType string, payload any, model string) (string, error) {
	data, err := json.Marshal(keyMaterial{
		TaskType: taskType,
		Context:  payload,
		Model:    model,
	})
	if err != nil {
		return "", fmt.Errorf("serialize cache key material: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Enabled reports whether the cache stores anything.
func (c *Cache) Enabled() bool {
	return c.cfg.Enabled
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.cfg
}

// Get returns the value stored under key. Unknown and expired keys are misses;
// an expired entry is removed.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cfg.Enabled {
		c.misses++
		return nil, false
	}

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	entry := elem.Value.(*Entry)
	if c.now().After(entry.ExpiresAt) {
		c.removeElement(elem)
		c.misses++
		return nil, false
	}

	c.hits++
	return entry.Value, true
}

// Set stores value under key with the configured TTL.
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.cfg.TTL)
}

// SetWithTTL stores value under key with a custom TTL. Non-positive TTLs use
// the configured default. Storing an existing key replaces the value and
// makes it the newest entry without evicting anything else.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.TTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cfg.Enabled {
		return
	}

	now := c.now()
	entry := &Entry{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if elem, ok := c.entries[key]; ok {
		elem.Value = entry
		c.order.MoveToBack(elem)
		return
	}

	if c.order.Len() >= c.cfg.MaxSize {
		if oldest := c.order.Front(); oldest != nil {
			evicted := oldest.Value.(*Entry)
			c.removeElement(oldest)
			c.logger.Debug("cache entry evicted",
				slog.String("key", evicted.Key),
				slog.Int("max_size", c.cfg.MaxSize))
		}
	}

	c.entries[key] = c.order.PushBack(entry)
}

// Delete removes key from the cache.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeElement(elem)
	}
}

// Clear removes every entry and resets the hit and miss counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*list.Element)
	c.hits = 0
	c.misses = 0
}

// Len returns the number of stored entries, including expired ones not yet
// looked up.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns the current counters. HitRate is a percentage with one
// decimal place, or 0 before the first lookup.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: percentage(c.hits, c.hits+c.misses),
		Size:    c.order.Len(),
		MaxSize: c.cfg.MaxSize,
	}
}

// removeElement must be called with mu held.
func (c *Cache) removeElement(elem *list.Element) {
	entry := c.order.Remove(elem).(*Entry)
	delete(c.entries, entry.Key)
}

func percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}
