package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// Failure reasons passed to RecordFailure.
const (
	ReasonValidation  = "validation"
	ReasonCircuitOpen = "circuit_open"
	ReasonExhausted   = "retries_exhausted"
	ReasonCanceled    = "canceled"
	ReasonError       = "error"
)

// Recorder mirrors collector observations to an external metrics system.
type Recorder interface {
	ObserveSuccess(taskType string, latency time.Duration, fromCache bool)
	ObserveFailure(taskType, reason string)
	ObserveRetry(taskType string)
}

// NoopRecorder discards every observation.
type NoopRecorder struct{}

// ObserveSuccess implements Recorder.
func (NoopRecorder) ObserveSuccess(string, time.Duration, bool) {}

// ObserveFailure implements Recorder.
func (NoopRecorder) ObserveFailure(string, string) {}

// ObserveRetry implements Recorder.
func (NoopRecorder) ObserveRetry(string) {}

// TaskStats is the reported view of one task type. Rates are percentages with
// one decimal place and latencies are whole milliseconds.
type TaskStats struct {
	TaskType           string    `json:"task_type"`
	Success            int64     `json:"success"`
	Failed             int64     `json:"failed"`
	Retries            int64     `json:"retries"`
	CacheHits          int64     `json:"cache_hits"`
	ValidationFailures int64     `json:"validation_failures"`
	SuccessRate        float64   `json:"success_rate"`
	CacheHitRate       float64   `json:"cache_hit_rate"`
	AvgLatencyMs       int64     `json:"avg_latency_ms"`
	MinLatencyMs       int64     `json:"min_latency_ms"`
	MaxLatencyMs       int64     `json:"max_latency_ms"`
	LastRun            time.Time `json:"last_run"`
}

// Summary aggregates every task type.
type Summary struct {
	Uptime             time.Duration `json:"uptime"`
	TaskTypes          int           `json:"task_types"`
	TotalRequests      int64         `json:"total_requests"`
	Success            int64         `json:"success"`
	Failed             int64         `json:"failed"`
	Retries            int64         `json:"retries"`
	CacheHits          int64         `json:"cache_hits"`
	ValidationFailures int64         `json:"validation_failures"`
	SuccessRate        float64       `json:"success_rate"`
	CacheHitRate       float64       `json:"cache_hit_rate"`
	AvgLatencyMs       int64         `json:"avg_latency_ms"`
}

type taskRecord struct {
	success            int64
	failed             int64
	retries            int64
	cacheHits          int64
	validationFailures int64
	totalLatency       time.Duration
	minLatency         time.Duration
	maxLatency         time.Duration
	lastRun            time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		c.now = now
	}
}

// WithRecorder mirrors every observation to r.
func WithRecorder(r Recorder) Option {
	return func(c *Collector) {
		if r != nil {
			c.recorder = r
		}
	}
}

// Collector aggregates per task type outcomes. It is safe for concurrent use.
type Collector struct {
	mu        sync.Mutex
	tasks     map[string]*taskRecord
	startedAt time.Time

	now      func() time.Time
	recorder Recorder
}

// NewCollector creates an empty collector. Uptime is measured from now.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		tasks:    make(map[string]*taskRecord),
		now:      time.Now,
		recorder: NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.startedAt = c.now()
	return c
}

// record must be called with mu held.
func (c *Collector) record(taskType string) *taskRecord {
	rec, ok := c.tasks[taskType]
	if !ok {
		rec = &taskRecord{}
		c.tasks[taskType] = rec
	}
	return rec
}

// RecordSuccess records a successful request. Cache hits count as successes
// and contribute their latency.
func (c *Collector) RecordSuccess(taskType string, latency time.Duration, fromCache bool) {
	c.mu.Lock()
	rec := c.record(taskType)
	rec.success++
	if fromCache {
		rec.cacheHits++
	}
	rec.totalLatency += latency
	if rec.success == 1 || latency < rec.minLatency {
		rec.minLatency = latency
	}
	if latency > rec.maxLatency {
		rec.maxLatency = latency
	}
	rec.lastRun = c.now()
	c.mu.Unlock()

	c.recorder.ObserveSuccess(taskType, latency, fromCache)
}

// RecordFailure records a failed request. The ReasonValidation reason also
// counts as a validation failure.
func (c *Collector) RecordFailure(taskType, reason string) {
	c.mu.Lock()
	rec := c.record(taskType)
	rec.failed++
	if reason == ReasonValidation {
		rec.validationFailures++
	}
	rec.lastRun = c.now()
	c.mu.Unlock()

	c.recorder.ObserveFailure(taskType, reason)
}

// RecordRetry records one retried attempt.
func (c *Collector) RecordRetry(taskType string) {
	c.mu.Lock()
	c.record(taskType).retries++
	c.mu.Unlock()

	c.recorder.ObserveRetry(taskType)
}

// Task returns the statistics of one task type.
func (c *Collector) Task(taskType string) (TaskStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.tasks[taskType]
	if !ok {
		return TaskStats{TaskType: taskType}, false
	}
	return rec.stats(taskType), true
}

// Tasks returns the statistics of every task type seen since the last reset.
func (c *Collector) Tasks() map[string]TaskStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]TaskStats, len(c.tasks))
	for taskType, rec := range c.tasks {
		out[taskType] = rec.stats(taskType)
	}
	return out
}

// Summary aggregates all task types.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{
		Uptime:    c.now().Sub(c.startedAt),
		TaskTypes: len(c.tasks),
	}
	var totalLatency time.Duration
	for _, rec := range c.tasks {
		s.Success += rec.success
		s.Failed += rec.failed
		s.Retries += rec.retries
		s.CacheHits += rec.cacheHits
		s.ValidationFailures += rec.validationFailures
		totalLatency += rec.totalLatency
	}
	s.TotalRequests = s.Success + s.Failed
	s.SuccessRate = percentage(s.Success, s.TotalRequests)
	s.CacheHitRate = percentage(s.CacheHits, s.TotalRequests)
	s.AvgLatencyMs = averageMs(totalLatency, s.Success)
	return s
}

// Report renders the summary and every task type as text, task types in
// name order.
func (c *Collector) Report() string {
	summary := c.Summary()
	tasks := c.Tasks()

	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "Generation metrics (uptime %s)\n", summary.Uptime.Round(time.Second))
	fmt.Fprintf(&b, "  requests: %d  success: %d  failed: %d  retries: %d  cache hits: %d\n",
		summary.TotalRequests, summary.Success, summary.Failed, summary.Retries, summary.CacheHits)
	fmt.Fprintf(&b, "  success rate: %.1f%%  cache hit rate: %.1f%%  avg latency: %dms\n",
		summary.SuccessRate, summary.CacheHitRate, summary.AvgLatencyMs)

	for _, name := range names {
		t := tasks[name]
		fmt.Fprintf(&b, "  [%s] success=%d failed=%d retries=%d cache_hits=%d validation_failures=%d "+
			"success_rate=%.1f%% cache_hit_rate=%.1f%% latency avg=%dms min=%dms max=%dms\n",
			name, t.Success, t.Failed, t.Retries, t.CacheHits, t.ValidationFailures,
			t.SuccessRate, t.CacheHitRate, t.AvgLatencyMs, t.MinLatencyMs, t.MaxLatencyMs)
	}
	return b.String()
}

// Reset clears every task type and restarts the uptime clock.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tasks = make(map[string]*taskRecord)
	c.startedAt = c.now()
}

func (r *taskRecord) stats(taskType string) TaskStats {
	total := r.success + r.failed
	return TaskStats{
		TaskType:           taskType,
		Success:            r.success,
		Failed:             r.failed,
		Retries:            r.retries,
		CacheHits:          r.cacheHits,
		ValidationFailures: r.validationFailures,
		SuccessRate:        percentage(r.success, total),
		CacheHitRate:       percentage(r.cacheHits, total),
		AvgLatencyMs:       averageMs(r.totalLatency, r.success),
		MinLatencyMs:       roundMs(r.minLatency),
		MaxLatencyMs:       roundMs(r.maxLatency),
		LastRun:            r.lastRun,
	}
}

func percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

func averageMs(total time.Duration, count int64) int64 {
	if count == 0 {
		return 0
	}
	return int64(math.Round(float64(total) / float64(count) / float64(time.Millisecond)))
}

func roundMs(d time.Duration) int64 {
	return int64(math.Round(float64(d) / float64(time.Millisecond)))
}
