package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type spyRecorder struct {
	mu        sync.Mutex
	successes []string
	failures  []string
	retries   []string
}

func (s *spyRecorder) ObserveSuccess(taskType string, _ time.Duration, fromCache bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fromCache {
		taskType += ":cache"
	}
	s.successes = append(s.successes, taskType)
}

func (s *spyRecorder) ObserveFailure(taskType, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, taskType+":"+reason)
}

func (s *spyRecorder) ObserveRetry(taskType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries = append(s.retries, taskType)
}

func TestCollector_LatencyStats(t *testing.T) {
	c := NewCollector()

	for _, ms := range []int{10, 50, 20} {
		c.RecordSuccess("eli5", time.Duration(ms)*time.Millisecond, false)
	}

	stats, ok := c.Task("eli5")
	require.True(t, ok)
	assert.Equal(t, int64(3), stats.Success)
	assert.Equal(t, int64(27), stats.AvgLatencyMs)
	assert.Equal(t, int64(10), stats.MinLatencyMs)
	assert.Equal(t, int64(50), stats.MaxLatencyMs)
	assert.Equal(t, 100.0, stats.SuccessRate)
}

func TestCollector_Rates(t *testing.T) {
	c := NewCollector()

	c.RecordSuccess("tldr", 5*time.Millisecond, true)
	c.RecordSuccess("tldr", 100*time.Millisecond, false)
	c.RecordFailure("tldr", ReasonError)

	stats, _ := c.Task("tldr")
	assert.Equal(t, int64(2), stats.Success)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, 66.7, stats.SuccessRate)
	assert.Equal(t, 33.3, stats.CacheHitRate)
	assert.Equal(t, int64(5), stats.MinLatencyMs, "cache hit latency counts")
	assert.Equal(t, int64(53), stats.AvgLatencyMs)
}

func TestCollector_FailureReasons(t *testing.T) {
	c := NewCollector()

	c.RecordFailure("diagram", ReasonValidation)
	c.RecordFailure("diagram", ReasonCircuitOpen)
	c.RecordFailure("diagram", ReasonExhausted)

	stats, _ := c.Task("diagram")
	assert.Equal(t, int64(3), stats.Failed)
	assert.Equal(t, int64(1), stats.ValidationFailures)
	assert.Equal(t, 0.0, stats.SuccessRate)
	assert.Equal(t, int64(0), stats.AvgLatencyMs, "no successes means zero average")
	assert.Equal(t, int64(0), stats.MinLatencyMs)
}

func TestCollector_RetriesAreIndependent(t *testing.T) {
	c := NewCollector()

	c.RecordRetry("eli5")
	c.RecordRetry("eli5")

	stats, ok := c.Task("eli5")
	require.True(t, ok, "a retry alone creates the record")
	assert.Equal(t, int64(2), stats.Retries)
	assert.Zero(t, stats.Success)
	assert.Zero(t, stats.Failed)
}

func TestCollector_UnknownTask(t *testing.T) {
	c := NewCollector()

	stats, ok := c.Task("nope")
	assert.False(t, ok)
	assert.Equal(t, TaskStats{TaskType: "nope"}, stats)
}

func TestCollector_Summary(t *testing.T) {
	clock := newFakeClock()
	c := NewCollector(WithClock(clock.Now))

	c.RecordSuccess("eli5", 10*time.Millisecond, false)
	c.RecordSuccess("tldr", 30*time.Millisecond, true)
	c.RecordFailure("tldr", ReasonValidation)
	c.RecordRetry("eli5")
	clock.Advance(90 * time.Second)

	s := c.Summary()
	assert.Equal(t, 90*time.Second, s.Uptime)
	assert.Equal(t, 2, s.TaskTypes)
	assert.Equal(t, int64(3), s.TotalRequests)
	assert.Equal(t, int64(2), s.Success)
	assert.Equal(t, int64(1), s.Failed)
	assert.Equal(t, int64(1), s.Retries)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(1), s.ValidationFailures)
	assert.Equal(t, 66.7, s.SuccessRate)
	assert.Equal(t, 33.3, s.CacheHitRate)
	assert.Equal(t, int64(20), s.AvgLatencyMs)
}

func TestCollector_LastRun(t *testing.T) {
	clock := newFakeClock()
	c := NewCollector(WithClock(clock.Now))

	clock.Advance(time.Minute)
	c.RecordSuccess("eli5", time.Millisecond, false)
	stats, _ := c.Task("eli5")
	assert.Equal(t, clock.Now(), stats.LastRun)

	clock.Advance(time.Minute)
	c.RecordFailure("eli5", ReasonError)
	stats, _ = c.Task("eli5")
	assert.Equal(t, clock.Now(), stats.LastRun)
}

func TestCollector_Reset(t *testing.T) {
	clock := newFakeClock()
	c := NewCollector(WithClock(clock.Now))

	c.RecordSuccess("eli5", time.Millisecond, false)
	clock.Advance(time.Hour)
	c.Reset()

	assert.Empty(t, c.Tasks())
	s := c.Summary()
	assert.Zero(t, s.Uptime)
	assert.Zero(t, s.TotalRequests)
}

func TestCollector_Report(t *testing.T) {
	c := NewCollector()
	c.RecordSuccess("tldr", 20*time.Millisecond, false)
	c.RecordSuccess("eli5", 10*time.Millisecond, false)
	c.RecordRetry("eli5")

	report := c.Report()

	assert.Contains(t, report, "requests: 2")
	assert.Contains(t, report, "success rate: 100.0%")
	assert.Contains(t, report, "[eli5] success=1 failed=0 retries=1")
	assert.Contains(t, report, "avg=10ms")
	assert.Less(t, strings.Index(report, "[eli5]"), strings.Index(report, "[tldr]"), "task types in name order")
}

func TestCollector_MirrorsToRecorder(t *testing.T) {
	spy := &spyRecorder{}
	c := NewCollector(WithRecorder(spy))

	c.RecordSuccess("eli5", time.Millisecond, false)
	c.RecordSuccess("eli5", time.Millisecond, true)
	c.RecordFailure("tldr", ReasonValidation)
	c.RecordRetry("tldr")

	assert.Equal(t, []string{"eli5", "eli5:cache"}, spy.successes)
	assert.Equal(t, []string{"tldr:validation"}, spy.failures)
	assert.Equal(t, []string{"tldr"}, spy.retries)
}

func TestCollector_ConcurrentUpdates(t *testing.T) {
	c := NewCollector()

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			c.RecordSuccess("eli5", time.Millisecond, false)
			c.RecordFailure("eli5", ReasonError)
			c.RecordRetry("eli5")
			return nil
		})
	}
	require.NoError(t, g.Wait())

	stats, _ := c.Task("eli5")
	assert.Equal(t, int64(50), stats.Success)
	assert.Equal(t, int64(50), stats.Failed)
	assert.Equal(t, int64(50), stats.Retries)
}
