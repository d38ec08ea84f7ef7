package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric family %s not found", name)
	return nil
}

func TestPrometheusRecorder_Requests(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveSuccess("eli5", 200*time.Millisecond, false)
	rec.ObserveSuccess("eli5", time.Millisecond, true)
	rec.ObserveFailure("eli5", ReasonValidation)
	rec.ObserveRetry("eli5")
	rec.ObserveRetry("eli5")

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.requestsTotal.WithLabelValues("eli5", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.requestsTotal.WithLabelValues("eli5", StatusCacheHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.requestsTotal.WithLabelValues("eli5", StatusFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.failuresTotal.WithLabelValues("eli5", ReasonValidation)))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.retriesTotal.WithLabelValues("eli5")))
}

func TestPrometheusRecorder_DurationHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveSuccess("tldr", 100*time.Millisecond, false)
	rec.ObserveSuccess("tldr", 300*time.Millisecond, false)

	mf := findMetricFamily(t, reg, "genai_request_duration_seconds")
	require.Equal(t, dto.MetricType_HISTOGRAM, mf.GetType())
	require.Len(t, mf.GetMetric(), 1)

	h := mf.GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(2), h.GetSampleCount())
	assert.InDelta(t, 0.4, h.GetSampleSum(), 1e-9)
}

func TestPrometheusRecorder_Gauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.SetCircuitState("claude", gobreaker.StateOpen)
	rec.SetCircuitState("openai", gobreaker.StateHalfOpen)
	rec.SetCacheEntries(42)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.circuitBreakerState.WithLabelValues("claude")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.circuitBreakerState.WithLabelValues("openai")))
	assert.Equal(t, 42.0, testutil.ToFloat64(rec.cacheEntries))
}

func TestPrometheusRecorder_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusRecorder(prometheus.NewRegistry())
		NewPrometheusRecorder(prometheus.NewRegistry())
	})
}

func TestPrometheusRecorder_ThroughCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)
	c := NewCollector(WithRecorder(rec))

	c.RecordSuccess("diagram", 50*time.Millisecond, false)
	c.RecordRetry("diagram")

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.requestsTotal.WithLabelValues("diagram", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.retriesTotal.WithLabelValues("diagram")))
}
