package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

// Request status label values.
const (
	StatusSuccess  = "success"
	StatusCacheHit = "cache_hit"
	StatusFailure  = "failure"
)

// PrometheusRecorder implements Recorder with Prometheus collectors. It also
// exposes gauges for circuit breaker state and cache size, which the
// orchestrator updates directly.
type PrometheusRecorder struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	failuresTotal   *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec

	circuitBreakerState *prometheus.GaugeVec
	cacheEntries        prometheus.Gauge
}

// NewPrometheusRecorder registers the generation collectors on reg.
// Registering twice on the same registerer panics, as with promauto.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genai_requests_total",
				Help: "Total number of generation requests by outcome",
			},
			[]string{"task_type", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "genai_request_duration_seconds",
				Help:    "Duration of successful generation requests in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"task_type", "source"},
		),
		failuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genai_failures_total",
				Help: "Total number of failed generation requests by reason",
			},
			[]string{"task_type", "reason"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genai_retries_total",
				Help: "Total number of retried provider attempts",
			},
			[]string{"task_type"},
		),
		circuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "genai_circuit_breaker_state",
				Help: "Current state of the provider circuit breaker (0=closed, 1=half-open, 2=open)",
			},
			[]string{"circuit"},
		),
		cacheEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "genai_cache_entries",
				Help: "Number of entries held in the response cache",
			},
		),
	}
}

// ObserveSuccess implements Recorder.
func (p *PrometheusRecorder) ObserveSuccess(taskType string, latency time.Duration, fromCache bool) {
	status, source := StatusSuccess, "provider"
	if fromCache {
		status, source = StatusCacheHit, "cache"
	}
	p.requestsTotal.WithLabelValues(taskType, status).Inc()
	p.requestDuration.WithLabelValues(taskType, source).Observe(latency.Seconds())
}

// ObserveFailure implements Recorder.
func (p *PrometheusRecorder) ObserveFailure(taskType, reason string) {
	p.requestsTotal.WithLabelValues(taskType, StatusFailure).Inc()
	p.failuresTotal.WithLabelValues(taskType, reason).Inc()
}

// ObserveRetry implements Recorder.
func (p *PrometheusRecorder) ObserveRetry(taskType string) {
	p.retriesTotal.WithLabelValues(taskType).Inc()
}

// SetCircuitState records the state of a named circuit breaker. The value
// follows gobreaker.State ordering.
func (p *PrometheusRecorder) SetCircuitState(name string, state gobreaker.State) {
	p.circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// SetCacheEntries records the current cache size.
func (p *PrometheusRecorder) SetCacheEntries(n int) {
	p.cacheEntries.Set(float64(n))
}
