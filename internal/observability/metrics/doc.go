// Package metrics aggregates generation outcomes per task type.
//
// A Collector keeps success, failure, retry and cache hit counters together
// with latency statistics for every task type it has seen, and renders them
// as structured maps or a human-readable report. It is pure bookkeeping with
// no global state; construct one per pipeline.
//
// Every observation can additionally be mirrored to a Recorder. The
// Prometheus implementation registers its collectors on a caller supplied
// registerer so several instances can coexist in one process.
//
// Example usage:
//
//	reg := prometheus.NewRegistry()
//	collector := metrics.NewCollector(metrics.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
//	start := time.Now()
//	// ... generate ...
//	collector.RecordSuccess("eli5", time.Since(start), false)
//
//	fmt.Println(collector.Report())
package metrics
