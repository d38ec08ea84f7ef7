// Package observability groups the logging, metrics and tracing support of
// the generation pipeline.
//
// Subpackages:
//   - logging: structured logging utilities with slog
//   - metrics: per task type collector with an optional Prometheus recorder
//   - tracing: OpenTelemetry tracer access and a log based span exporter
//
// Example usage:
//
//	import (
//	    "code-reels/internal/observability/logging"
//	    "code-reels/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewJSONLogger(os.Stderr, logging.ParseLevel(os.Getenv("LOG_LEVEL")))
//	    collector := metrics.NewCollector()
//	    collector.RecordSuccess("eli5", 120*time.Millisecond, false)
//	    logger.Info("generation finished", slog.String("report", collector.Report()))
//	}
package observability
