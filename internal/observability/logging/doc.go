// Package logging provides structured logging utilities with context propagation.
//
// Key features:
//   - JSON output
//   - Generation request ID propagation
//   - Configurable log levels (LOG_LEVEL)
//
// Example usage:
//
//	import "code-reels/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewJSONLogger(os.Stderr, logging.ParseLevel(os.Getenv("LOG_LEVEL")))
//	    logger.Info("generation started", slog.String("task_type", "eli5"))
//	}
//
//	func generate(ctx context.Context) {
//	    ctx = logging.ContextWithRequestID(ctx, uuid.NewString())
//	    logger := logging.WithRequestID(ctx, slog.Default())
//	    logger.Info("calling provider")
//	}
package logging
