// Package tracing provides OpenTelemetry tracing integration for the
// generation pipeline.
//
// The orchestrator opens one span per logical request and one child span per
// provider attempt. Without a configured provider the global no-op provider
// is used and spans cost almost nothing. Setup installs an SDK provider that
// writes finished spans to the debug log.
//
// Example usage:
//
//	import "code-reels/internal/observability/tracing"
//
//	func main() {
//	    shutdown := tracing.Setup(logger)
//	    defer shutdown(context.Background())
//	}
//
//	func generate(ctx context.Context) {
//	    ctx, span := tracing.GetTracer().Start(ctx, "genai.generate")
//	    defer span.End()
//	    // ... call provider ...
//	}
package tracing
