// Package o11y provides observability primitives for the callwave voice
// orchestrator: OpenTelemetry-based tracing and metrics, structured logging
// via slog, health checks, and call-data trace exporting.
//
// # Tracing
//
// [StartSpan] creates spans with typed attributes under the "callwave.*"
// namespace, and [InitTracer] configures the global OTel tracer provider:
//
//	shutdown, err := o11y.InitTracer("callwave-server",
//	    o11y.WithSpanExporter(exporter),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer shutdown()
//
//	ctx, span := o11y.StartSpan(ctx, "voicesession.thinking", o11y.Attrs{
//	    o11y.AttrCallID:   callID,
//	    o11y.AttrProvider: "anthropic",
//	})
//	defer span.End()
//
// The [Span] interface wraps OTel spans with a simplified API for setting
// attributes, recording errors, and setting status codes.
//
// # Metrics
//
// Pre-registered metric instruments track pool utilization, outbound call
// concurrency, and per-turn latency:
//
//	o11y.PoolUtilization(ctx, "stt", active, queueDepth)
//	o11y.TurnLatency(ctx, "thinking", durationMs)
//
// [InitMeter] configures the package-level meter with a service name.
// Generic [Counter] and [Histogram] functions allow recording custom metrics.
//
// # Logging
//
// [Logger] wraps slog.Logger with context-aware convenience methods and
// functional options for configuration:
//
//	logger := o11y.NewLogger(
//	    o11y.WithLogLevel("debug"),
//	    o11y.WithJSON(),
//	)
//	logger.Info(ctx, "request completed",
//	    "model", "gpt-4o",
//	    "tokens", 150,
//	)
//
// Loggers propagate through context via [WithLogger] and [FromContext].
//
// # Trace Exporting
//
// The [TraceExporter] interface captures completed-call data for analysis
// backends. [CallData] holds the full details of a single call including
// duration, provider, cost accumulators, and failure reason.
// [MultiExporter] fans out to multiple backends simultaneously:
//
//	multi := o11y.NewMultiExporter(billingExp, analyticsExp)
//	err := multi.ExportCall(ctx, data)
//
// # Health Checks
//
// The [HealthChecker] interface provides health probes for components.
// [HealthRegistry] aggregates named checkers and runs them concurrently
// via [HealthRegistry.CheckAll]:
//
//	registry := o11y.NewHealthRegistry()
//	registry.Register("database", dbChecker)
//	registry.Register("cache", cacheChecker)
//	results := registry.CheckAll(ctx)
//
// [HealthCheckerFunc] adapts plain functions to the HealthChecker interface.
//
// # Attribute Constants
//
// The package exports standard span attribute keys used across the
// orchestrator: [AttrCallID], [AttrSessionID], [AttrAgentID],
// [AttrScheduledCallID], [AttrOperationName], and [AttrProvider].
package o11y
