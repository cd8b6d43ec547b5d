// Package observability provides OpenTelemetry tracing and metrics for the
// emhttp request handler.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("emhttp"))
//	defer tp.Shutdown(ctx)
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("emhttp"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("emhttp"))
//	metrics.RecordRequest(ctx, "GET", observability.OutcomeSucceeded, duration)
//
// Both providers can be set up from configuration with Init.
package observability
