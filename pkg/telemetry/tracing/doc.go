// Package tracing provides OpenTelemetry tracing for metering operations.
//
// # Overview
//
// Every Record and Evaluate call on the engine opens a span carrying the
// actor, usage type, period and outcome. Spans are exported over OTLP gRPC
// when tracing is enabled and dropped by a noop tracer otherwise.
//
// # Sampling Strategies
//
// Three sampling strategies are supported:
//   - always: Sample all traces (development/debugging)
//   - never: Sample no traces
//   - ratio: Sample a percentage of traces (production)
//
// All samplers are parent based, so a trace started upstream keeps its
// sampling decision.
//
// # Usage
//
//	tracer, err := tracing.New(cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, tracing.SpanRecord)
//	defer span.End()
package tracing
