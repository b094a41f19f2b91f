// Copyright 2026 fanjia1024

// Package tracing wraps OpenTelemetry span creation for governed execution.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "neurorail"

// NewTracerProvider builds a TracerProvider with no exporter attached;
// spans are created and attributed but not shipped off-process. Wiring an
// actual exporter is the out-of-scope transport/collector layer.
func NewTracerProvider() *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider()
}

// StartAttemptSpan starts a span covering one job attempt.
func StartAttemptSpan(ctx context.Context, jobID, attemptID string) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, "attempt.execute",
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.String("attempt.id", attemptID),
		),
	)
}

// StartStepSpan starts a span covering one execution step within an attempt.
func StartStepSpan(ctx context.Context, stepID, executorType string) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, "step.execute",
		trace.WithAttributes(
			attribute.String("step.id", stepID),
			attribute.String("step.executor_type", executorType),
		),
	)
}

// StartDecisionSpan starts a span covering one governor decision evaluation.
func StartDecisionSpan(ctx context.Context, jobID, jobType string) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, "governor.decide",
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.String("job.type", jobType),
		),
	)
}
