package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/airlift"
)

// tracerName is the instrumentation scope name for airlift tracing.
const tracerName = "github.com/xraph/airlift"

// Tracing returns middleware that wraps task execution in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop tracer
// is used and this middleware becomes a pass-through with zero overhead.
//
// Span attributes include: airlift.task.id, airlift.operation, airlift.queue,
// airlift.job_id, airlift.attempt.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, t *airlift.Task, next Handler) error {
		ctx, span := tracer.Start(ctx, "airlift.task.execute",
			trace.WithAttributes(
				attribute.String("airlift.task.id", t.ID),
				attribute.String("airlift.operation", t.Operation),
				attribute.String("airlift.queue", t.Queue),
				attribute.String("airlift.job_id", t.JobID),
				attribute.Int("airlift.attempt", t.Attempt),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
