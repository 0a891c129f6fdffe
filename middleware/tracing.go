package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowmech/conduct/node"
)

// tracerName is the instrumentation scope name for conduct tracing.
const tracerName = "github.com/flowmech/conduct"

// Tracing returns middleware that wraps node dispatch in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop
// tracer is used and this middleware becomes a pass-through with zero
// overhead.
//
// Span attributes include: conduct.execution.id, conduct.action.id,
// conduct.node.id. On error, the span status is set to codes.Error with
// the error message; otherwise the result status is recorded.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, inv *node.Invocation, next Handler) (*node.Result, error) {
		ctx, span := tracer.Start(ctx, "conduct.action.dispatch",
			trace.WithAttributes(
				attribute.String("conduct.execution.id", inv.ExecutionID.String()),
				attribute.String("conduct.action.id", inv.ActionID.String()),
				attribute.String("conduct.node.id", inv.NodeID.String()),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		res, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("conduct.action.status", string(res.Status)))
			span.SetStatus(codes.Ok, "")
		}

		return res, err
	}
}
