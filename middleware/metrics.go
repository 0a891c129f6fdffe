package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/flowmech/conduct/node"
)

// meterName is the instrumentation scope name for conduct metrics.
const meterName = "github.com/flowmech/conduct"

// Metrics returns middleware that records per-dispatch metrics using the
// global OTel MeterProvider. If no MeterProvider is configured, noop
// instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - conduct.action.duration (Float64Histogram): dispatch time in
//     seconds, with attributes: node_id, status
//   - conduct.action.dispatches (Int64Counter): total dispatches,
//     with attributes: node_id, status
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Create instruments once at middleware construction time.
	// OTel instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"conduct.action.duration",
		metric.WithDescription("Duration of node dispatch in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	dispatches, cErr := meter.Int64Counter(
		"conduct.action.dispatches",
		metric.WithDescription("Total number of node dispatches"),
		metric.WithUnit("{dispatch}"),
	)
	_ = cErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, inv *node.Invocation, next Handler) (*node.Result, error) {
		start := time.Now()
		res, err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "error"
		if err == nil {
			status = string(res.Status)
		}

		attrs := metric.WithAttributes(
			attribute.String("node_id", inv.NodeID.String()),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		dispatches.Add(ctx, 1, attrs)

		return res, err
	}
}
