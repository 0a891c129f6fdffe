package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/flowmech/conduct"
	"github.com/flowmech/conduct/ext"
	"github.com/flowmech/conduct/node"
)

const meterName = "github.com/flowmech/conduct/observability"

// Compile-time interface checks.
var (
	_ ext.Extension          = (*MetricsExtension)(nil)
	_ ext.ActionDispatched   = (*MetricsExtension)(nil)
	_ ext.ActionCompleted    = (*MetricsExtension)(nil)
	_ ext.ActionInterrupted  = (*MetricsExtension)(nil)
	_ ext.ActionErrored      = (*MetricsExtension)(nil)
	_ ext.ExecutionCompleted = (*MetricsExtension)(nil)
	_ ext.ExecutionStopped   = (*MetricsExtension)(nil)
)

// MetricsExtension records scheduler-wide lifecycle metrics. Register it
// as an engine extension to automatically track dispatch rates, settle
// counts by outcome, action duration, and execution terminations.
type MetricsExtension struct {
	dispatched  metric.Int64Counter
	settled     metric.Int64Counter
	duration    metric.Float64Histogram
	completions metric.Int64Counter
	stops       metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. Without a configured provider the instruments are
// noops, so registering the extension is always safe.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. Use this to inject a specific MeterProvider in tests.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}

	// OTel returns noop instruments alongside instrument errors, so the
	// fields are always usable.
	m.dispatched, _ = meter.Int64Counter(
		"conduct.scheduler.actions.dispatched",
		metric.WithDescription("Actions handed to node handlers"),
		metric.WithUnit("{action}"),
	)
	m.settled, _ = meter.Int64Counter(
		"conduct.scheduler.actions.settled",
		metric.WithDescription("Actions that reported an outcome, by status"),
		metric.WithUnit("{action}"),
	)
	m.duration, _ = meter.Float64Histogram(
		"conduct.scheduler.action.duration",
		metric.WithDescription("Time from dispatch to settlement in seconds"),
		metric.WithUnit("s"),
	)
	m.completions, _ = meter.Int64Counter(
		"conduct.scheduler.executions.completed",
		metric.WithDescription("Executions that drained to completion"),
		metric.WithUnit("{execution}"),
	)
	m.stops, _ = meter.Int64Counter(
		"conduct.scheduler.executions.stopped",
		metric.WithDescription("Executions aborted before completion"),
		metric.WithUnit("{execution}"),
	)

	return m
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnActionDispatched implements ext.ActionDispatched.
func (m *MetricsExtension) OnActionDispatched(ctx context.Context, inv *node.Invocation) error {
	m.dispatched.Add(ctx, 1, metric.WithAttributes(
		attribute.String("node_id", inv.NodeID.String()),
	))
	return nil
}

// OnActionCompleted implements ext.ActionCompleted.
func (m *MetricsExtension) OnActionCompleted(ctx context.Context, inv *node.Invocation, res *node.Result, elapsed time.Duration) error {
	m.settle(ctx, inv, res.Status, elapsed)
	return nil
}

// OnActionInterrupted implements ext.ActionInterrupted.
func (m *MetricsExtension) OnActionInterrupted(ctx context.Context, inv *node.Invocation, _ *node.Result) error {
	m.settle(ctx, inv, conduct.StatusInterrupted, 0)
	return nil
}

// OnActionErrored implements ext.ActionErrored.
func (m *MetricsExtension) OnActionErrored(ctx context.Context, inv *node.Invocation, _ *node.Result) error {
	m.settle(ctx, inv, conduct.StatusError, 0)
	return nil
}

// OnExecutionCompleted implements ext.ExecutionCompleted.
func (m *MetricsExtension) OnExecutionCompleted(ctx context.Context, _ conduct.ExecutionID) error {
	m.completions.Add(ctx, 1)
	return nil
}

// OnExecutionStopped implements ext.ExecutionStopped.
func (m *MetricsExtension) OnExecutionStopped(ctx context.Context, _ conduct.ExecutionID) error {
	m.stops.Add(ctx, 1)
	return nil
}

func (m *MetricsExtension) settle(ctx context.Context, inv *node.Invocation, status conduct.Status, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("node_id", inv.NodeID.String()),
		attribute.String("status", string(status)),
	)
	m.settled.Add(ctx, 1, attrs)
	if elapsed > 0 {
		m.duration.Record(ctx, elapsed.Seconds(), attrs)
	}
}
