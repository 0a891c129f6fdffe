package sched

import (
	"context"
	"time"

	"github.com/flowmech/conduct"
	"github.com/flowmech/conduct/node"
)

// Hooks receives scheduler lifecycle notifications. The ext.Registry
// satisfies this interface via an adapter in the engine package; the
// indirection keeps sched free of a dependency on the extension system.
type Hooks interface {
	ActionDispatched(ctx context.Context, inv *node.Invocation)
	ActionCompleted(ctx context.Context, inv *node.Invocation, res *node.Result, elapsed time.Duration)
	ActionInterrupted(ctx context.Context, inv *node.Invocation, res *node.Result)
	ActionErrored(ctx context.Context, inv *node.Invocation, res *node.Result)
	ExecutionCompleted(ctx context.Context, execID conduct.ExecutionID)
	ExecutionStopped(ctx context.Context, execID conduct.ExecutionID)
}

// NopHooks is a Hooks implementation that does nothing.
type NopHooks struct{}

func (NopHooks) ActionDispatched(context.Context, *node.Invocation) {}
func (NopHooks) ActionCompleted(context.Context, *node.Invocation, *node.Result, time.Duration) {
}
func (NopHooks) ActionInterrupted(context.Context, *node.Invocation, *node.Result) {}
func (NopHooks) ActionErrored(context.Context, *node.Invocation, *node.Result)     {}
func (NopHooks) ExecutionCompleted(context.Context, conduct.ExecutionID)           {}
func (NopHooks) ExecutionStopped(context.Context, conduct.ExecutionID)             {}
