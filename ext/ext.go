package ext

import (
	"context"
	"time"

	"github.com/flowmech/conduct"
	"github.com/flowmech/conduct/node"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ActionDispatched is called when an action is handed to its node handler.
type ActionDispatched interface {
	OnActionDispatched(ctx context.Context, inv *node.Invocation) error
}

// ActionCompleted is called after a node handler returns a chaining
// outcome (COMPLETED or RUNNING).
type ActionCompleted interface {
	OnActionCompleted(ctx context.Context, inv *node.Invocation, res *node.Result, elapsed time.Duration) error
}

// ActionInterrupted is called when a node reports INTERRUPTED.
type ActionInterrupted interface {
	OnActionInterrupted(ctx context.Context, inv *node.Invocation, res *node.Result) error
}

// ActionErrored is called when a node reports ERROR or its handler
// returns an error.
type ActionErrored interface {
	OnActionErrored(ctx context.Context, inv *node.Invocation, res *node.Result) error
}

// ExecutionCompleted is called when a drain finds an execution with no
// pending and no in-flight work.
type ExecutionCompleted interface {
	OnExecutionCompleted(ctx context.Context, execID conduct.ExecutionID) error
}

// ExecutionStopped is called when an execution is aborted via Stop.
type ExecutionStopped interface {
	OnExecutionStopped(ctx context.Context, execID conduct.ExecutionID) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
