package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/flowmech/conduct"
	"github.com/flowmech/conduct/node"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type actionDispatchedEntry struct {
	name string
	hook ActionDispatched
}

type actionCompletedEntry struct {
	name string
	hook ActionCompleted
}

type actionInterruptedEntry struct {
	name string
	hook ActionInterrupted
}

type actionErroredEntry struct {
	name string
	hook ActionErrored
}

type executionCompletedEntry struct {
	name string
	hook ExecutionCompleted
}

type executionStoppedEntry struct {
	name string
	hook ExecutionStopped
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	actionDispatched   []actionDispatchedEntry
	actionCompleted    []actionCompletedEntry
	actionInterrupted  []actionInterruptedEntry
	actionErrored      []actionErroredEntry
	executionCompleted []executionCompletedEntry
	executionStopped   []executionStoppedEntry
	shutdown           []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and caches the hooks it implements.
// Not safe for concurrent use with emit calls; register everything
// before starting the engine.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)

	if h, ok := e.(ActionDispatched); ok {
		r.actionDispatched = append(r.actionDispatched, actionDispatchedEntry{e.Name(), h})
	}
	if h, ok := e.(ActionCompleted); ok {
		r.actionCompleted = append(r.actionCompleted, actionCompletedEntry{e.Name(), h})
	}
	if h, ok := e.(ActionInterrupted); ok {
		r.actionInterrupted = append(r.actionInterrupted, actionInterruptedEntry{e.Name(), h})
	}
	if h, ok := e.(ActionErrored); ok {
		r.actionErrored = append(r.actionErrored, actionErroredEntry{e.Name(), h})
	}
	if h, ok := e.(ExecutionCompleted); ok {
		r.executionCompleted = append(r.executionCompleted, executionCompletedEntry{e.Name(), h})
	}
	if h, ok := e.(ExecutionStopped); ok {
		r.executionStopped = append(r.executionStopped, executionStoppedEntry{e.Name(), h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{e.Name(), h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// hookErr logs a hook error without propagating it; extension failures
// never affect scheduling.
func (r *Registry) hookErr(name, hook string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("extension", name),
		slog.String("hook", hook),
		slog.String("error", err.Error()),
	)
}

// EmitActionDispatched notifies ActionDispatched hooks.
func (r *Registry) EmitActionDispatched(ctx context.Context, inv *node.Invocation) {
	for _, en := range r.actionDispatched {
		if err := en.hook.OnActionDispatched(ctx, inv); err != nil {
			r.hookErr(en.name, "OnActionDispatched", err)
		}
	}
}

// EmitActionCompleted notifies ActionCompleted hooks.
func (r *Registry) EmitActionCompleted(ctx context.Context, inv *node.Invocation, res *node.Result, elapsed time.Duration) {
	for _, en := range r.actionCompleted {
		if err := en.hook.OnActionCompleted(ctx, inv, res, elapsed); err != nil {
			r.hookErr(en.name, "OnActionCompleted", err)
		}
	}
}

// EmitActionInterrupted notifies ActionInterrupted hooks.
func (r *Registry) EmitActionInterrupted(ctx context.Context, inv *node.Invocation, res *node.Result) {
	for _, en := range r.actionInterrupted {
		if err := en.hook.OnActionInterrupted(ctx, inv, res); err != nil {
			r.hookErr(en.name, "OnActionInterrupted", err)
		}
	}
}

// EmitActionErrored notifies ActionErrored hooks.
func (r *Registry) EmitActionErrored(ctx context.Context, inv *node.Invocation, res *node.Result) {
	for _, en := range r.actionErrored {
		if err := en.hook.OnActionErrored(ctx, inv, res); err != nil {
			r.hookErr(en.name, "OnActionErrored", err)
		}
	}
}

// EmitExecutionCompleted notifies ExecutionCompleted hooks.
func (r *Registry) EmitExecutionCompleted(ctx context.Context, execID conduct.ExecutionID) {
	for _, en := range r.executionCompleted {
		if err := en.hook.OnExecutionCompleted(ctx, execID); err != nil {
			r.hookErr(en.name, "OnExecutionCompleted", err)
		}
	}
}

// EmitExecutionStopped notifies ExecutionStopped hooks.
func (r *Registry) EmitExecutionStopped(ctx context.Context, execID conduct.ExecutionID) {
	for _, en := range r.executionStopped {
		if err := en.hook.OnExecutionStopped(ctx, execID); err != nil {
			r.hookErr(en.name, "OnExecutionStopped", err)
		}
	}
}

// EmitShutdown notifies Shutdown hooks.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, en := range r.shutdown {
		if err := en.hook.OnShutdown(ctx); err != nil {
			r.hookErr(en.name, "OnShutdown", err)
		}
	}
}
