// Package ext defines the extension system for Conduct.
//
// Extensions are notified of scheduler lifecycle events and can react to
// them — recording metrics, emitting webhooks, writing audit logs, etc.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnActionCompleted(ctx context.Context, inv *node.Invocation, res *node.Result, elapsed time.Duration) error {
//	    log.Printf("action %s completed in %s", inv.ActionID, elapsed)
//	    return nil
//	}
//
// # Action Lifecycle Hooks
//
//   - [ActionDispatched] — an action was handed to its node handler
//   - [ActionCompleted] — the handler returned a chaining outcome
//   - [ActionInterrupted] — the handler suspended pending external input
//   - [ActionErrored] — the handler failed
//
// # Execution Lifecycle Hooks
//
//   - [ExecutionCompleted] — a drain found no remaining work
//   - [ExecutionStopped] — the execution was aborted via Stop
//   - [Shutdown] — the engine is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
