package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/flowmech/conduct/node"
)

// Recover returns middleware that recovers from panics in the handler
// chain. Panics are converted to errors and logged with a stack trace,
// so a panicking node surfaces as an errored action instead of taking
// down the scheduler.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, inv *node.Invocation, next Handler) (res *node.Result, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("node handler panicked",
					slog.String("node_id", inv.NodeID.String()),
					slog.String("action_id", inv.ActionID.String()),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				res = nil
				retErr = fmt.Errorf("panic in node %s: %v", inv.NodeID, r)
			}
		}()
		return next(ctx)
	}
}
