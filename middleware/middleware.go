// Package middleware provides composable middleware for node dispatch.
// Middleware wraps handler calls synchronously and can modify execution
// (recover from panics, log, add tracing, enforce deadlines, etc.).
package middleware

import (
	"context"

	"github.com/flowmech/conduct/node"
)

// Handler is the terminal function that invokes node logic.
type Handler func(ctx context.Context) (*node.Result, error)

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the invocation being dispatched, and
// the next handler to call. Middleware MUST call next to continue the
// chain (unless short-circuiting on error).
type Middleware func(ctx context.Context, inv *node.Invocation, next Handler) (*node.Result, error)

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, timeout) executes as:
//
//	logging → recover → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, inv *node.Invocation, next Handler) (*node.Result, error) {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) (*node.Result, error) {
				return mw(ctx, inv, prev)
			}
		}
		return h(ctx)
	}
}
