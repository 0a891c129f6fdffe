package middleware

import (
	"context"
	"time"

	"github.com/flowmech/conduct/node"
)

// Timeout returns middleware that enforces a per-dispatch execution
// deadline. A zero duration makes the middleware a pass-through. When
// the deadline is exceeded the context is cancelled and the handler
// should return context.DeadlineExceeded.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *node.Invocation, next Handler) (*node.Result, error) {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
