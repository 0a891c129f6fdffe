package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/flowmech/conduct/node"
)

// Logging returns middleware that logs dispatch start and settlement.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, inv *node.Invocation, next Handler) (*node.Result, error) {
		logger.Info("action dispatched",
			slog.String("execution_id", inv.ExecutionID.String()),
			slog.String("node_id", inv.NodeID.String()),
			slog.String("action_id", inv.ActionID.String()),
		)

		start := time.Now()
		res, err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("action failed",
				slog.String("execution_id", inv.ExecutionID.String()),
				slog.String("node_id", inv.NodeID.String()),
				slog.String("action_id", inv.ActionID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("action settled",
				slog.String("execution_id", inv.ExecutionID.String()),
				slog.String("node_id", inv.NodeID.String()),
				slog.String("action_id", inv.ActionID.String()),
				slog.String("status", string(res.Status)),
				slog.Duration("elapsed", elapsed),
			)
		}

		return res, err
	}
}
