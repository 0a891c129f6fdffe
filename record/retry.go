package record

import (
	"context"
	"log/slog"
	"time"

	"github.com/flowmech/conduct/backoff"
)

// Retry wraps a Store and retries failed appends with a backoff strategy.
// Because records are the only durable trace of an execution, transient
// store failures should not silently drop history.
type Retry struct {
	store    Store
	strategy backoff.Strategy
	attempts int
	logger   *slog.Logger
}

// Compile-time interface check.
var _ Store = (*Retry)(nil)

// RetryOption configures a Retry store.
type RetryOption func(*Retry)

// WithStrategy sets the backoff strategy between attempts.
func WithStrategy(s backoff.Strategy) RetryOption {
	return func(r *Retry) { r.strategy = s }
}

// WithAttempts sets the total number of append attempts (minimum 1).
func WithAttempts(n int) RetryOption {
	return func(r *Retry) {
		if n >= 1 {
			r.attempts = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) RetryOption {
	return func(r *Retry) { r.logger = l }
}

// NewRetry creates a retrying decorator around store. Defaults: 3
// attempts with exponential backoff and jitter.
func NewRetry(store Store, opts ...RetryOption) *Retry {
	r := &Retry{
		store:    store,
		strategy: backoff.DefaultStrategy(),
		attempts: 3,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AppendRecord implements Store. It returns the last error after all
// attempts are exhausted or the context is done.
func (r *Retry) AppendRecord(ctx context.Context, rec *Record) error {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		lastErr = r.store.AppendRecord(ctx, rec)
		if lastErr == nil {
			return nil
		}

		if attempt == r.attempts {
			break
		}

		delay := r.strategy.Delay(attempt)
		r.logger.Warn("record append failed, retrying",
			slog.String("record_id", rec.ID.String()),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", lastErr.Error()),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
