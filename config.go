package conduct

import "time"

// Config holds configuration for the scheduler engine.
type Config struct {
	// ErrorPolicy controls whether an errored node halts the rest of the
	// execution or lets siblings and queued work continue.
	ErrorPolicy ErrorPolicy

	// EventBuffer is the per-subscriber channel capacity on the event bus.
	EventBuffer int

	// ActionTimeout is the per-dispatch execution deadline. Zero disables
	// the deadline.
	ActionTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for in-flight actions
	// during graceful shutdown.
	ShutdownTimeout time.Duration

	// MaxInFlight limits concurrent in-flight actions per execution.
	// Zero means unbounded, matching the core contract.
	MaxInFlight int

	// DispatchRate is the maximum sustained dispatches per second across
	// the scheduler. Zero disables rate limiting.
	DispatchRate float64

	// DispatchBurst is the burst size for the dispatch rate limiter.
	// Defaults to 1 if DispatchRate is set but DispatchBurst is zero.
	DispatchBurst int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ErrorPolicy:     ContinueOnError,
		EventBuffer:     64,
		ShutdownTimeout: 30 * time.Second,
	}
}
