// Package admission provides optional dispatch admission control:
// a scheduler-wide token-bucket rate limit and a per-execution cap on
// concurrent in-flight actions. The scheduler calls Acquire before
// invoking a node handler and Release after the invocation settles.
//
// The core scheduling contract imposes no bound on in-flight work;
// admission control is opt-in for deployments that need backpressure.
package admission

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/flowmech/conduct"
)

// Config defines admission behaviour.
type Config struct {
	// MaxInFlight limits concurrent in-flight actions per execution.
	// Zero means unbounded.
	MaxInFlight int

	// Rate is the maximum sustained dispatches per second across the
	// scheduler. Zero disables rate limiting.
	Rate float64

	// Burst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if Rate is set but Burst is zero.
	Burst int
}

// Manager enforces admission limits. It is safe for concurrent use.
type Manager struct {
	cfg     Config
	limiter *rate.Limiter

	mu     sync.Mutex
	cond   *sync.Cond
	active map[conduct.ExecutionID]int
}

// NewManager creates a Manager with the given configuration.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		cfg:    cfg,
		active: make(map[conduct.ExecutionID]int),
	}
	m.cond = sync.NewCond(&m.mu)

	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}

	return m
}

// Acquire blocks until the dispatch is admitted or the context is done.
// Every successful Acquire MUST be paired with a Release.
func (m *Manager) Acquire(ctx context.Context, execID conduct.ExecutionID) error {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	if m.cfg.MaxInFlight <= 0 {
		m.mu.Lock()
		m.active[execID]++
		m.mu.Unlock()
		return nil
	}

	// Wake waiters when the context ends so they can observe ctx.Err.
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for m.active[execID] >= m.cfg.MaxInFlight {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.cond.Wait()
	}
	m.active[execID]++
	return nil
}

// Release returns an in-flight slot for the execution.
func (m *Manager) Release(execID conduct.ExecutionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.active[execID] - 1
	if n <= 0 {
		delete(m.active, execID)
	} else {
		m.active[execID] = n
	}
	m.cond.Broadcast()
}

// InFlight reports the number of admitted, unreleased dispatches for an
// execution.
func (m *Manager) InFlight(execID conduct.ExecutionID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[execID]
}
