package sched

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/flowmech/conduct"
	"github.com/flowmech/conduct/admission"
	"github.com/flowmech/conduct/event"
	"github.com/flowmech/conduct/id"
	"github.com/flowmech/conduct/middleware"
	"github.com/flowmech/conduct/node"
	"github.com/flowmech/conduct/record"
)

// Request asks that a node run next within an execution. It carries no
// action identity; one is minted when the request is dispatched.
type Request struct {
	ExecutionID conduct.ExecutionID
	NodeID      conduct.NodeID
}

// Trigger identifies what prompted a Run call. The node and action
// fields are optional and flow through to the completed event when the
// drain finds no remaining work.
type Trigger struct {
	ExecutionID conduct.ExecutionID
	NodeID      conduct.NodeID
	ActionID    id.ActionID
}

// ResumeRequest re-enters a previously interrupted node under its
// original action identity.
type ResumeRequest struct {
	ExecutionID conduct.ExecutionID
	NodeID      conduct.NodeID
	ActionID    id.ActionID
}

// Action is the minimal identity of one in-flight dispatch.
type Action struct {
	ExecutionID conduct.ExecutionID
	ActionID    id.ActionID
	NodeID      conduct.NodeID
}

// execState is the per-execution bookkeeping pair. Created on first
// touch, deleted when both queue and running set are empty so the
// "no running work" check stays O(1) and empty containers never leak.
type execState struct {
	pending []Request
	running map[string]*Action

	// halted suppresses chaining and the completed event after Stop or
	// a HaltOnError policy decision.
	halted bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Scheduler owns the pending queues and running sets for all executions
// it coordinates and drives dispatch, chaining, and termination
// detection. Create one with New; multiple independent schedulers can
// coexist in one process.
type Scheduler struct {
	resolver node.Resolver
	records  record.Store
	bus      *event.Bus
	hooks    Hooks
	logger   *slog.Logger
	policy   conduct.ErrorPolicy
	admit    *admission.Manager
	mw       []middleware.Middleware

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	execs  map[conduct.ExecutionID]*execState
	closed bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithHooks sets the lifecycle hook receiver.
func WithHooks(h Hooks) Option {
	return func(s *Scheduler) { s.hooks = h }
}

// WithErrorPolicy sets how the scheduler reacts to errored nodes.
func WithErrorPolicy(p conduct.ErrorPolicy) Option {
	return func(s *Scheduler) { s.policy = p }
}

// WithAdmission sets an admission manager gating dispatches.
func WithAdmission(m *admission.Manager) Option {
	return func(s *Scheduler) { s.admit = m }
}

// WithMiddleware appends middleware wrapping every node invocation.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Scheduler) { s.mw = append(s.mw, mws...) }
}

// New creates a Scheduler. The resolver supplies node capabilities, the
// record store receives one append per settled invocation, and the bus
// carries lifecycle events.
func New(resolver node.Resolver, records record.Store, bus *event.Bus, opts ...Option) *Scheduler {
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		resolver: resolver,
		records:  records,
		bus:      bus,
		hooks:    NopHooks{},
		logger:   slog.Default(),
		policy:   conduct.ContinueOnError,
		baseCtx:  baseCtx,
		cancel:   cancel,
		execs:    make(map[conduct.ExecutionID]*execState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddAction appends a dispatch request to the execution's pending queue,
// creating the queue if absent. The node identifier is not validated
// here; resolution happens at dispatch time.
func (s *Scheduler) AddAction(req Request) error {
	if req.ExecutionID == "" || req.NodeID == "" {
		return fmt.Errorf("%w: execution and node identifiers are required", conduct.ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return conduct.ErrSchedulerClosed
	}

	st := s.ensureLocked(req.ExecutionID)
	if st.halted {
		s.logger.Debug("request dropped: execution halted",
			slog.String("execution_id", req.ExecutionID.String()),
			slog.String("node_id", req.NodeID.String()),
		)
		return nil
	}
	st.pending = append(st.pending, req)
	return nil
}

// Run performs one drain cycle for the trigger's execution: snapshot and
// clear the pending queue, then dispatch every snapshotted request in
// order without waiting. If the snapshot is empty and nothing is in
// flight, reclaim the execution's state and emit the completed event.
//
// Run is both the initial kickoff after seeding and the re-entry point
// after every completion. It is safe to call redundantly and
// concurrently; a drain that finds in-flight work does nothing, because
// a later completion will trigger another drain.
func (s *Scheduler) Run(t Trigger) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	st, ok := s.execs[t.ExecutionID]
	if !ok {
		// Never seeded, or already reclaimed: indistinguishable by
		// design. Degenerates to a completion emission.
		s.mu.Unlock()
		s.completeExecution(t)
		return
	}

	batch := st.pending
	st.pending = nil

	if len(batch) == 0 {
		if len(st.running) == 0 {
			halted := st.halted
			st.cancel()
			delete(s.execs, t.ExecutionID)
			s.mu.Unlock()
			if !halted {
				s.completeExecution(t)
			}
			return
		}
		s.mu.Unlock()
		return
	}

	// Mint identities and enter the running set under the same lock
	// hold as the snapshot, so a concurrent drain cannot observe the
	// queue empty before these actions are tracked. The WaitGroup add
	// happens under the same hold: Close checks closed under this lock,
	// so it either sees the count or rejects the batch, never neither.
	actions := make([]*Action, len(batch))
	for i, req := range batch {
		a := &Action{
			ExecutionID: req.ExecutionID,
			ActionID:    id.NewActionID(),
			NodeID:      req.NodeID,
		}
		st.running[a.ActionID.String()] = a
		actions[i] = a
	}
	s.wg.Add(len(actions))
	ctx := st.ctx
	s.mu.Unlock()

	for _, a := range actions {
		inv := &node.Invocation{ExecutionID: a.ExecutionID, ActionID: a.ActionID, NodeID: a.NodeID}
		s.hooks.ActionDispatched(ctx, inv)
		go s.dispatch(ctx, a, false)
	}
}

// Resume re-enters a node that previously reported INTERRUPTED. The
// caller supplies the action identity from the original dispatch; no
// fresh identity is minted and no validation is performed that the
// action was actually interrupted. Execution state is recreated on
// first touch if it was already reclaimed.
func (s *Scheduler) Resume(req ResumeRequest) error {
	if req.ExecutionID == "" || req.NodeID == "" || req.ActionID.IsNil() {
		return fmt.Errorf("%w: execution, node, and action identifiers are required", conduct.ErrInvalidRequest)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return conduct.ErrSchedulerClosed
	}

	st := s.ensureLocked(req.ExecutionID)
	a := &Action{ExecutionID: req.ExecutionID, ActionID: req.ActionID, NodeID: req.NodeID}
	st.running[a.ActionID.String()] = a
	s.wg.Add(1)
	ctx := st.ctx
	s.mu.Unlock()

	inv := &node.Invocation{ExecutionID: a.ExecutionID, ActionID: a.ActionID, NodeID: a.NodeID}
	s.hooks.ActionDispatched(ctx, inv)
	go s.dispatch(ctx, a, true)
	return nil
}

// Stop aborts an execution: queued-but-undispatched work is dropped,
// in-flight actions have their contexts cancelled, and chaining is
// suppressed. In-flight actions that settle after Stop are still
// recorded, but they discover no successors and trigger no completed
// event. Emits an execution-stopped event.
func (s *Scheduler) Stop(execID conduct.ExecutionID) error {
	s.mu.Lock()
	st, ok := s.execs[execID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", conduct.ErrExecutionNotFound, execID)
	}

	st.pending = nil
	st.halted = true
	st.cancel()
	if len(st.running) == 0 {
		delete(s.execs, execID)
	}
	s.mu.Unlock()

	s.logger.Info("execution stopped", slog.String("execution_id", execID.String()))
	s.bus.Publish(&event.Event{
		Kind:        event.KindExecutionStopped,
		ExecutionID: execID,
	})
	s.hooks.ExecutionStopped(s.baseCtx, execID)
	return nil
}

// Close shuts the scheduler down: no new work is accepted, all
// execution contexts are cancelled, and Close waits for in-flight
// dispatch goroutines until the given context expires.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler shutdown timed out with actions in flight")
		return ctx.Err()
	}
}

// InFlight reports the number of in-flight actions for an execution.
// Exposed for observability; the value is stale the moment it returns.
func (s *Scheduler) InFlight(execID conduct.ExecutionID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.execs[execID]
	if !ok {
		return 0
	}
	return len(st.running)
}

// ensureLocked returns the execution's state, creating it on first
// touch. Caller must hold s.mu.
func (s *Scheduler) ensureLocked(execID conduct.ExecutionID) *execState {
	st, ok := s.execs[execID]
	if !ok {
		ctx, cancel := context.WithCancel(s.baseCtx)
		st = &execState{
			running: make(map[string]*Action),
			ctx:     ctx,
			cancel:  cancel,
		}
		s.execs[execID] = st
	}
	return st
}

// completeExecution emits the terminal completed event for a drain that
// found no remaining work.
func (s *Scheduler) completeExecution(t Trigger) {
	s.logger.Info("execution completed", slog.String("execution_id", t.ExecutionID.String()))
	s.bus.Publish(&event.Event{
		Kind:        event.KindExecutionCompleted,
		ExecutionID: t.ExecutionID,
		ActionID:    t.ActionID,
		NodeID:      t.NodeID,
		Status:      conduct.StatusCompleted,
	})
	s.hooks.ExecutionCompleted(s.baseCtx, t.ExecutionID)
}
