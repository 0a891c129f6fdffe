package sched

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowmech/conduct"
	"github.com/flowmech/conduct/event"
	"github.com/flowmech/conduct/id"
	"github.com/flowmech/conduct/middleware"
	"github.com/flowmech/conduct/node"
	"github.com/flowmech/conduct/record"
)

// dispatch runs one action end to end: admission, resolution, handler
// invocation through the middleware chain, then settlement via finish.
// Runs on its own goroutine; never blocks the drain loop.
func (s *Scheduler) dispatch(ctx context.Context, a *Action, resumed bool) {
	defer s.wg.Done()

	// Cancelled before the handler ever ran: discard silently. The
	// action produced no outcome, so no record and no event.
	if ctx.Err() != nil {
		s.discard(a)
		return
	}

	if s.admit != nil {
		if err := s.admit.Acquire(ctx, a.ExecutionID); err != nil {
			s.discard(a)
			return
		}
		defer s.admit.Release(a.ExecutionID)
	}

	inv := &node.Invocation{ExecutionID: a.ExecutionID, ActionID: a.ActionID, NodeID: a.NodeID}

	start := time.Now()
	res, err := s.invoke(ctx, inv, resumed)
	elapsed := time.Since(start)

	if err != nil {
		s.logger.Error("node invocation failed",
			slog.String("execution_id", a.ExecutionID.String()),
			slog.String("node_id", a.NodeID.String()),
			slog.String("action_id", a.ActionID.String()),
			slog.Any("error", err),
		)
		res = node.Errored(err.Error())
	} else if res == nil {
		s.logger.Error("node invocation returned nil result",
			slog.String("execution_id", a.ExecutionID.String()),
			slog.String("node_id", a.NodeID.String()),
		)
		res = node.Errored(conduct.ErrNilResult.Error())
	}

	s.finish(inv, a, res, elapsed)
}

// invoke resolves the handler and calls Execute or Resume through the
// middleware chain. A resolution failure surfaces as an error outcome
// for the action, not a dropped dispatch.
func (s *Scheduler) invoke(ctx context.Context, inv *node.Invocation, resumed bool) (*node.Result, error) {
	h, err := s.resolver.Resolve(inv.NodeID)
	if err != nil {
		return nil, fmt.Errorf("resolve node %q: %w", inv.NodeID, err)
	}

	call := h.Execute
	if resumed {
		call = h.Resume
	}

	handler := func(ctx context.Context) (*node.Result, error) {
		return call(ctx, inv)
	}
	if len(s.mw) > 0 {
		return middleware.Chain(s.mw...)(ctx, inv, handler)
	}
	return handler(ctx)
}

// discard removes an action that never produced an outcome from the
// running set, reclaiming the execution's state if it was the last one.
func (s *Scheduler) discard(a *Action) {
	s.mu.Lock()
	st, ok := s.execs[a.ExecutionID]
	if ok {
		delete(st.running, a.ActionID.String())
		if len(st.running) == 0 && len(st.pending) == 0 {
			st.cancel()
			delete(s.execs, a.ExecutionID)
		}
	}
	s.mu.Unlock()
}

// finish settles one action: persist the record, update the running set
// and pending queue, and route the outcome. The running-set removal,
// edge chaining, and error-policy handling happen under a single lock
// hold so a concurrent drain can never observe the execution between
// "this action gone" and "its successors enqueued" and declare a
// premature completion.
func (s *Scheduler) finish(inv *node.Invocation, a *Action, res *node.Result, elapsed time.Duration) {
	rec := &record.Record{
		ID:          id.NewRecordID(),
		Timestamp:   time.Now().UTC(),
		ExecutionID: inv.ExecutionID,
		ActionID:    inv.ActionID,
		NodeID:      inv.NodeID,
		NodeType:    res.Type,
		Properties:  res.Properties,
		Outgoing:    res.Outgoing,
		Status:      res.Status,
		Detail:      res.Detail,
	}
	// Persist even when the execution's context was cancelled mid-flight;
	// the outcome happened and the history must say so.
	if err := s.records.AppendRecord(context.WithoutCancel(s.baseCtx), rec); err != nil {
		s.logger.Error("failed to append execution record",
			slog.String("execution_id", inv.ExecutionID.String()),
			slog.String("action_id", inv.ActionID.String()),
			slog.Any("error", err),
		)
	}

	s.mu.Lock()
	st, tracked := s.execs[a.ExecutionID]
	if tracked {
		delete(st.running, a.ActionID.String())
	}

	switch res.Status {
	case conduct.StatusCompleted, conduct.StatusRunning:
		if tracked && !st.halted {
			for _, e := range res.Outgoing {
				st.pending = append(st.pending, Request{ExecutionID: a.ExecutionID, NodeID: e.Target})
			}
		}
	case conduct.StatusError:
		if tracked && s.policy == conduct.HaltOnError {
			st.pending = nil
			st.halted = true
		}
	case conduct.StatusInterrupted:
		// The interrupted arm never re-enters Run, so it must reclaim an
		// idle execution itself: state records are deleted when both
		// containers empty, never left hollow. Resume recreates state on
		// first touch.
		if tracked && len(st.running) == 0 && len(st.pending) == 0 {
			st.cancel()
			delete(s.execs, a.ExecutionID)
			tracked = false
		}
	}
	ctx := s.baseCtx
	if tracked {
		ctx = st.ctx
	}
	s.mu.Unlock()

	trig := Trigger{ExecutionID: a.ExecutionID, NodeID: a.NodeID, ActionID: a.ActionID}

	switch res.Status {
	case conduct.StatusInterrupted:
		s.logger.Info("action interrupted",
			slog.String("execution_id", inv.ExecutionID.String()),
			slog.String("node_id", inv.NodeID.String()),
			slog.String("action_id", inv.ActionID.String()),
		)
		s.hooks.ActionInterrupted(ctx, inv, res)
		s.publishOutcome(event.KindExecutionInterrupted, inv, res)
		// No drain re-entry: the execution stays dormant until Resume.

	case conduct.StatusError:
		s.logger.Warn("action errored",
			slog.String("execution_id", inv.ExecutionID.String()),
			slog.String("node_id", inv.NodeID.String()),
			slog.String("action_id", inv.ActionID.String()),
			slog.String("detail", res.Detail),
		)
		s.hooks.ActionErrored(ctx, inv, res)
		s.publishOutcome(event.KindExecutionErrored, inv, res)
		// Run suppresses the completed event for halted executions and
		// reclaims the state either way.
		s.Run(trig)

	default:
		s.hooks.ActionCompleted(ctx, inv, res, elapsed)
		s.Run(trig)
	}
}

// publishOutcome emits a lifecycle event carrying the reporting node's
// full result fields.
func (s *Scheduler) publishOutcome(kind event.Kind, inv *node.Invocation, res *node.Result) {
	s.bus.Publish(&event.Event{
		Kind:        kind,
		ExecutionID: inv.ExecutionID,
		ActionID:    inv.ActionID,
		NodeID:      inv.NodeID,
		NodeType:    res.Type,
		Properties:  res.Properties,
		Outgoing:    res.Outgoing,
		Status:      res.Status,
		Detail:      res.Detail,
	})
}
