package sched_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flowmech/conduct"
	"github.com/flowmech/conduct/event"
	"github.com/flowmech/conduct/id"
	"github.com/flowmech/conduct/node"
	"github.com/flowmech/conduct/record"
	"github.com/flowmech/conduct/sched"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore collects appended records in order.
type memStore struct {
	mu   sync.Mutex
	recs []*record.Record
}

func (m *memStore) AppendRecord(_ context.Context, rec *record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memStore) records() []*record.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*record.Record, len(m.recs))
	copy(out, m.recs)
	return out
}

// dispatchOrder records the order in which actions were handed off.
type dispatchOrder struct {
	sched.NopHooks
	mu    sync.Mutex
	nodes []conduct.NodeID
}

func (d *dispatchOrder) ActionDispatched(_ context.Context, inv *node.Invocation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes = append(d.nodes, inv.NodeID)
}

func (d *dispatchOrder) order() []conduct.NodeID {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]conduct.NodeID, len(d.nodes))
	copy(out, d.nodes)
	return out
}

func waitEvent(t *testing.T, sub *event.Subscription, kind event.Kind) *event.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case evt := <-sub.C():
			if evt.Kind == kind {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func expectNoEvent(t *testing.T, sub *event.Subscription, kind event.Kind) {
	t.Helper()
	timer := time.After(200 * time.Millisecond)
	for {
		select {
		case evt := <-sub.C():
			if evt.Kind == kind {
				t.Fatalf("unexpected %s event for execution %s", kind, evt.ExecutionID)
			}
		case <-timer:
			return
		}
	}
}

func newTestScheduler(t *testing.T, reg *node.Registry, opts ...sched.Option) (*sched.Scheduler, *memStore, *event.Bus) {
	t.Helper()
	store := &memStore{}
	bus := event.NewBus(event.WithLogger(quietLogger()))
	opts = append([]sched.Option{sched.WithLogger(quietLogger())}, opts...)
	s := sched.New(reg, store, bus, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Close(ctx)
		bus.Close()
	})
	return s, store, bus
}

func TestSingleNodeCompletion(t *testing.T) {
	reg := node.NewRegistry()
	reg.Register("greet", node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			return node.Completed(), nil
		},
	})

	s, store, bus := newTestScheduler(t, reg)
	sub := bus.Subscribe(event.KindExecutionCompleted)
	defer sub.Close()

	if err := s.AddAction(sched.Request{ExecutionID: "exec-1", NodeID: "greet"}); err != nil {
		t.Fatalf("AddAction: %v", err)
	}
	s.Run(sched.Trigger{ExecutionID: "exec-1"})

	evt := waitEvent(t, sub, event.KindExecutionCompleted)
	if evt.ExecutionID != "exec-1" {
		t.Errorf("execution id = %s, want exec-1", evt.ExecutionID)
	}
	if evt.Status != conduct.StatusCompleted {
		t.Errorf("status = %s, want %s", evt.Status, conduct.StatusCompleted)
	}

	recs := store.records()
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].NodeID != "greet" || recs[0].Status != conduct.StatusCompleted {
		t.Errorf("record = %s/%s, want greet/COMPLETED", recs[0].NodeID, recs[0].Status)
	}
	if recs[0].ActionID.IsNil() {
		t.Error("record has nil action id")
	}
}

func TestChainingDispatchOrder(t *testing.T) {
	reg := node.NewRegistry()
	reg.Register("a", node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			return node.Completed(node.To("b", "c")...), nil
		},
	})
	done := node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			return node.Completed(), nil
		},
	}
	reg.Register("b", done)
	reg.Register("c", done)

	hooks := &dispatchOrder{}
	s, store, bus := newTestScheduler(t, reg, sched.WithHooks(hooks))
	sub := bus.Subscribe(event.KindExecutionCompleted)
	defer sub.Close()

	if err := s.AddAction(sched.Request{ExecutionID: "exec-chain", NodeID: "a"}); err != nil {
		t.Fatalf("AddAction: %v", err)
	}
	s.Run(sched.Trigger{ExecutionID: "exec-chain"})

	waitEvent(t, sub, event.KindExecutionCompleted)

	got := hooks.order()
	if len(got) != 3 {
		t.Fatalf("dispatched %d actions, want 3: %v", len(got), got)
	}
	if got[0] != "a" {
		t.Errorf("first dispatch = %s, want a", got[0])
	}
	// Successors of a are enqueued in edge order and drained FIFO.
	if got[1] != "b" || got[2] != "c" {
		t.Errorf("successor dispatch order = %v, want [b c]", got[1:])
	}

	if n := len(store.records()); n != 3 {
		t.Errorf("got %d records, want 3", n)
	}
}

func TestInterruptAndResume(t *testing.T) {
	reg := node.NewRegistry()
	reg.Register("approval", node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			return node.Interrupted("waiting for sign-off"), nil
		},
		ResumeFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			return node.Completed(), nil
		},
	})

	s, store, bus := newTestScheduler(t, reg)
	interrupted := bus.Subscribe(event.KindExecutionInterrupted)
	defer interrupted.Close()
	completed := bus.Subscribe(event.KindExecutionCompleted)
	defer completed.Close()

	if err := s.AddAction(sched.Request{ExecutionID: "exec-pause", NodeID: "approval"}); err != nil {
		t.Fatalf("AddAction: %v", err)
	}
	s.Run(sched.Trigger{ExecutionID: "exec-pause"})

	evt := waitEvent(t, interrupted, event.KindExecutionInterrupted)
	if evt.Detail != "waiting for sign-off" {
		t.Errorf("detail = %q, want %q", evt.Detail, "waiting for sign-off")
	}
	if evt.ActionID.IsNil() {
		t.Fatal("interrupted event carries nil action id")
	}

	// The execution is dormant: no completion until resumed.
	expectNoEvent(t, completed, event.KindExecutionCompleted)

	err := s.Resume(sched.ResumeRequest{
		ExecutionID: "exec-pause",
		NodeID:      "approval",
		ActionID:    evt.ActionID,
	})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}

	waitEvent(t, completed, event.KindExecutionCompleted)

	recs := store.records()
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].ActionID != recs[1].ActionID {
		t.Errorf("resume minted a new action id: %s vs %s", recs[0].ActionID, recs[1].ActionID)
	}
	if recs[0].Status != conduct.StatusInterrupted || recs[1].Status != conduct.StatusCompleted {
		t.Errorf("record statuses = %s, %s; want INTERRUPTED, COMPLETED", recs[0].Status, recs[1].Status)
	}
}

func TestErrorContinuePolicy(t *testing.T) {
	reg := node.NewRegistry()
	reg.Register("flaky", node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			return node.Errored("downstream unavailable"), nil
		},
	})
	reg.Register("steady", node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			return node.Completed(), nil
		},
	})

	s, store, bus := newTestScheduler(t, reg)
	errored := bus.Subscribe(event.KindExecutionErrored)
	defer errored.Close()
	completed := bus.Subscribe(event.KindExecutionCompleted)
	defer completed.Close()

	for _, n := range []conduct.NodeID{"flaky", "steady"} {
		if err := s.AddAction(sched.Request{ExecutionID: "exec-err", NodeID: n}); err != nil {
			t.Fatalf("AddAction(%s): %v", n, err)
		}
	}
	s.Run(sched.Trigger{ExecutionID: "exec-err"})

	evt := waitEvent(t, errored, event.KindExecutionErrored)
	if evt.Detail != "downstream unavailable" {
		t.Errorf("detail = %q", evt.Detail)
	}

	// Siblings keep running and the execution still completes.
	waitEvent(t, completed, event.KindExecutionCompleted)

	if n := len(store.records()); n != 2 {
		t.Errorf("got %d records, want 2", n)
	}
}

func TestErrorHaltPolicy(t *testing.T) {
	release := make(chan struct{})
	reg := node.NewRegistry()
	reg.Register("boom", node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			return node.Errored("fatal"), nil
		},
	})
	reg.Register("slow", node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			<-release
			return node.Completed(node.To("never")...), nil
		},
	})

	hooks := &dispatchOrder{}
	s, _, bus := newTestScheduler(t, reg,
		sched.WithErrorPolicy(conduct.HaltOnError),
		sched.WithHooks(hooks),
	)
	errored := bus.Subscribe(event.KindExecutionErrored)
	defer errored.Close()
	completed := bus.Subscribe(event.KindExecutionCompleted)
	defer completed.Close()

	for _, n := range []conduct.NodeID{"boom", "slow"} {
		if err := s.AddAction(sched.Request{ExecutionID: "exec-halt", NodeID: n}); err != nil {
			t.Fatalf("AddAction(%s): %v", n, err)
		}
	}
	s.Run(sched.Trigger{ExecutionID: "exec-halt"})

	waitEvent(t, errored, event.KindExecutionErrored)
	close(release)

	// The halted execution neither chains the slow node's successor nor
	// emits a completed event.
	expectNoEvent(t, completed, event.KindExecutionCompleted)
	for _, n := range hooks.order() {
		if n == "never" {
			t.Error("successor dispatched after halt")
		}
	}
}

func TestConcurrentCompletionsEmitOnce(t *testing.T) {
	reg := node.NewRegistry()
	work := node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			return node.Completed(), nil
		},
	}
	nodes := []conduct.NodeID{"n1", "n2", "n3", "n4", "n5", "n6", "n7", "n8"}
	for _, n := range nodes {
		reg.Register(n, work)
	}

	s, store, bus := newTestScheduler(t, reg)
	sub := bus.Subscribe(event.KindExecutionCompleted)
	defer sub.Close()

	for _, n := range nodes {
		if err := s.AddAction(sched.Request{ExecutionID: "exec-fan", NodeID: n}); err != nil {
			t.Fatalf("AddAction(%s): %v", n, err)
		}
	}
	s.Run(sched.Trigger{ExecutionID: "exec-fan"})

	waitEvent(t, sub, event.KindExecutionCompleted)
	expectNoEvent(t, sub, event.KindExecutionCompleted)

	recs := store.records()
	if len(recs) != len(nodes) {
		t.Fatalf("got %d records, want %d", len(recs), len(nodes))
	}
	seen := make(map[id.ActionID]bool, len(recs))
	for _, r := range recs {
		if seen[r.ActionID] {
			t.Errorf("duplicate action id %s", r.ActionID)
		}
		seen[r.ActionID] = true
	}
}

func TestRunWithoutSeedingCompletes(t *testing.T) {
	s, store, bus := newTestScheduler(t, node.NewRegistry())
	sub := bus.Subscribe(event.KindExecutionCompleted)
	defer sub.Close()

	s.Run(sched.Trigger{ExecutionID: "exec-empty"})

	evt := waitEvent(t, sub, event.KindExecutionCompleted)
	if evt.ExecutionID != "exec-empty" {
		t.Errorf("execution id = %s", evt.ExecutionID)
	}
	if n := len(store.records()); n != 0 {
		t.Errorf("got %d records, want 0", n)
	}
}

func TestUnresolvableNodeErrors(t *testing.T) {
	s, store, bus := newTestScheduler(t, node.NewRegistry())
	errored := bus.Subscribe(event.KindExecutionErrored)
	defer errored.Close()
	completed := bus.Subscribe(event.KindExecutionCompleted)
	defer completed.Close()

	if err := s.AddAction(sched.Request{ExecutionID: "exec-miss", NodeID: "ghost"}); err != nil {
		t.Fatalf("AddAction: %v", err)
	}
	s.Run(sched.Trigger{ExecutionID: "exec-miss"})

	evt := waitEvent(t, errored, event.KindExecutionErrored)
	if !strings.Contains(evt.Detail, "ghost") {
		t.Errorf("detail %q does not name the node", evt.Detail)
	}

	// Default policy continues, so the execution still drains to completion.
	waitEvent(t, completed, event.KindExecutionCompleted)

	recs := store.records()
	if len(recs) != 1 || recs[0].Status != conduct.StatusError {
		t.Fatalf("records = %+v, want one ERROR record", recs)
	}
}

func TestStopDropsPendingAndSuppressesChaining(t *testing.T) {
	release := make(chan struct{})
	reg := node.NewRegistry()
	reg.Register("hold", node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			<-release
			return node.Completed(node.To("after")...), nil
		},
	})

	hooks := &dispatchOrder{}
	s, _, bus := newTestScheduler(t, reg, sched.WithHooks(hooks))
	stopped := bus.Subscribe(event.KindExecutionStopped)
	defer stopped.Close()
	completed := bus.Subscribe(event.KindExecutionCompleted)
	defer completed.Close()

	if err := s.AddAction(sched.Request{ExecutionID: "exec-stop", NodeID: "hold"}); err != nil {
		t.Fatalf("AddAction: %v", err)
	}
	s.Run(sched.Trigger{ExecutionID: "exec-stop"})

	// Wait for the action to be in flight before stopping.
	for i := 0; s.InFlight("exec-stop") == 0 && i < 100; i++ {
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.Stop("exec-stop"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	waitEvent(t, stopped, event.KindExecutionStopped)

	close(release)

	expectNoEvent(t, completed, event.KindExecutionCompleted)
	for _, n := range hooks.order() {
		if n == "after" {
			t.Error("successor dispatched after stop")
		}
	}
}

func TestStopUnknownExecution(t *testing.T) {
	s, _, _ := newTestScheduler(t, node.NewRegistry())
	if err := s.Stop("exec-unknown"); !errors.Is(err, conduct.ErrExecutionNotFound) {
		t.Errorf("err = %v, want ErrExecutionNotFound", err)
	}
}

func TestAddActionValidation(t *testing.T) {
	s, _, _ := newTestScheduler(t, node.NewRegistry())

	if err := s.AddAction(sched.Request{NodeID: "x"}); !errors.Is(err, conduct.ErrInvalidRequest) {
		t.Errorf("missing execution id: err = %v", err)
	}
	if err := s.AddAction(sched.Request{ExecutionID: "e"}); !errors.Is(err, conduct.ErrInvalidRequest) {
		t.Errorf("missing node id: err = %v", err)
	}
	if err := s.Resume(sched.ResumeRequest{ExecutionID: "e", NodeID: "n"}); !errors.Is(err, conduct.ErrInvalidRequest) {
		t.Errorf("missing action id: err = %v", err)
	}
}

func TestCloseRejectsNewWork(t *testing.T) {
	store := &memStore{}
	bus := event.NewBus(event.WithLogger(quietLogger()))
	defer bus.Close()
	s := sched.New(node.NewRegistry(), store, bus, sched.WithLogger(quietLogger()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := s.AddAction(sched.Request{ExecutionID: "e", NodeID: "n"}); !errors.Is(err, conduct.ErrSchedulerClosed) {
		t.Errorf("AddAction after close: err = %v", err)
	}
	if err := s.Resume(sched.ResumeRequest{ExecutionID: "e", NodeID: "n", ActionID: id.NewActionID()}); !errors.Is(err, conduct.ErrSchedulerClosed) {
		t.Errorf("Resume after close: err = %v", err)
	}
}

func TestInterruptReclaimsIdleExecution(t *testing.T) {
	reg := node.NewRegistry()
	reg.Register("gate", node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			return node.Interrupted("awaiting input"), nil
		},
		ResumeFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			return node.Completed(), nil
		},
	})

	s, _, bus := newTestScheduler(t, reg)
	interrupted := bus.Subscribe(event.KindExecutionInterrupted)
	defer interrupted.Close()
	completed := bus.Subscribe(event.KindExecutionCompleted)
	defer completed.Close()

	if err := s.AddAction(sched.Request{ExecutionID: "exec-idle", NodeID: "gate"}); err != nil {
		t.Fatalf("AddAction: %v", err)
	}
	s.Run(sched.Trigger{ExecutionID: "exec-idle"})

	evt := waitEvent(t, interrupted, event.KindExecutionInterrupted)

	// With nothing queued and nothing running, the dormant execution
	// holds no scheduler state: Stop has nothing to stop.
	if n := s.InFlight("exec-idle"); n != 0 {
		t.Errorf("in flight = %d, want 0", n)
	}
	if err := s.Stop("exec-idle"); !errors.Is(err, conduct.ErrExecutionNotFound) {
		t.Errorf("Stop after interrupt: err = %v, want ErrExecutionNotFound", err)
	}

	// Resume recreates state on first touch and drives to completion.
	err := s.Resume(sched.ResumeRequest{
		ExecutionID: "exec-idle",
		NodeID:      "gate",
		ActionID:    evt.ActionID,
	})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	waitEvent(t, completed, event.KindExecutionCompleted)
}

func TestCloseWaitsForInFlightActions(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	reg := node.NewRegistry()
	reg.Register("linger", node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			close(entered)
			<-release
			return node.Completed(), nil
		},
	})

	store := &memStore{}
	bus := event.NewBus(event.WithLogger(quietLogger()))
	defer bus.Close()
	s := sched.New(reg, store, bus, sched.WithLogger(quietLogger()))

	if err := s.AddAction(sched.Request{ExecutionID: "exec-linger", NodeID: "linger"}); err != nil {
		t.Fatalf("AddAction: %v", err)
	}
	s.Run(sched.Trigger{ExecutionID: "exec-linger"})

	select {
	case <-entered:
	case <-time.After(3 * time.Second):
		t.Fatal("handler never started")
	}

	closed := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		closed <- s.Close(ctx)
	}()

	// Close must block while the handler is still running.
	select {
	case err := <-closed:
		t.Fatalf("Close returned %v with an action in flight", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	if err := <-closed; err != nil {
		t.Fatalf("Close: %v", err)
	}

	recs := store.records()
	if len(recs) != 1 || recs[0].Status != conduct.StatusCompleted {
		t.Fatalf("records = %+v, want one COMPLETED record", recs)
	}
}

func TestHandlerErrorBecomesErrorRecord(t *testing.T) {
	reg := node.NewRegistry()
	reg.Register("broken", node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			return nil, errors.New("wire snapped")
		},
	})

	s, store, bus := newTestScheduler(t, reg)
	errored := bus.Subscribe(event.KindExecutionErrored)
	defer errored.Close()

	if err := s.AddAction(sched.Request{ExecutionID: "exec-broken", NodeID: "broken"}); err != nil {
		t.Fatalf("AddAction: %v", err)
	}
	s.Run(sched.Trigger{ExecutionID: "exec-broken"})

	evt := waitEvent(t, errored, event.KindExecutionErrored)
	if !strings.Contains(evt.Detail, "wire snapped") {
		t.Errorf("detail = %q", evt.Detail)
	}

	recs := store.records()
	if len(recs) != 1 || recs[0].Status != conduct.StatusError {
		t.Fatalf("records = %+v, want one ERROR record", recs)
	}
}
