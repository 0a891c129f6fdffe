package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/flowmech/conduct"
	"github.com/flowmech/conduct/engine"
	"github.com/flowmech/conduct/event"
	"github.com/flowmech/conduct/node"
	"github.com/flowmech/conduct/store/memory"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, opts ...engine.Option) (*engine.Engine, *memory.Store) {
	t.Helper()
	store := memory.New()
	opts = append([]engine.Option{
		engine.WithStore(store),
		engine.WithLogger(quietLogger()),
	}, opts...)
	eng, err := engine.New(opts...)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		eng.Close(ctx)
	})
	return eng, store
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

func TestNewRequiresStore(t *testing.T) {
	if _, err := engine.New(); !errors.Is(err, conduct.ErrNoStore) {
		t.Errorf("err = %v, want ErrNoStore", err)
	}
}

func TestStartRunsChainToCompletion(t *testing.T) {
	eng, store := newTestEngine(t)

	eng.Register("fetch", node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			return node.Completed(node.To("transform")...), nil
		},
	})
	eng.Register("transform", node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			return node.Completed(node.To("load")...), nil
		},
	})
	eng.Register("load", node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			return node.Completed(), nil
		},
	})

	sub := eng.Subscribe(event.KindExecutionCompleted)
	defer sub.Close()

	if err := eng.Start("exec-etl", "fetch"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitEvent(t, sub, event.KindExecutionCompleted)

	recs := store.Records("exec-etl")
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	want := []conduct.NodeID{"fetch", "transform", "load"}
	for i, rec := range recs {
		if rec.NodeID != want[i] {
			t.Errorf("record %d node = %s, want %s", i, rec.NodeID, want[i])
		}
		if rec.Status != conduct.StatusCompleted {
			t.Errorf("record %d status = %s", i, rec.Status)
		}
	}
}

func TestInterruptThenResume(t *testing.T) {
	eng, store := newTestEngine(t)

	eng.Register("approval", node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			return node.Interrupted("awaiting approval"), nil
		},
		ResumeFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			return node.Completed(node.To("notify")...), nil
		},
	})
	eng.Register("notify", node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			return node.Completed(), nil
		},
	})

	interrupted := eng.Subscribe(event.KindExecutionInterrupted)
	defer interrupted.Close()
	completed := eng.Subscribe(event.KindExecutionCompleted)
	defer completed.Close()

	if err := eng.Start("exec-appr", "approval"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	evt := waitEvent(t, interrupted, event.KindExecutionInterrupted)

	if err := eng.Resume("exec-appr", evt.NodeID, evt.ActionID); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	waitEvent(t, completed, event.KindExecutionCompleted)

	recs := store.Records("exec-appr")
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].ActionID != recs[1].ActionID {
		t.Errorf("resume changed action id: %s vs %s", recs[0].ActionID, recs[1].ActionID)
	}
}

func TestRegisterNodeStampsTypeAndProps(t *testing.T) {
	eng, store := newTestEngine(t)

	type httpProps struct {
		URL    string `json:"url"`
		Method string `json:"method"`
	}
	err := engine.RegisterNode(eng, &node.Definition[httpProps]{
		ID:    "call-api",
		Type:  "http-call",
		Props: httpProps{URL: "https://example.com/hook", Method: "POST"},
		Execute: func(_ context.Context, _ *node.Invocation, _ httpProps) (*node.Result, error) {
			return node.Completed(), nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterNode: %v", err)
	}

	sub := eng.Subscribe(event.KindExecutionCompleted)
	defer sub.Close()

	if err := eng.Start("exec-http", "call-api"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitEvent(t, sub, event.KindExecutionCompleted)

	recs := store.Records("exec-http")
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].NodeType != "http-call" {
		t.Errorf("node type = %q, want http-call", recs[0].NodeType)
	}
	if len(recs[0].Properties) == 0 {
		t.Error("record carries no properties")
	}
}

func TestHaltOnErrorPolicy(t *testing.T) {
	cfg := conduct.DefaultConfig()
	cfg.ErrorPolicy = conduct.HaltOnError
	eng, store := newTestEngine(t, engine.WithConfig(cfg))

	eng.Register("explode", node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			return node.Errored("bad input"), nil
		},
	})

	errored := eng.Subscribe(event.KindExecutionErrored)
	defer errored.Close()
	completed := eng.Subscribe(event.KindExecutionCompleted)
	defer completed.Close()

	if err := eng.Start("exec-boom", "explode"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitEvent(t, errored, event.KindExecutionErrored)

	select {
	case evt := <-completed.C():
		t.Fatalf("unexpected completed event for %s", evt.ExecutionID)
	case <-time.After(200 * time.Millisecond):
	}

	recs := store.Records("exec-boom")
	if len(recs) != 1 || recs[0].Status != conduct.StatusError {
		t.Fatalf("records = %+v, want one ERROR record", recs)
	}
}

func TestStopEmitsStoppedEvent(t *testing.T) {
	eng, _ := newTestEngine(t)

	release := make(chan struct{})
	eng.Register("wait", node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			<-release
			return node.Completed(), nil
		},
	})
	defer close(release)

	stopped := eng.Subscribe(event.KindExecutionStopped)
	defer stopped.Close()

	if err := eng.Start("exec-abort", "wait"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; eng.Scheduler().InFlight("exec-abort") == 0 && i < 100; i++ {
		time.Sleep(5 * time.Millisecond)
	}
	if err := eng.Stop("exec-abort"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	waitEvent(t, stopped, event.KindExecutionStopped)
}

func TestAdmissionBoundsInFlight(t *testing.T) {
	cfg := conduct.DefaultConfig()
	cfg.MaxInFlight = 1
	eng, store := newTestEngine(t, engine.WithConfig(cfg))

	var peak, current int
	mu := make(chan struct{}, 1)
	mu <- struct{}{}

	eng.Register("slot", node.Func{
		ExecuteFunc: func(_ context.Context, _ *node.Invocation) (*node.Result, error) {
			<-mu
			current++
			if current > peak {
				peak = current
			}
			mu <- struct{}{}

			time.Sleep(10 * time.Millisecond)

			<-mu
			current--
			mu <- struct{}{}
			return node.Completed(), nil
		},
	})

	sub := eng.Subscribe(event.KindExecutionCompleted)
	defer sub.Close()

	for range 4 {
		if err := eng.AddAction("exec-bound", "slot"); err != nil {
			t.Fatalf("AddAction: %v", err)
		}
	}
	eng.Run("exec-bound")
	waitEvent(t, sub, event.KindExecutionCompleted)

	if peak > 1 {
		t.Errorf("peak concurrency = %d, want 1", peak)
	}
	if got := len(store.Records("exec-bound")); got != 4 {
		t.Errorf("got %d records, want 4", got)
	}
}
