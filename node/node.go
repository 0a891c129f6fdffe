package node

import (
	"context"
	"encoding/json"

	"github.com/flowmech/conduct"
	"github.com/flowmech/conduct/id"
)

// Invocation identifies one dispatch of a node. It is passed to the
// handler so node logic can report or log under its action identity.
type Invocation struct {
	ExecutionID conduct.ExecutionID `json:"execution_id"`
	ActionID    id.ActionID         `json:"action_id"`
	NodeID      conduct.NodeID      `json:"node_id"`
}

// Result is the settled outcome of one node invocation. The scheduler
// reads Status to decide between chaining, interruption, and error
// handling, and persists the remaining fields to the record store.
type Result struct {
	Status     conduct.Status  `json:"status"`
	Type       string          `json:"type,omitempty"`
	Properties json.RawMessage `json:"properties,omitempty"`
	Outgoing   []conduct.Edge  `json:"outgoing,omitempty"`
	Detail     string          `json:"detail,omitempty"`
}

// Handler is the capability object for one node. Execute runs the node;
// Resume continues a node that previously reported StatusInterrupted.
// Both must return a non-nil Result or an error; an error is treated as
// a StatusError outcome by the scheduler.
//
// Handlers are invoked from scheduler-owned goroutines and must be safe
// for concurrent use across invocations.
type Handler interface {
	Execute(ctx context.Context, inv *Invocation) (*Result, error)
	Resume(ctx context.Context, inv *Invocation) (*Result, error)
}

// Resolver produces the capability object for a node identifier.
// Resolution happens at dispatch time, not enqueue time.
type Resolver interface {
	Resolve(nodeID conduct.NodeID) (Handler, error)
}

// Func adapts plain functions to the Handler interface. If ResumeFunc is
// nil, Resume falls back to ExecuteFunc.
type Func struct {
	ExecuteFunc func(ctx context.Context, inv *Invocation) (*Result, error)
	ResumeFunc  func(ctx context.Context, inv *Invocation) (*Result, error)
}

// Execute implements Handler.
func (f Func) Execute(ctx context.Context, inv *Invocation) (*Result, error) {
	return f.ExecuteFunc(ctx, inv)
}

// Resume implements Handler.
func (f Func) Resume(ctx context.Context, inv *Invocation) (*Result, error) {
	if f.ResumeFunc != nil {
		return f.ResumeFunc(ctx, inv)
	}
	return f.ExecuteFunc(ctx, inv)
}

// Completed returns a COMPLETED result with the given outgoing edges.
func Completed(outgoing ...conduct.Edge) *Result {
	return &Result{Status: conduct.StatusCompleted, Outgoing: outgoing}
}

// Interrupted returns an INTERRUPTED result with a human-readable detail.
func Interrupted(detail string) *Result {
	return &Result{Status: conduct.StatusInterrupted, Detail: detail}
}

// Errored returns an ERROR result with a human-readable detail.
func Errored(detail string) *Result {
	return &Result{Status: conduct.StatusError, Detail: detail}
}

// To builds an ordered edge list from target node identifiers.
func To(targets ...conduct.NodeID) []conduct.Edge {
	edges := make([]conduct.Edge, len(targets))
	for i, t := range targets {
		edges[i] = conduct.Edge{Target: t}
	}
	return edges
}
