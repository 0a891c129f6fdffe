package node

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowmech/conduct"
)

// Definition describes a typed node. Props is marshaled once at
// registration time and stamped onto every result, so the persisted
// record and emitted events carry the node's configuration.
type Definition[T any] struct {
	// ID is the node identifier this definition binds to.
	ID conduct.NodeID

	// Type is a human-readable node type name (e.g. "http-call",
	// "approval"). Stamped onto results that don't set their own.
	Type string

	// Props is the node's static configuration.
	Props T

	// Execute runs the node.
	Execute func(ctx context.Context, inv *Invocation, props T) (*Result, error)

	// Resume continues an interrupted node. Optional; falls back to
	// Execute when nil.
	Resume func(ctx context.Context, inv *Invocation, props T) (*Result, error)
}

// RegisterDefinition registers a typed node definition. The definition's
// Props are JSON-marshaled once and attached to results that carry no
// properties of their own, mirroring what the handler received.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T any](r *Registry, def *Definition[T]) error {
	props, err := json.Marshal(def.Props)
	if err != nil {
		return fmt.Errorf("marshal props for node %q: %w", def.ID, err)
	}

	stamp := func(res *Result) *Result {
		if res == nil {
			return nil
		}
		if res.Type == "" {
			res.Type = def.Type
		}
		if res.Properties == nil {
			res.Properties = props
		}
		return res
	}

	execute := func(ctx context.Context, inv *Invocation) (*Result, error) {
		res, execErr := def.Execute(ctx, inv, def.Props)
		return stamp(res), execErr
	}

	var resume func(ctx context.Context, inv *Invocation) (*Result, error)
	if def.Resume != nil {
		resume = func(ctx context.Context, inv *Invocation) (*Result, error) {
			res, resErr := def.Resume(ctx, inv, def.Props)
			return stamp(res), resErr
		}
	}

	r.Register(def.ID, Func{ExecuteFunc: execute, ResumeFunc: resume})
	return nil
}
