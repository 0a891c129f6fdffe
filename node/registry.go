package node

import (
	"fmt"
	"sync"

	"github.com/flowmech/conduct"
)

// Registry maps node identifiers to handlers and implements Resolver.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[conduct.NodeID]Handler
}

// Compile-time interface check.
var _ Resolver = (*Registry)(nil)

// NewRegistry creates an empty node registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[conduct.NodeID]Handler),
	}
}

// Register binds a handler to a node identifier, replacing any existing
// binding.
func (r *Registry) Register(nodeID conduct.NodeID, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[nodeID] = h
}

// Resolve implements Resolver. Returns an error wrapping
// conduct.ErrNodeNotFound if no handler is registered.
func (r *Registry) Resolve(nodeID conduct.NodeID) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", conduct.ErrNodeNotFound, nodeID)
	}
	return h, nil
}

// IDs returns all registered node identifiers.
func (r *Registry) IDs() []conduct.NodeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]conduct.NodeID, 0, len(r.handlers))
	for nodeID := range r.handlers {
		ids = append(ids, nodeID)
	}
	return ids
}
