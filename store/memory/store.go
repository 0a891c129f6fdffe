// Package memory implements store.Store with in-process maps. It is the
// default backend for development and tests; records do not survive a
// restart.
package memory

import (
	"context"
	"sync"

	"github.com/flowmech/conduct"
	"github.com/flowmech/conduct/record"
	"github.com/flowmech/conduct/store"
)

// Compile-time interface checks.
var (
	_ record.Store = (*Store)(nil)
	_ store.Store  = (*Store)(nil)
)

// Store implements the composite store.Store interface in memory.
// It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	recs map[conduct.ExecutionID][]*record.Record
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		recs: make(map[conduct.ExecutionID][]*record.Record),
	}
}

// AppendRecord implements record.Store. The record is copied so later
// caller mutations cannot corrupt stored history.
func (s *Store) AppendRecord(_ context.Context, rec *record.Record) error {
	cp := *rec

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[cp.ExecutionID] = append(s.recs[cp.ExecutionID], &cp)
	return nil
}

// Records returns the appended records for an execution in append order.
func (s *Store) Records(execID conduct.ExecutionID) []*record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.recs[execID]
	out := make([]*record.Record, len(recs))
	copy(out, recs)
	return out
}

// Executions returns all execution identifiers with at least one record.
func (s *Store) Executions() []conduct.ExecutionID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]conduct.ExecutionID, 0, len(s.recs))
	for execID := range s.recs {
		ids = append(ids, execID)
	}
	return ids
}

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close discards all stored records.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = make(map[conduct.ExecutionID][]*record.Record)
	return nil
}
