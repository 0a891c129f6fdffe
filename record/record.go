// Package record defines the append-only execution history contract.
//
// The scheduler appends one record per settled node invocation. The store
// has no read surface the scheduler depends on; backends exist for memory,
// Redis, and PostgreSQL. Stores must tolerate duplicate records for the
// same (execution, action) pair — the contract is append-only, at-least-once.
package record

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flowmech/conduct"
	"github.com/flowmech/conduct/id"
)

// Record is one persisted action-execution entry.
type Record struct {
	ID          id.RecordID         `json:"id"`
	Timestamp   time.Time           `json:"timestamp"`
	ExecutionID conduct.ExecutionID `json:"execution_id"`
	ActionID    id.ActionID         `json:"action_id"`
	NodeID      conduct.NodeID      `json:"node_id"`
	NodeType    string              `json:"node_type,omitempty"`
	Properties  json.RawMessage     `json:"properties,omitempty"`
	Outgoing    []conduct.Edge      `json:"outgoing,omitempty"`
	Status      conduct.Status      `json:"status,omitempty"`
	Detail      string              `json:"detail,omitempty"`
}

// Store is the persistence contract for execution records.
type Store interface {
	// AppendRecord durably appends an action-execution record.
	// Implementations must accept duplicates for the same action.
	AppendRecord(ctx context.Context, rec *Record) error
}
