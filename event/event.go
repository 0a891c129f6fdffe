// Package event provides the lifecycle event bus. The scheduler publishes
// execution-level notifications (completed, interrupted, errored, stopped);
// subscribers receive them asynchronously, in emission order per
// subscription.
package event

import (
	"encoding/json"
	"time"

	"github.com/flowmech/conduct"
	"github.com/flowmech/conduct/id"
)

// Kind names a lifecycle event type.
type Kind string

// Event kinds emitted by the scheduler.
const (
	// KindExecutionCompleted fires when a drain finds an execution with
	// no pending and no in-flight work.
	KindExecutionCompleted Kind = "execution.completed"
	// KindExecutionInterrupted fires when a node reports INTERRUPTED.
	KindExecutionInterrupted Kind = "execution.interrupted"
	// KindExecutionErrored fires when a node reports ERROR.
	KindExecutionErrored Kind = "execution.errored"
	// KindExecutionStopped fires when an execution is aborted via Stop.
	KindExecutionStopped Kind = "execution.stopped"
)

// Event is one lifecycle notification. Interrupted and errored events
// carry the full result fields of the reporting node; completed and
// stopped events carry the identity of the triggering action, if any.
type Event struct {
	ID          id.EventID          `json:"id"`
	Kind        Kind                `json:"kind"`
	ExecutionID conduct.ExecutionID `json:"execution_id"`
	ActionID    id.ActionID         `json:"action_id,omitzero"`
	NodeID      conduct.NodeID      `json:"node_id,omitempty"`
	NodeType    string              `json:"node_type,omitempty"`
	Properties  json.RawMessage     `json:"properties,omitempty"`
	Outgoing    []conduct.Edge      `json:"outgoing,omitempty"`
	Status      conduct.Status      `json:"status,omitempty"`
	Detail      string              `json:"detail,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}
