package conduct

// ExecutionID identifies one running instance of a workflow graph.
// It is opaque and caller-supplied; all scheduler state is keyed by it.
type ExecutionID string

// String returns the identifier as a plain string.
func (e ExecutionID) String() string { return string(e) }

// NodeID identifies a unit of work in the workflow graph. Node behavior
// is supplied by an external resolver; the scheduler never interprets
// the identifier beyond using it as a lookup key.
type NodeID string

// String returns the identifier as a plain string.
func (n NodeID) String() string { return string(n) }

// Status is the reported outcome of one node invocation attempt.
type Status string

// Status values reported by node handlers.
const (
	// StatusRunning means the node considers itself still in progress.
	// The scheduler treats it like a completion for chaining purposes.
	StatusRunning Status = "RUNNING"
	// StatusCompleted means the node finished and its outgoing edges
	// should be followed.
	StatusCompleted Status = "COMPLETED"
	// StatusInterrupted means the node deliberately suspended pending
	// external input. It is resumed later under the same action identity.
	StatusInterrupted Status = "INTERRUPTED"
	// StatusError means the node failed.
	StatusError Status = "ERROR"
)

// Edge declares a successor node reached upon a node's completion.
// Outgoing edge order is preserved through enqueue and dispatch.
type Edge struct {
	Target NodeID `json:"target"`
}

// ErrorPolicy controls how the scheduler reacts when a node reports
// StatusError.
type ErrorPolicy int

const (
	// ContinueOnError keeps dispatching sibling and queued nodes after a
	// node errors. The execution may still end with a completed event.
	// This is the default.
	ContinueOnError ErrorPolicy = iota
	// HaltOnError drops all queued work and suppresses chaining once a
	// node errors. In-flight siblings finish but discover no successors,
	// and no completed event is emitted; the errored event is the
	// terminal signal.
	HaltOnError
)

// String returns a human-readable policy name.
func (p ErrorPolicy) String() string {
	switch p {
	case HaltOnError:
		return "halt-on-error"
	default:
		return "continue-on-error"
	}
}
