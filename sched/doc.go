// Package sched implements the execution scheduler core.
//
// Per execution, the scheduler owns a FIFO pending queue of dispatch
// requests and a running set of in-flight actions. AddAction seeds the
// queue; Run drains it, minting a fresh action identity per request and
// dispatching each node without waiting for the previous one. When a
// node's handler returns, the scheduler appends an execution record,
// enqueues the result's outgoing edges, and re-enters Run to keep
// draining. A drain that finds both the queue and the running set empty
// declares the execution complete and reclaims its state.
//
// All mutations of a scheduler's (queue, running set) pairs are
// serialized by one mutex, so concurrent completion reports from
// sibling actions can never corrupt the bookkeeping: the queue
// snapshot-and-clear, the running-set updates, and the both-empty
// termination check all happen under the same lock hold. Different
// executions share the mutex but are otherwise fully independent.
//
// Interrupted nodes are removed from the running set without triggering
// another drain; the execution stays dormant until Resume re-dispatches
// the node under its original action identity.
package sched
