// Package conduct provides a composable workflow execution scheduler for Go.
// Given a directed graph of nodes belonging to a running execution, it
// decides which nodes are eligible to run, dispatches them concurrently,
// propagates completion along outgoing edges, and detects when an execution
// has no more work to do.
//
// Conduct is designed as a library, not a service. Import it, configure a
// record store, register node handlers, and seed executions with entry nodes.
//
// # Quick Start
//
//	eng, err := engine.New(
//	    engine.WithStore(memory.New()),
//	)
//	eng.Registry().Register("approve", approvalNode)
//	eng.Start("exec-1", "approve")
//
// # Architecture
//
// Control is inverted: node handlers report their own completion by
// returning from Execute or Resume, and the scheduler reacts correctly
// regardless of the timing or ordering of those reports. Each completion
// atomically triggers discovery of the next eligible nodes and a
// termination check. Interrupted nodes can be resumed out of band under
// their original action identity.
//
// Each subsystem lives in its own package: node (capability contracts),
// record (append-only execution history), event (lifecycle bus), sched
// (the scheduler core), and engine (wiring). Record stores exist for
// memory, Redis, and PostgreSQL.
//
// All minted identifiers use TypeID — type-prefixed, K-sortable,
// UUIDv7-based identifiers.
package conduct
