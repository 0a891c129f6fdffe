// Package node defines the capability contract between the scheduler and
// node implementations.
//
// A node is a unit of work in the workflow graph. Its behavior is supplied
// by a [Resolver], which maps a node identifier to a [Handler] exposing
// Execute and Resume. Handlers report their outcome by returning a
// [Result]; the scheduler performs chaining and bookkeeping when the call
// returns, so node code never touches scheduler internals.
//
// [Registry] is the standard Resolver: register handlers directly, wrap
// plain functions with [Func], or register typed definitions with
// [RegisterDefinition] to get JSON property round-tripping for free.
package node
