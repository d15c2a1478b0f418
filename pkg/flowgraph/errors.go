// Package flowgraph models per-flow dependency graphs: node levels, edge
// queries, embedded-flow expansion and the flow lock state machine.
package flowgraph

import "errors"

var (
	// ErrCyclicDependency is returned when a flow's edges contain a cycle.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrSelfDependency is returned for an edge from a node to itself.
	ErrSelfDependency = errors.New("node depends on itself")

	// ErrEmbeddedFlowCycle is returned when a flow embeds itself, directly
	// or transitively.
	ErrEmbeddedFlowCycle = errors.New("embedded flow cycle detected")

	// ErrTriggerUnavailable is returned when the trigger scheduler call
	// itself failed during a lock transition.
	ErrTriggerUnavailable = errors.New("trigger scheduler unavailable")
)
