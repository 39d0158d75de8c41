// Package models defines the data types shared across the workflow engine.
package models

// Node is a unit of work in a workflow graph. Identity is the ID; Kind
// selects which executor capability handles it. The engine never inspects
// Config contents, it only routes by Kind.
type Node struct {
	// ID of the node, unique within a graph
	ID string `json:"id"`

	// Kind of the node, e.g. "api_call", "send_message"
	Kind string `json:"kind"`

	// Config is an opaque key/value map passed through to the executor
	Config map[string]interface{} `json:"config,omitempty"`
}

// Edge is a directed must-run-before relationship between two nodes.
// Duplicate edges between the same pair are permitted and idempotent for
// ordering purposes.
type Edge struct {
	// Source node ID
	Source string `json:"source"`

	// Target node ID
	Target string `json:"target"`
}

// Graph is an immutable snapshot of nodes and edges supplied at run start.
// The engine never mutates a caller's graph.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}
