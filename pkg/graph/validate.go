// Package graph validates workflow graphs and computes execution order.
package graph

import (
	"fmt"

	"github.com/tcmartin/flowexec/pkg/models"
)

// ValidationError describes why a graph was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid graph: " + e.Reason
}

// Validate rejects graphs with an empty node set, duplicate node ids, or
// edges referencing unknown nodes. Cycles are not rejected here; the
// scheduler degrades gracefully on them so malformed generated graphs
// still execute.
func Validate(g models.Graph) error {
	if len(g.Nodes) == 0 {
		return &ValidationError{Reason: "graph has no nodes"}
	}

	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return &ValidationError{Reason: "node with empty id"}
		}
		if seen[n.ID] {
			return &ValidationError{Reason: fmt.Sprintf("duplicate node id %q", n.ID)}
		}
		seen[n.ID] = true
	}

	for _, e := range g.Edges {
		if !seen[e.Source] {
			return &ValidationError{Reason: fmt.Sprintf("edge source %q is not a node", e.Source)}
		}
		if !seen[e.Target] {
			return &ValidationError{Reason: fmt.Sprintf("edge target %q is not a node", e.Target)}
		}
	}

	return nil
}
