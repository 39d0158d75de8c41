// Package registry stores the last-known graph for each workflow.
package registry

import (
	"errors"
	"sync"

	"github.com/tcmartin/flowexec/pkg/models"
)

// Errors returned by the graph registry
var (
	ErrWorkflowNotFound = errors.New("workflow not found")
)

// GraphRegistry keeps the most recently submitted graph per workflow so
// schedule and event triggers can start runs without a caller supplying
// the graph again. Every executeFlow call refreshes the entry.
type GraphRegistry struct {
	mu     sync.RWMutex
	graphs map[string]models.Graph
}

// NewGraphRegistry creates an empty registry.
func NewGraphRegistry() *GraphRegistry {
	return &GraphRegistry{
		graphs: make(map[string]models.Graph),
	}
}

// Put records the last-known graph for a workflow.
func (r *GraphRegistry) Put(workflowID string, g models.Graph) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graphs[workflowID] = cloneGraph(g)
}

// Get returns the last-known graph for a workflow.
func (r *GraphRegistry) Get(workflowID string) (models.Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.graphs[workflowID]
	if !ok {
		return models.Graph{}, ErrWorkflowNotFound
	}
	return cloneGraph(g), nil
}

// List returns the workflow IDs with a known graph.
func (r *GraphRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.graphs))
	for id := range r.graphs {
		ids = append(ids, id)
	}
	return ids
}

// cloneGraph copies nodes and edges so callers and the registry never
// share backing arrays. Node configs are opaque and shared by value.
func cloneGraph(g models.Graph) models.Graph {
	out := models.Graph{
		Nodes: make([]models.Node, len(g.Nodes)),
		Edges: make([]models.Edge, len(g.Edges)),
	}
	copy(out.Nodes, g.Nodes)
	copy(out.Edges, g.Edges)
	return out
}
