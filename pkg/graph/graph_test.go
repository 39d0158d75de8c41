package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcmartin/flowexec/pkg/models"
)

func nodes(ids ...string) []models.Node {
	out := make([]models.Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Node{ID: id, Kind: "noop"})
	}
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		graph   models.Graph
		wantErr string
	}{
		{
			name:    "empty graph",
			graph:   models.Graph{},
			wantErr: "no nodes",
		},
		{
			name: "duplicate node id",
			graph: models.Graph{
				Nodes: nodes("a", "b", "a"),
			},
			wantErr: `duplicate node id "a"`,
		},
		{
			name: "empty node id",
			graph: models.Graph{
				Nodes: []models.Node{{ID: "", Kind: "noop"}},
			},
			wantErr: "empty id",
		},
		{
			name: "edge source unknown",
			graph: models.Graph{
				Nodes: nodes("a", "b"),
				Edges: []models.Edge{{Source: "x", Target: "b"}},
			},
			wantErr: `edge source "x"`,
		},
		{
			name: "edge target unknown",
			graph: models.Graph{
				Nodes: nodes("a", "b"),
				Edges: []models.Edge{{Source: "a", Target: "x"}},
			},
			wantErr: `edge target "x"`,
		},
		{
			name: "valid linear graph",
			graph: models.Graph{
				Nodes: nodes("a", "b", "c"),
				Edges: []models.Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "c"}},
			},
		},
		{
			name: "cycles are accepted",
			graph: models.Graph{
				Nodes: nodes("a", "b"),
				Edges: []models.Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "a"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.graph)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestOrderLinear(t *testing.T) {
	order := Order(nodes("a", "b", "c"), []models.Edge{
		{Source: "a", Target: "b"},
		{Source: "b", Target: "c"},
	})
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestOrderRespectsEdges(t *testing.T) {
	// d is listed first but depends on everything else.
	order := Order(nodes("d", "a", "b", "c"), []models.Edge{
		{Source: "a", Target: "d"},
		{Source: "b", Target: "d"},
		{Source: "c", Target: "d"},
		{Source: "a", Target: "b"},
	})
	require.Len(t, order, 4)
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos["a"], pos["d"])
	assert.Less(t, pos["b"], pos["d"])
	assert.Less(t, pos["c"], pos["d"])
	assert.Less(t, pos["a"], pos["b"])
}

func TestOrderTieBreaksByListingOrder(t *testing.T) {
	// No edges at all: order must equal the listing order.
	order := Order(nodes("z", "m", "a"), nil)
	assert.Equal(t, []string{"z", "m", "a"}, order)
}

func TestOrderDuplicateEdgesIdempotent(t *testing.T) {
	order := Order(nodes("a", "b"), []models.Edge{
		{Source: "a", Target: "b"},
		{Source: "a", Target: "b"},
		{Source: "a", Target: "b"},
	})
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestOrderCycleTerminates(t *testing.T) {
	order, degraded := OrderWithReport(nodes("a", "b", "c"), []models.Edge{
		{Source: "a", Target: "b"},
		{Source: "b", Target: "c"},
		{Source: "c", Target: "a"},
	})
	assert.True(t, degraded)
	require.Len(t, order, 3)
	seen := make(map[string]bool)
	for _, id := range order {
		assert.False(t, seen[id], "node %s ordered twice", id)
		seen[id] = true
	}
	// Force-break picks the first listed node, and the rest unlock.
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestOrderPartialCycle(t *testing.T) {
	// x is independent; b and c form a cycle fed by a.
	order, degraded := OrderWithReport(nodes("a", "b", "c", "x"), []models.Edge{
		{Source: "a", Target: "b"},
		{Source: "b", Target: "c"},
		{Source: "c", Target: "b"},
	})
	assert.True(t, degraded)
	assert.ElementsMatch(t, []string{"a", "b", "c", "x"}, order)
	assert.Equal(t, "a", order[0])
}

func TestOrderAcyclicNotDegraded(t *testing.T) {
	_, degraded := OrderWithReport(nodes("a", "b"), []models.Edge{{Source: "a", Target: "b"}})
	assert.False(t, degraded)
}
