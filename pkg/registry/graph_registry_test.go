package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcmartin/flowexec/pkg/models"
)

func TestGraphRegistryPutGet(t *testing.T) {
	r := NewGraphRegistry()

	_, err := r.Get("wf")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)

	g := models.Graph{
		Nodes: []models.Node{{ID: "a", Kind: "noop"}},
		Edges: []models.Edge{},
	}
	r.Put("wf", g)

	got, err := r.Get("wf")
	require.NoError(t, err)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "a", got.Nodes[0].ID)

	// Registry copies are isolated from caller mutation.
	got.Nodes[0].ID = "tampered"
	again, err := r.Get("wf")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Nodes[0].ID)
}

func TestGraphRegistryLastKnownWins(t *testing.T) {
	r := NewGraphRegistry()
	r.Put("wf", models.Graph{Nodes: []models.Node{{ID: "old"}}})
	r.Put("wf", models.Graph{Nodes: []models.Node{{ID: "new"}}})

	got, err := r.Get("wf")
	require.NoError(t, err)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "new", got.Nodes[0].ID)
	assert.Equal(t, []string{"wf"}, r.List())
}
