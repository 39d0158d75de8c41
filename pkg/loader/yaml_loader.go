// Package loader parses YAML workflow definitions into graphs.
package loader

import (
	"fmt"

	"github.com/tcmartin/flowexec/pkg/graph"
	"github.com/tcmartin/flowexec/pkg/models"
	"gopkg.in/yaml.v3"
)

// Definition is the YAML document shape:
//
//	workflow:
//	  id: my-workflow
//	nodes:
//	  - id: fetch
//	    kind: api_call
//	    config:
//	      url: https://example.com
//	edges:
//	  - source: fetch
//	    target: notify
type Definition struct {
	Workflow struct {
		ID string `yaml:"id"`
	} `yaml:"workflow"`
	Nodes []nodeDef `yaml:"nodes"`
	Edges []edgeDef `yaml:"edges"`
}

type nodeDef struct {
	ID     string                 `yaml:"id"`
	Kind   string                 `yaml:"kind"`
	Config map[string]interface{} `yaml:"config"`
}

type edgeDef struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// ParseGraph converts a YAML workflow definition into a validated graph
// and its workflow ID.
func ParseGraph(content []byte) (string, models.Graph, error) {
	var def Definition
	if err := yaml.Unmarshal(content, &def); err != nil {
		return "", models.Graph{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if def.Workflow.ID == "" {
		return "", models.Graph{}, fmt.Errorf("workflow id is required")
	}

	g := models.Graph{
		Nodes: make([]models.Node, 0, len(def.Nodes)),
		Edges: make([]models.Edge, 0, len(def.Edges)),
	}
	for _, n := range def.Nodes {
		g.Nodes = append(g.Nodes, models.Node{
			ID:     n.ID,
			Kind:   n.Kind,
			Config: n.Config,
		})
	}
	for _, e := range def.Edges {
		g.Edges = append(g.Edges, models.Edge{Source: e.Source, Target: e.Target})
	}

	if err := graph.Validate(g); err != nil {
		return "", models.Graph{}, err
	}
	return def.Workflow.ID, g, nil
}
