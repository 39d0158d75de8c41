package graph

import "github.com/tcmartin/flowexec/pkg/models"

// Order computes a deterministic execution order for the graph. For
// acyclic graphs the result is a topological order; ties are broken by
// the nodes' original listing order. Graphs containing a cycle still
// produce a permutation of every node exactly once: when no remaining
// node has all predecessors placed, the next remaining node in original
// order is force-appended and ordering continues.
func Order(nodes []models.Node, edges []models.Edge) []string {
	order, _ := OrderWithReport(nodes, edges)
	return order
}

// OrderWithReport is Order plus a flag reporting whether a deadlock
// (cycle or dangling dependency) had to be force-broken, so callers can
// surface the degradation.
func OrderWithReport(nodes []models.Node, edges []models.Edge) ([]string, bool) {
	// Predecessor sets; duplicate edges collapse here.
	preds := make(map[string]map[string]bool, len(nodes))
	for _, n := range nodes {
		preds[n.ID] = nil
	}
	for _, e := range edges {
		if _, ok := preds[e.Target]; !ok {
			continue
		}
		if preds[e.Target] == nil {
			preds[e.Target] = make(map[string]bool)
		}
		preds[e.Target][e.Source] = true
	}

	order := make([]string, 0, len(nodes))
	placed := make(map[string]bool, len(nodes))
	remaining := make([]string, 0, len(nodes))
	for _, n := range nodes {
		remaining = append(remaining, n.ID)
	}

	degraded := false
	for len(remaining) > 0 {
		next := -1
		for i, id := range remaining {
			ready := true
			for p := range preds[id] {
				if !placed[p] {
					ready = false
					break
				}
			}
			if ready {
				next = i
				break
			}
		}

		// Deadlocked: cycle or dependency outside the node set. Break it
		// by taking the next remaining node in original order.
		if next == -1 {
			next = 0
			degraded = true
		}

		id := remaining[next]
		order = append(order, id)
		placed[id] = true
		remaining = append(remaining[:next], remaining[next+1:]...)
	}

	return order, degraded
}
