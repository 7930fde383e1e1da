package flowgraph

import (
	"fmt"

	"github.com/raytchel123/raytchel/pkg/domain"
)

// Result is the outcome of one validation pass.
// Valid is true iff Errors is empty; Warnings never block publishing.
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
}

// Validate checks the structural integrity of a flow graph.
//
// Hard errors: a goTo/option/condition reference to a node id that does
// not exist (one error per dangling reference), a start id outside the
// node set, duplicate node ids, and a missing or multiple start-typed
// node. Unreachable nodes are reported as warnings.
func Validate(g domain.Graph) Result {
	var res Result

	ids := make(map[string]bool, len(g.Nodes))
	startTyped := 0
	for _, n := range g.Nodes {
		if ids[n.ID] {
			res.Errors = append(res.Errors, fmt.Sprintf("duplicate node id %s", n.ID))
		}
		ids[n.ID] = true
		if n.Type == domain.NodeStart {
			startTyped++
		}
	}

	for _, n := range g.Nodes {
		for _, target := range n.Targets() {
			if !ids[target] {
				res.Errors = append(res.Errors,
					fmt.Sprintf("node %s references non-existent node %s", n.ID, target))
			}
		}
	}

	if !ids[g.Start] {
		res.Errors = append(res.Errors, "start node not found")
	}

	switch {
	case startTyped == 0 && len(g.Nodes) > 0:
		res.Errors = append(res.Errors, "flow has no start-typed node")
	case startTyped > 1:
		res.Errors = append(res.Errors, fmt.Sprintf("flow has %d start-typed nodes, want 1", startTyped))
	}

	if ids[g.Start] {
		for _, id := range unreachable(g, ids) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("node %s is unreachable from start", id))
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// unreachable runs a forward traversal from start and returns every node
// id never visited, in declaration order.
func unreachable(g domain.Graph, ids map[string]bool) []string {
	visited := make(map[string]bool, len(ids))
	queue := []string{g.Start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true

		node, ok := g.Node(cur)
		if !ok {
			continue
		}
		for _, target := range node.Targets() {
			if ids[target] && !visited[target] {
				queue = append(queue, target)
			}
		}
	}

	var missing []string
	for _, n := range g.Nodes {
		if !visited[n.ID] {
			missing = append(missing, n.ID)
		}
	}
	return missing
}
