package orchestrator

import (
	"fmt"
	"strings"

	"github.com/aescanero/scriptflow/pkg/domain"
)

// FindEntryNode returns the first node, in iteration order, that is not the
// target of any edge. When several nodes qualify the first one wins.
func FindEntryNode(nodes []domain.Node, edges []domain.Edge) (string, error) {
	targets := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		targets[e.Target] = struct{}{}
	}

	for _, n := range nodes {
		if _, isTarget := targets[n.ID]; !isTarget {
			return n.ID, nil
		}
	}

	return "", &domain.GraphError{
		Kind: domain.ErrNoEntryNode,
		Msg:  "every node is the target of an edge",
	}
}

// Linearize follows edges from entry and returns the visited ids in order.
//
// Edges sharing a source are last-write-wins. The walk is bounded by
// nodeCount; revisiting a node or exceeding the bound is a cycle.
func Linearize(entry string, edges []domain.Edge, nodeCount int) ([]string, error) {
	next := make(map[string]string, len(edges))
	for _, e := range edges {
		next[e.Source] = e.Target
	}

	order := []string{entry}
	visited := map[string]bool{entry: true}

	current := entry
	for {
		target, ok := next[current]
		if !ok {
			return order, nil
		}
		if visited[target] || len(order) >= nodeCount {
			return nil, &domain.GraphError{
				Kind: domain.ErrCycleDetected,
				Msg:  strings.Join(append(order, target), " -> "),
			}
		}
		visited[target] = true
		order = append(order, target)
		current = target
	}
}

// Resolve derives the execution order of a graph. An empty graph resolves
// to an empty order.
func Resolve(g *domain.Graph, requireFullCoverage bool) ([]string, error) {
	if g.Len() == 0 {
		return []string{}, nil
	}

	nodes := g.Nodes()
	edges := g.Edges()

	entry, err := FindEntryNode(nodes, edges)
	if err != nil {
		return nil, err
	}

	order, err := Linearize(entry, edges, len(nodes))
	if err != nil {
		return nil, err
	}

	for _, id := range order {
		if _, ok := g.Node(id); !ok {
			return nil, &domain.GraphError{
				Kind: domain.ErrUnknownNode,
				Msg:  fmt.Sprintf("edge leads to %s", id),
			}
		}
	}

	if requireFullCoverage && len(order) < len(nodes) {
		return nil, &domain.GraphError{
			Kind: domain.ErrUnreachableNodes,
			Msg:  fmt.Sprintf("chain from %s ends after %d of %d nodes", entry, len(order), len(nodes)),
		}
	}

	return order, nil
}
