package domain

import (
	"fmt"
	"strconv"
)

// Node is a single script-bearing unit of a workflow graph
type Node struct {
	ID     string `json:"id"`
	Script string `json:"script"`
}

// Edge means "execute Target after Source"
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph holds nodes and edges in insertion order.
//
// A Graph is not safe for concurrent use. Node ids are allocated from a
// counter owned by the graph itself.
type Graph struct {
	nodes  []Node
	index  map[string]int
	edges  []Edge
	nextID int
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		index: make(map[string]int),
	}
}

// NewGraphFrom builds a graph from caller supplied nodes and edges.
// Edges must reference nodes present in the list.
func NewGraphFrom(nodes []Node, edges []Edge) (*Graph, error) {
	g := NewGraph()
	for _, n := range nodes {
		if err := g.AddNodeWithID(n.ID, n.Script); err != nil {
			return nil, err
		}
	}
	for _, e := range edges {
		if err := g.AddEdge(e.Source, e.Target); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddNode appends a node with the next free numeric id
func (g *Graph) AddNode(script string) Node {
	for {
		id := strconv.Itoa(g.nextID)
		g.nextID++
		if _, taken := g.index[id]; !taken {
			n := Node{ID: id, Script: script}
			g.append(n)
			return n
		}
	}
}

// AddNodeWithID appends a node with an explicit id
func (g *Graph) AddNodeWithID(id, script string) error {
	if id == "" {
		return fmt.Errorf("node ID is required")
	}
	if _, exists := g.index[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, id)
	}
	g.append(Node{ID: id, Script: script})

	// Keep the counter ahead of explicit numeric ids
	if n, err := strconv.Atoi(id); err == nil && n >= g.nextID {
		g.nextID = n + 1
	}
	return nil
}

func (g *Graph) append(n Node) {
	g.index[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
}

// AddEdge appends a directed edge between two existing nodes
func (g *Graph) AddEdge(source, target string) error {
	if _, ok := g.index[source]; !ok {
		return fmt.Errorf("%w: edge source %s", ErrUnknownNode, source)
	}
	if _, ok := g.index[target]; !ok {
		return fmt.Errorf("%w: edge target %s", ErrUnknownNode, target)
	}
	g.edges = append(g.edges, Edge{Source: source, Target: target})
	return nil
}

// RemoveEdge removes every edge from source to target.
// It reports whether anything was removed.
func (g *Graph) RemoveEdge(source, target string) bool {
	kept := g.edges[:0]
	removed := false
	for _, e := range g.edges {
		if e.Source == source && e.Target == target {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept
	return removed
}

// RemoveNode removes a node and all edges touching it
func (g *Graph) RemoveNode(id string) error {
	pos, ok := g.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}

	g.nodes = append(g.nodes[:pos], g.nodes[pos+1:]...)
	delete(g.index, id)
	for i := pos; i < len(g.nodes); i++ {
		g.index[g.nodes[i].ID] = i
	}

	kept := g.edges[:0]
	for _, e := range g.edges {
		if e.Source != id && e.Target != id {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	return nil
}

// SetScript replaces a node's script
func (g *Graph) SetScript(id, script string) error {
	pos, ok := g.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	g.nodes[pos].Script = script
	return nil
}

// Node returns the node with the given id
func (g *Graph) Node(id string) (Node, bool) {
	pos, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[pos], true
}

// Nodes returns a copy of the nodes in insertion order
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns a copy of the edges in insertion order
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Clone returns an independent copy of the graph
func (g *Graph) Clone() *Graph {
	c := &Graph{
		nodes:  g.Nodes(),
		index:  make(map[string]int, len(g.index)),
		edges:  g.Edges(),
		nextID: g.nextID,
	}
	for id, pos := range g.index {
		c.index[id] = pos
	}
	return c
}
