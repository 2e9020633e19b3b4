package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_AddNodeAllocatesSequentialIDs(t *testing.T) {
	g := NewGraph()

	a := g.AddNode("print(1)")
	b := g.AddNode("print(2)")

	assert.Equal(t, "0", a.ID)
	assert.Equal(t, "1", b.ID)
	assert.Equal(t, 2, g.Len())
}

func TestGraph_CountersAreLocalToEachGraph(t *testing.T) {
	g1 := NewGraph()
	g2 := NewGraph()

	g1.AddNode("")
	g1.AddNode("")

	assert.Equal(t, "0", g2.AddNode("").ID)
}

func TestGraph_AddNodeSkipsExplicitIDs(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNodeWithID("0", "seed"))
	require.NoError(t, g.AddNodeWithID("5", "explicit"))

	n := g.AddNode("next")
	assert.Equal(t, "6", n.ID)
}

func TestGraph_AddNodeWithIDRejectsDuplicates(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNodeWithID("a", ""))

	err := g.AddNodeWithID("a", "")
	assert.True(t, errors.Is(err, ErrDuplicateNode))

	assert.Error(t, g.AddNodeWithID("", ""))
}

func TestGraph_AddEdgeRequiresExistingNodes(t *testing.T) {
	g := NewGraph()
	a := g.AddNode("")

	err := g.AddEdge(a.ID, "missing")
	assert.True(t, errors.Is(err, ErrUnknownNode))

	err = g.AddEdge("missing", a.ID)
	assert.True(t, errors.Is(err, ErrUnknownNode))
}

func TestGraph_RemoveNodeDropsIncidentEdges(t *testing.T) {
	g := NewGraph()
	a := g.AddNode("a")
	b := g.AddNode("b")
	c := g.AddNode("c")
	require.NoError(t, g.AddEdge(a.ID, b.ID))
	require.NoError(t, g.AddEdge(b.ID, c.ID))

	require.NoError(t, g.RemoveNode(b.ID))

	assert.Equal(t, []Node{a, c}, g.Nodes())
	assert.Empty(t, g.Edges())

	got, ok := g.Node(c.ID)
	require.True(t, ok)
	assert.Equal(t, "c", got.Script)

	assert.True(t, errors.Is(g.RemoveNode(b.ID), ErrUnknownNode))
}

func TestGraph_RemoveEdge(t *testing.T) {
	g := NewGraph()
	a := g.AddNode("")
	b := g.AddNode("")
	require.NoError(t, g.AddEdge(a.ID, b.ID))

	assert.True(t, g.RemoveEdge(a.ID, b.ID))
	assert.False(t, g.RemoveEdge(a.ID, b.ID))
	assert.Empty(t, g.Edges())
}

func TestGraph_SetScript(t *testing.T) {
	g := NewGraph()
	a := g.AddNode("old")

	require.NoError(t, g.SetScript(a.ID, "new"))
	got, _ := g.Node(a.ID)
	assert.Equal(t, "new", got.Script)

	assert.True(t, errors.Is(g.SetScript("nope", ""), ErrUnknownNode))
}

func TestGraph_CloneIsIndependent(t *testing.T) {
	g := NewGraph()
	a := g.AddNode("original")
	b := g.AddNode("")
	require.NoError(t, g.AddEdge(a.ID, b.ID))

	c := g.Clone()
	require.NoError(t, g.SetScript(a.ID, "edited"))
	require.NoError(t, g.RemoveNode(b.ID))

	got, ok := c.Node(a.ID)
	require.True(t, ok)
	assert.Equal(t, "original", got.Script)
	assert.Len(t, c.Nodes(), 2)
	assert.Equal(t, []Edge{{Source: a.ID, Target: b.ID}}, c.Edges())
}

func TestNewGraphFrom(t *testing.T) {
	g, err := NewGraphFrom(
		[]Node{{ID: "x", Script: "1"}, {ID: "y", Script: "2"}},
		[]Edge{{Source: "x", Target: "y"}},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())
	assert.Len(t, g.Edges(), 1)

	_, err = NewGraphFrom([]Node{{ID: "x"}}, []Edge{{Source: "x", Target: "z"}})
	assert.True(t, errors.Is(err, ErrUnknownNode))
}
