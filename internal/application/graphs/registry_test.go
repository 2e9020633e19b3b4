package graphs

import (
	"testing"

	"github.com/aescanero/scriptflow/pkg/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistry_CreateSeedsFirstNode(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	info := r.Create("demo")
	_, err := uuid.Parse(info.ID)
	require.NoError(t, err)
	assert.Equal(t, "demo", info.Name)
	require.Len(t, info.Nodes, 1)
	assert.Equal(t, FirstNodeID, info.Nodes[0].ID)
	assert.Empty(t, info.Edges)
}

func TestRegistry_AddNodeAfter(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	id := r.Create("").ID

	n1, err := r.AddNode(id, "print(1)", FirstNodeID)
	require.NoError(t, err)
	assert.Equal(t, "1", n1.ID)

	n2, err := r.AddNode(id, "print(2)", "")
	require.NoError(t, err)
	assert.Equal(t, "2", n2.ID)

	info, err := r.Get(id)
	require.NoError(t, err)
	assert.Len(t, info.Nodes, 3)
	assert.Equal(t, []domain.Edge{{Source: FirstNodeID, Target: "1"}}, info.Edges)

	_, err = r.AddNode(id, "x", "missing")
	assert.ErrorIs(t, err, domain.ErrUnknownNode)

	info, err = r.Get(id)
	require.NoError(t, err)
	assert.Len(t, info.Nodes, 3, "failed add must not leave a node behind")
}

func TestRegistry_EditOperations(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	id := r.Create("").ID

	n1, err := r.AddNode(id, "a", "")
	require.NoError(t, err)

	require.NoError(t, r.SetScript(id, FirstNodeID, "start"))
	require.NoError(t, r.Connect(id, FirstNodeID, n1.ID))
	assert.ErrorIs(t, r.Connect(id, FirstNodeID, "nope"), domain.ErrUnknownNode)

	require.NoError(t, r.Disconnect(id, FirstNodeID, n1.ID))
	assert.ErrorIs(t, r.Disconnect(id, FirstNodeID, n1.ID), ErrEdgeNotFound)

	require.NoError(t, r.Connect(id, FirstNodeID, n1.ID))
	require.NoError(t, r.RemoveNode(id, n1.ID))

	info, err := r.Get(id)
	require.NoError(t, err)
	require.Len(t, info.Nodes, 1)
	assert.Equal(t, "start", info.Nodes[0].Script)
	assert.Empty(t, info.Edges)

	// ids are never reused within a graph
	n2, err := r.AddNode(id, "b", "")
	require.NoError(t, err)
	assert.Equal(t, "2", n2.ID)
}

func TestRegistry_SnapshotIsIndependent(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	id := r.Create("").ID
	require.NoError(t, r.SetScript(id, FirstNodeID, "before"))

	snap, err := r.Snapshot(id)
	require.NoError(t, err)
	require.NoError(t, r.SetScript(id, FirstNodeID, "after"))

	n, ok := snap.Node(FirstNodeID)
	require.True(t, ok)
	assert.Equal(t, "before", n.Script)
}

func TestRegistry_UnknownGraph(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	_, err := r.Get("missing")
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)
	_, err = r.Snapshot("missing")
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)
	_, err = r.AddNode("missing", "", "")
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)
	assert.ErrorIs(t, r.Delete("missing"), domain.ErrGraphNotFound)
	assert.ErrorIs(t, r.SetLastRun("missing", "run"), domain.ErrGraphNotFound)
}

func TestRegistry_ListAndDelete(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	a := r.Create("a")
	b := r.Create("b")

	require.NoError(t, r.SetLastRun(a.ID, "run-1"))

	list := r.List()
	require.Len(t, list, 2)
	ids := []string{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)

	got, err := r.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.LastRunID)

	require.NoError(t, r.Delete(a.ID))
	list = r.List()
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
}
