package graphs

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aescanero/scriptflow/pkg/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrEdgeNotFound is returned when disconnecting an edge that does not exist
var ErrEdgeNotFound = errors.New("edge not found")

// FirstNodeID is the id of the node every new graph starts with
const FirstNodeID = "0"

// GraphInfo is a read-only view of an editable graph
type GraphInfo struct {
	ID        string        `json:"id"`
	Name      string        `json:"name,omitempty"`
	Nodes     []domain.Node `json:"nodes"`
	Edges     []domain.Edge `json:"edges"`
	LastRunID string        `json:"last_run_id,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type entry struct {
	graph     *domain.Graph
	name      string
	lastRunID string
	createdAt time.Time
	updatedAt time.Time
}

func (e *entry) info(id string) *GraphInfo {
	return &GraphInfo{
		ID:        id,
		Name:      e.name,
		Nodes:     e.graph.Nodes(),
		Edges:     e.graph.Edges(),
		LastRunID: e.lastRunID,
		CreatedAt: e.createdAt,
		UpdatedAt: e.updatedAt,
	}
}

// Registry holds the graphs being edited. All access to a graph goes
// through the registry, which serialises it.
type Registry struct {
	mu     sync.RWMutex
	graphs map[string]*entry
	logger *zap.Logger
}

// NewRegistry creates an empty graph registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		graphs: make(map[string]*entry),
		logger: logger,
	}
}

// Create starts a new graph holding a single empty node
func (r *Registry) Create(name string) *GraphInfo {
	g := domain.NewGraph()
	_ = g.AddNodeWithID(FirstNodeID, "")

	now := time.Now().UTC()
	id := uuid.New().String()
	e := &entry{graph: g, name: name, createdAt: now, updatedAt: now}

	r.mu.Lock()
	r.graphs[id] = e
	r.mu.Unlock()

	r.logger.Info("graph created", zap.String("graph_id", id), zap.String("name", name))
	return e.info(id)
}

// AddNode appends a node. When after is set, the new node is connected
// after that node, as when a connection is dropped on empty canvas.
func (r *Registry) AddNode(graphID, script, after string) (domain.Node, error) {
	var node domain.Node
	err := r.update(graphID, func(g *domain.Graph) error {
		if after != "" {
			if _, ok := g.Node(after); !ok {
				return fmt.Errorf("%w: %s", domain.ErrUnknownNode, after)
			}
		}
		node = g.AddNode(script)
		if after != "" {
			return g.AddEdge(after, node.ID)
		}
		return nil
	})
	if err != nil {
		return domain.Node{}, err
	}

	r.logger.Debug("node added",
		zap.String("graph_id", graphID),
		zap.String("node_id", node.ID),
		zap.String("after", after))
	return node, nil
}

// SetScript replaces the script of a node
func (r *Registry) SetScript(graphID, nodeID, script string) error {
	return r.update(graphID, func(g *domain.Graph) error {
		return g.SetScript(nodeID, script)
	})
}

// RemoveNode deletes a node and its edges
func (r *Registry) RemoveNode(graphID, nodeID string) error {
	return r.update(graphID, func(g *domain.Graph) error {
		return g.RemoveNode(nodeID)
	})
}

// Connect adds an edge from source to target
func (r *Registry) Connect(graphID, source, target string) error {
	return r.update(graphID, func(g *domain.Graph) error {
		return g.AddEdge(source, target)
	})
}

// Disconnect removes the edge from source to target
func (r *Registry) Disconnect(graphID, source, target string) error {
	return r.update(graphID, func(g *domain.Graph) error {
		if !g.RemoveEdge(source, target) {
			return fmt.Errorf("%w: %s -> %s", ErrEdgeNotFound, source, target)
		}
		return nil
	})
}

// Get returns a view of a graph
func (r *Registry) Get(graphID string) (*GraphInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.graphs[graphID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrGraphNotFound, graphID)
	}
	return e.info(graphID), nil
}

// Snapshot returns an independent copy of a graph suitable for a run
func (r *Registry) Snapshot(graphID string) (*domain.Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.graphs[graphID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrGraphNotFound, graphID)
	}
	return e.graph.Clone(), nil
}

// SetLastRun remembers the most recent run started from a graph
func (r *Registry) SetLastRun(graphID, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.graphs[graphID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrGraphNotFound, graphID)
	}
	e.lastRunID = runID
	return nil
}

// Delete removes a graph
func (r *Registry) Delete(graphID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.graphs[graphID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrGraphNotFound, graphID)
	}
	delete(r.graphs, graphID)

	r.logger.Info("graph deleted", zap.String("graph_id", graphID))
	return nil
}

// List returns every graph, oldest first
func (r *Registry) List() []*GraphInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*GraphInfo, 0, len(r.graphs))
	for id, e := range r.graphs {
		out = append(out, e.info(id))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// update applies fn to a graph under the write lock. A failed fn leaves
// the graph untouched.
func (r *Registry) update(graphID string, fn func(g *domain.Graph) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.graphs[graphID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrGraphNotFound, graphID)
	}

	working := e.graph.Clone()
	if err := fn(working); err != nil {
		return err
	}
	e.graph = working
	e.updatedAt = time.Now().UTC()
	return nil
}
