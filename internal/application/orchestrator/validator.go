package orchestrator

import (
	"fmt"

	"github.com/aescanero/scriptflow/pkg/domain"
)

// Validation is the outcome of a dry-run resolution
type Validation struct {
	Valid       bool     `json:"valid"`
	Entry       string   `json:"entry,omitempty"`
	Order       []string `json:"order"`
	Unreachable []string `json:"unreachable"`
	EmptyNodes  []string `json:"empty_nodes"`
	Error       string   `json:"error,omitempty"`
}

// Validator resolves graphs without executing them
type Validator struct {
	requireFullCoverage bool
}

// NewValidator creates a new graph validator
func NewValidator(requireFullCoverage bool) *Validator {
	return &Validator{requireFullCoverage: requireFullCoverage}
}

// Validate reports the order a run of g would follow.
// Structural problems land in the result; the error is reserved for a nil graph.
func (v *Validator) Validate(g *domain.Graph) (*Validation, error) {
	if g == nil {
		return nil, fmt.Errorf("graph is nil")
	}

	out := &Validation{
		Order:       []string{},
		Unreachable: []string{},
		EmptyNodes:  []string{},
	}

	// Scripts with no text still run; flag them for the editor
	for _, n := range g.Nodes() {
		if n.Script == "" {
			out.EmptyNodes = append(out.EmptyNodes, n.ID)
		}
	}

	order, err := Resolve(g, v.requireFullCoverage)
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}

	out.Valid = true
	out.Order = order
	if len(order) > 0 {
		out.Entry = order[0]
	}

	inOrder := make(map[string]bool, len(order))
	for _, id := range order {
		inOrder[id] = true
	}
	for _, n := range g.Nodes() {
		if !inOrder[n.ID] {
			out.Unreachable = append(out.Unreachable, n.ID)
		}
	}

	return out, nil
}
