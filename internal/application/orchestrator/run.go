package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/scriptflow/pkg/domain"
)

// run is the in-memory state of one workflow run.
// The graph is a snapshot taken when the run was created.
type run struct {
	mu    sync.RWMutex
	state domain.RunState
	graph *domain.Graph
	agg   *Aggregator
}

func newRun(runID, graphID string, g *domain.Graph) *run {
	return &run{
		state: domain.RunState{
			RunID:       runID,
			GraphID:     graphID,
			Status:      domain.RunStatusIdle,
			Order:       []string{},
			Steps:       []domain.StepState{},
			Records:     []domain.ExecutionRecord{},
			SubmittedAt: time.Now().UTC(),
		},
		graph: g.Clone(),
		agg:   NewAggregator(),
	}
}

var allowedRunTransitions = map[domain.RunStatus][]domain.RunStatus{
	domain.RunStatusIdle:      {domain.RunStatusResolving, domain.RunStatusAborted},
	domain.RunStatusResolving: {domain.RunStatusRunning, domain.RunStatusCompleted, domain.RunStatusAborted},
	domain.RunStatusRunning:   {domain.RunStatusCompleted, domain.RunStatusAborted},
}

// transition moves the run to a new status
func (r *run) transition(to domain.RunStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	from := r.state.Status
	for _, allowed := range allowedRunTransitions[from] {
		if allowed == to {
			r.state.Status = to
			now := time.Now().UTC()
			switch {
			case to == domain.RunStatusResolving:
				r.state.StartedAt = &now
			case to.IsTerminal():
				r.state.CompletedAt = &now
			}
			return nil
		}
	}
	return fmt.Errorf("disallowed run transition for %s: %s -> %s", r.state.RunID, from, to)
}

// setOrder installs the resolved order with every step pending
func (r *run) setOrder(order []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.Order = append([]string(nil), order...)
	r.state.Steps = make([]domain.StepState, len(order))
	for i, id := range order {
		r.state.Steps[i] = domain.StepState{NodeID: id, Status: domain.StepStatusPending}
	}
	r.state.Cursor = 0
}

// transitionStep validates and applies one step transition
func (r *run) transitionStep(i int, from, to domain.StepStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i < 0 || i >= len(r.state.Steps) {
		return fmt.Errorf("step %d out of range", i)
	}
	step := &r.state.Steps[i]
	if step.Status != from {
		return fmt.Errorf("invalid transition for step %s: expected %s, got %s", step.NodeID, from, step.Status)
	}
	if !isAllowedStepTransition(from, to) {
		return fmt.Errorf("disallowed transition for step %s: %s -> %s", step.NodeID, from, to)
	}
	step.Status = to
	return nil
}

func isAllowedStepTransition(from, to domain.StepStatus) bool {
	switch from {
	case domain.StepStatusPending:
		return to == domain.StepStatusRunning
	case domain.StepStatusRunning:
		return to == domain.StepStatusSucceeded || to == domain.StepStatusFailed
	default:
		return false
	}
}

// complete records the outcome of step i and advances the cursor
func (r *run) complete(i int, rec domain.ExecutionRecord) error {
	if err := r.transitionStep(i, domain.StepStatusRunning, rec.Status); err != nil {
		return err
	}
	r.agg.Append(rec)

	r.mu.Lock()
	r.state.Cursor = i + 1
	r.mu.Unlock()
	return nil
}

// fail stores the error that ended the run
func (r *run) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.Error = err.Error()
	r.state.ErrorKind = domain.ErrorKind(err)
}

func (r *run) id() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.RunID
}

func (r *run) status() domain.RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Status
}

// snapshot returns an independent copy of the run state
func (r *run) snapshot() *domain.RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.state
	s.Order = append([]string{}, r.state.Order...)
	s.Steps = append([]domain.StepState{}, r.state.Steps...)
	s.Records = r.agg.Snapshot()
	return &s
}

// report builds the caller-facing report
func (r *run) report() *domain.Report {
	return r.snapshot().Report()
}
