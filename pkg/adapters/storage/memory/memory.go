package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/scriptflow/pkg/domain"
)

// InMemoryRunStorage implements RunStorage using an in-memory map.
// Stored snapshots are deep copies, so callers may keep mutating theirs.
type InMemoryRunStorage struct {
	runs map[string][]byte
	mu   sync.RWMutex
}

// NewInMemoryRunStorage creates a new in-memory run storage
func NewInMemoryRunStorage() *InMemoryRunStorage {
	return &InMemoryRunStorage{
		runs: make(map[string][]byte),
	}
}

// SaveRun stores a copy of the run snapshot
func (s *InMemoryRunStorage) SaveRun(ctx context.Context, run *domain.RunState) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.RunID] = data
	return nil
}

// GetRun returns a copy of the stored snapshot
func (s *InMemoryRunStorage) GetRun(ctx context.Context, runID string) (*domain.RunState, error) {
	s.mu.RLock()
	data, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}

	var run domain.RunState
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

// DeleteRun removes a run snapshot
func (s *InMemoryRunStorage) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, runID)
	return nil
}

// ListRuns returns all stored runs, most recently submitted first
func (s *InMemoryRunStorage) ListRuns(ctx context.Context) ([]*domain.RunState, error) {
	s.mu.RLock()
	blobs := make([][]byte, 0, len(s.runs))
	for _, data := range s.runs {
		blobs = append(blobs, data)
	}
	s.mu.RUnlock()

	runs := make([]*domain.RunState, 0, len(blobs))
	for _, data := range blobs {
		var run domain.RunState
		if err := json.Unmarshal(data, &run); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run: %w", err)
		}
		runs = append(runs, &run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].SubmittedAt.After(runs[j].SubmittedAt)
	})
	return runs, nil
}
