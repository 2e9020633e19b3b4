package orchestrator

import (
	"sync"

	"github.com/aescanero/scriptflow/pkg/domain"
)

// Aggregator accumulates execution records in arrival order.
// Readers may take snapshots while a run is appending.
type Aggregator struct {
	mu      sync.RWMutex
	records []domain.ExecutionRecord
}

// NewAggregator creates an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{
		records: []domain.ExecutionRecord{},
	}
}

// Append adds a record after all previously appended records
func (a *Aggregator) Append(rec domain.ExecutionRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.records = append(a.records, rec)
}

// Snapshot returns a copy of the records collected so far
func (a *Aggregator) Snapshot() []domain.ExecutionRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]domain.ExecutionRecord, len(a.records))
	copy(out, a.records)
	return out
}

// Len returns the number of records collected so far
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.records)
}
