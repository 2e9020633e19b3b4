package orchestrator

import (
	"strconv"
	"sync"
	"testing"

	"github.com/aescanero/scriptflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_PreservesOrder(t *testing.T) {
	agg := NewAggregator()
	assert.Equal(t, 0, agg.Len())
	assert.NotNil(t, agg.Snapshot())

	for i := 0; i < 5; i++ {
		agg.Append(domain.ExecutionRecord{NodeID: strconv.Itoa(i), Status: domain.StepStatusSucceeded})
	}

	snap := agg.Snapshot()
	require.Len(t, snap, 5)
	for i, rec := range snap {
		assert.Equal(t, strconv.Itoa(i), rec.NodeID)
	}
}

func TestAggregator_SnapshotIsIndependent(t *testing.T) {
	agg := NewAggregator()
	agg.Append(domain.ExecutionRecord{NodeID: "A"})

	snap := agg.Snapshot()
	snap[0].NodeID = "mutated"
	agg.Append(domain.ExecutionRecord{NodeID: "B"})

	assert.Len(t, snap, 1)
	assert.Equal(t, "A", agg.Snapshot()[0].NodeID)
}

func TestAggregator_ConcurrentReaders(t *testing.T) {
	agg := NewAggregator()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			agg.Append(domain.ExecutionRecord{NodeID: strconv.Itoa(i)})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				snap := agg.Snapshot()
				for j, rec := range snap {
					if rec.NodeID != strconv.Itoa(j) {
						t.Errorf("record %d out of order: %s", j, rec.NodeID)
						return
					}
				}
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 200, agg.Len())
}
