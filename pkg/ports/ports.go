// Package ports declares the interfaces the application layer depends on.
package ports

import (
	"context"
	"time"

	"github.com/aescanero/scriptflow/pkg/domain"
)

// ScriptExecutor runs one script on the remote executor.
// A soft script failure is returned inside the result, not as an error.
type ScriptExecutor interface {
	Execute(ctx context.Context, script string) (*domain.ExecutionResult, error)
}

// BatchExecutor runs scripts sequentially and stops at the first
// transport-level failure, returning the partial results with the error.
type BatchExecutor interface {
	ExecuteBatch(ctx context.Context, scripts []string) ([]domain.ExecutionResult, error)
}

// EventHandler handles one event
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus publishes run progress
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	// Subscribe delivers events until ctx is done
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}

// RunStorage keeps run snapshots
type RunStorage interface {
	SaveRun(ctx context.Context, run *domain.RunState) error
	GetRun(ctx context.Context, runID string) (*domain.RunState, error)
	DeleteRun(ctx context.Context, runID string) error
	ListRuns(ctx context.Context) ([]*domain.RunState, error)
}

// MetricsCollector records orchestrator metrics
type MetricsCollector interface {
	RecordRunSubmitted()
	RecordRunCompleted(status string, duration time.Duration)
	RecordStepExecuted(status string, duration time.Duration)
	SetActiveRuns(count int)
	RecordExecutorRequest(outcome string, duration time.Duration)
	RecordExecutorRetry()
	RecordWorkerPoolStatus(idle, busy, stopped int)
	SetQueueDepth(depth int)
}
