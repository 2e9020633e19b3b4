package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aescanero/scriptflow/internal/application/workers"
	"github.com/aescanero/scriptflow/pkg/domain"
	"github.com/aescanero/scriptflow/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher hands run jobs to background workers
type Dispatcher interface {
	Submit(job workers.Job) error
}

// Options tunes run execution
type Options struct {
	// RunTimeout bounds a whole run; checked between steps
	RunTimeout time.Duration
	// StepDelay pauses between steps; zero disables it
	StepDelay time.Duration
	// RequireFullCoverage rejects graphs whose chain skips nodes
	RequireFullCoverage bool
}

// Manager coordinates workflow runs
type Manager struct {
	executor   ports.ScriptExecutor
	eventBus   ports.EventBus
	storage    ports.RunStorage
	metrics    ports.MetricsCollector
	dispatcher Dispatcher
	logger     *zap.Logger
	opts       Options

	// Track active runs
	executions sync.Map // map[string]*executionContext
	byGraph    sync.Map // map[graphID]runID
	active     int64

	// graphMu orders dispatch and supersede of graph-bound runs
	graphMu sync.Mutex
}

// executionContext holds the cancel handle of an active run
type executionContext struct {
	run        *run
	cancel     context.CancelCauseFunc
	superseded atomic.Bool
}

// NewManager creates a new orchestrator manager
func NewManager(
	executor ports.ScriptExecutor,
	eventBus ports.EventBus,
	storage ports.RunStorage,
	metrics ports.MetricsCollector,
	dispatcher Dispatcher,
	logger *zap.Logger,
	opts Options,
) *Manager {
	return &Manager{
		executor:   executor,
		eventBus:   eventBus,
		storage:    storage,
		metrics:    metrics,
		dispatcher: dispatcher,
		logger:     logger,
		opts:       opts,
	}
}

// RunWorkflow executes a graph synchronously and returns its report.
//
// The report is never nil. The error is a *domain.GraphError when no order
// could be resolved, or the transport, timeout or cancellation error that
// aborted the run; soft script errors only show up in the records.
func (m *Manager) RunWorkflow(ctx context.Context, g *domain.Graph) (*domain.Report, error) {
	r := m.register(ctx, "", g)

	runCtx, cancel := m.runContext(ctx)
	m.track(r, cancel)
	defer m.untrack(r, "", cancel)

	return m.execute(runCtx, r)
}

// Submit queues a graph for asynchronous execution and returns the run id.
//
// A non-empty graphID ties the run to an editable graph: submitting again for
// the same graph supersedes the previous run, which stops before its next step.
func (m *Manager) Submit(ctx context.Context, graphID string, g *domain.Graph) (string, error) {
	r := m.register(ctx, graphID, g)
	runID := r.id()

	runCtx, cancel := m.runContext(context.Background())
	execCtx := m.track(r, cancel)

	job := workers.Job{
		ID: runID,
		Run: func(workerCtx context.Context) {
			shutdown := func() {
				cancel(fmt.Errorf("%w: orchestrator shutting down", domain.ErrCancelled))
			}
			// Jobs settled after the pool stopped arrive with a done context
			if workerCtx.Err() != nil {
				shutdown()
			}
			stop := context.AfterFunc(workerCtx, shutdown)
			defer stop()
			defer m.untrack(r, graphID, cancel)

			_, _ = m.execute(runCtx, r)

			if execCtx.superseded.Load() {
				m.discard(runID)
			}
		},
	}

	if graphID != "" {
		m.graphMu.Lock()
		defer m.graphMu.Unlock()
	}

	if err := m.dispatcher.Submit(job); err != nil {
		m.untrack(r, graphID, cancel)
		m.abort(context.Background(), r, err)
		m.logger.Error("failed to dispatch run",
			zap.String("run_id", runID),
			zap.Error(err))
		return "", fmt.Errorf("failed to dispatch run: %w", err)
	}

	if graphID != "" {
		if prev, loaded := m.byGraph.Swap(graphID, runID); loaded {
			m.supersede(prev.(string), runID)
		}
	}

	m.logger.Info("run submitted",
		zap.String("run_id", runID),
		zap.String("graph_id", graphID))

	return runID, nil
}

// GetRun returns the current snapshot of a run
func (m *Manager) GetRun(ctx context.Context, runID string) (*domain.RunState, error) {
	if val, ok := m.executions.Load(runID); ok {
		return val.(*executionContext).run.snapshot(), nil
	}

	state, err := m.storage.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return state, nil
}

// ListRuns returns all known runs
func (m *Manager) ListRuns(ctx context.Context) ([]*domain.RunState, error) {
	runs, err := m.storage.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// CancelRun asks an active run to stop before its next step.
// The step in flight, if any, is allowed to finish.
func (m *Manager) CancelRun(ctx context.Context, runID string) error {
	val, ok := m.executions.Load(runID)
	if !ok {
		state, err := m.storage.GetRun(ctx, runID)
		if err != nil {
			return fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
		}
		if state.Status.IsTerminal() {
			return fmt.Errorf("%w: %s", domain.ErrRunTerminal, state.Status)
		}
		return fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}

	execCtx := val.(*executionContext)
	if status := execCtx.run.status(); status.IsTerminal() {
		return fmt.Errorf("%w: %s", domain.ErrRunTerminal, status)
	}

	execCtx.cancel(fmt.Errorf("%w by request", domain.ErrCancelled))

	m.logger.Info("run cancellation requested", zap.String("run_id", runID))
	return nil
}

// Shutdown cancels every active run
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down orchestrator manager")

	m.executions.Range(func(key, value interface{}) bool {
		value.(*executionContext).cancel(fmt.Errorf("%w: orchestrator shutting down", domain.ErrCancelled))
		return true
	})

	m.logger.Info("orchestrator manager shut down complete")
	return nil
}

// register creates a run from a snapshot of g and announces it
func (m *Manager) register(ctx context.Context, graphID string, g *domain.Graph) *run {
	r := newRun(uuid.New().String(), graphID, g)

	m.persist(ctx, r)
	m.publish(ctx, domain.TopicRunEvents, domain.EventTypeRunSubmitted, r.id(), "", map[string]interface{}{
		"graph_id": graphID,
		"nodes":    g.Len(),
	})
	m.metrics.RecordRunSubmitted()

	return r
}

func (m *Manager) runContext(parent context.Context) (context.Context, context.CancelCauseFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	if m.opts.RunTimeout <= 0 {
		return ctx, cancel
	}

	timeoutCtx, cancelTimeout := context.WithTimeout(ctx, m.opts.RunTimeout)
	return timeoutCtx, func(cause error) {
		cancel(cause)
		cancelTimeout()
	}
}

func (m *Manager) track(r *run, cancel context.CancelCauseFunc) *executionContext {
	execCtx := &executionContext{run: r, cancel: cancel}
	m.executions.Store(r.id(), execCtx)
	m.metrics.SetActiveRuns(int(atomic.AddInt64(&m.active, 1)))
	return execCtx
}

func (m *Manager) untrack(r *run, graphID string, cancel context.CancelCauseFunc) {
	if _, loaded := m.executions.LoadAndDelete(r.id()); !loaded {
		return
	}
	cancel(nil)
	if graphID != "" {
		m.byGraph.CompareAndDelete(graphID, r.id())
	}
	m.metrics.SetActiveRuns(int(atomic.AddInt64(&m.active, -1)))
}

func (m *Manager) supersede(prevRunID, newRunID string) {
	val, ok := m.executions.Load(prevRunID)
	if !ok {
		return
	}
	execCtx := val.(*executionContext)
	execCtx.superseded.Store(true)
	execCtx.cancel(fmt.Errorf("%w: superseded by run %s", domain.ErrCancelled, newRunID))

	m.logger.Info("run superseded",
		zap.String("run_id", prevRunID),
		zap.String("superseded_by", newRunID))
}

// discard drops the stored snapshot of a superseded run once it has settled
func (m *Manager) discard(runID string) {
	if err := m.storage.DeleteRun(context.Background(), runID); err != nil {
		m.logger.Error("failed to discard superseded run",
			zap.String("run_id", runID),
			zap.Error(err))
		return
	}
	m.logger.Debug("superseded run discarded", zap.String("run_id", runID))
}

// execute drives a run through resolving and running to a terminal state
func (m *Manager) execute(ctx context.Context, r *run) (*domain.Report, error) {
	runID := r.id()
	start := time.Now()

	if err := m.interrupted(ctx); err != nil {
		m.abort(ctx, r, err)
		return r.report(), err
	}

	if err := r.transition(domain.RunStatusResolving); err != nil {
		return r.report(), err
	}
	m.persist(ctx, r)

	order, err := Resolve(r.graph, m.opts.RequireFullCoverage)
	if err != nil {
		m.logger.Warn("graph resolution failed",
			zap.String("run_id", runID),
			zap.Error(err))
		m.abort(ctx, r, err)
		return r.report(), err
	}

	r.setOrder(order)
	m.publish(ctx, domain.TopicRunEvents, domain.EventTypeRunResolved, runID, "", map[string]interface{}{
		"order": order,
	})

	if len(order) > 0 {
		if err := r.transition(domain.RunStatusRunning); err != nil {
			return r.report(), err
		}
		m.persist(ctx, r)

		m.logger.Info("run started",
			zap.String("run_id", runID),
			zap.Strings("order", order))

		for i, nodeID := range order {
			if i > 0 && m.opts.StepDelay > 0 {
				m.pause(ctx, m.opts.StepDelay)
			}
			if err := m.interrupted(ctx); err != nil {
				m.abort(ctx, r, err)
				return r.report(), err
			}

			if err := m.executeStep(ctx, r, i, nodeID); err != nil {
				m.abort(ctx, r, err)
				return r.report(), err
			}
		}
	}

	if err := r.transition(domain.RunStatusCompleted); err != nil {
		return r.report(), err
	}
	m.persist(ctx, r)
	m.publish(ctx, domain.TopicRunEvents, domain.EventTypeRunCompleted, runID, "", map[string]interface{}{
		"steps": len(order),
	})

	duration := time.Since(start)
	m.metrics.RecordRunCompleted(string(domain.RunStatusCompleted), duration)
	m.logger.Info("run completed",
		zap.String("run_id", runID),
		zap.Int("steps", len(order)),
		zap.Duration("duration", duration))

	return r.report(), nil
}

// executeStep runs one node. It returns an error only for failures that must
// abort the run; soft script errors are recorded and swallowed.
func (m *Manager) executeStep(ctx context.Context, r *run, i int, nodeID string) error {
	runID := r.id()

	if err := r.transitionStep(i, domain.StepStatusPending, domain.StepStatusRunning); err != nil {
		return err
	}
	m.persist(ctx, r)
	m.publish(ctx, domain.TopicStepEvents, domain.EventTypeStepStarted, runID, nodeID, map[string]interface{}{
		"index": i,
	})

	node, _ := r.graph.Node(nodeID)
	startedAt := time.Now().UTC()

	// The remote call is atomic for the run: cancellation waits for it.
	result, execErr := m.executor.Execute(context.WithoutCancel(ctx), node.Script)

	completedAt := time.Now().UTC()
	duration := completedAt.Sub(startedAt)

	rec := domain.ExecutionRecord{
		NodeID:      nodeID,
		StartedAt:   &startedAt,
		CompletedAt: &completedAt,
		DurationMS:  duration.Milliseconds(),
	}

	eventType := domain.EventTypeStepCompleted
	if execErr != nil {
		msg := execErr.Error()
		rec.Status = domain.StepStatusFailed
		rec.Error = &msg
		rec.ErrorKind = domain.ErrorKind(execErr)
		eventType = domain.EventTypeStepFailed
	} else {
		rec.Status = domain.StepStatusSucceeded
		rec.Result = result.Result
		rec.Stdout = result.Stdout
		if scriptErr := result.ScriptError(); scriptErr != nil {
			rec.Error = result.Error
			rec.ErrorKind = domain.ErrorKindRemoteScript
		}
	}

	if err := r.complete(i, rec); err != nil {
		return err
	}
	m.persist(ctx, r)
	m.publish(ctx, domain.TopicStepEvents, eventType, runID, nodeID, map[string]interface{}{
		"index":  i,
		"record": rec,
	})
	m.metrics.RecordStepExecuted(string(rec.Status), duration)

	fields := []zap.Field{
		zap.String("run_id", runID),
		zap.String("node_id", nodeID),
		zap.Int("index", i),
		zap.String("status", string(rec.Status)),
		zap.Duration("duration", duration),
	}
	switch {
	case execErr != nil:
		m.logger.Warn("step failed, aborting run", append(fields, zap.Error(execErr))...)
	case rec.Error != nil:
		m.logger.Info("step reported script error", append(fields, zap.String("script_error", *rec.Error))...)
	default:
		m.logger.Info("step completed", fields...)
	}

	return execErr
}

// interrupted converts a done run context into the error that ends the run
func (m *Manager) interrupted(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	cause := context.Cause(ctx)
	if errors.Is(cause, context.DeadlineExceeded) {
		return &domain.TimeoutError{Op: "run", After: m.opts.RunTimeout, Err: cause}
	}
	if errors.Is(cause, domain.ErrCancelled) {
		return cause
	}
	return fmt.Errorf("%w: %v", domain.ErrCancelled, cause)
}

func (m *Manager) abort(ctx context.Context, r *run, err error) {
	r.fail(err)
	if terr := r.transition(domain.RunStatusAborted); terr != nil {
		m.logger.Error("failed to abort run",
			zap.String("run_id", r.id()),
			zap.Error(terr))
		return
	}

	snap := r.snapshot()
	m.persist(ctx, r)
	m.publish(ctx, domain.TopicRunEvents, domain.EventTypeRunAborted, snap.RunID, "", map[string]interface{}{
		"error":      snap.Error,
		"error_kind": snap.ErrorKind,
		"records":    len(snap.Records),
	})

	var duration time.Duration
	if snap.StartedAt != nil {
		duration = time.Since(*snap.StartedAt)
	}
	m.metrics.RecordRunCompleted(string(domain.RunStatusAborted), duration)

	m.logger.Warn("run aborted",
		zap.String("run_id", snap.RunID),
		zap.String("error_kind", snap.ErrorKind),
		zap.Int("records", len(snap.Records)),
		zap.Error(err))
}

func (m *Manager) pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// persist saves the run snapshot; storage failures are logged only
func (m *Manager) persist(ctx context.Context, r *run) {
	snap := r.snapshot()
	if err := m.storage.SaveRun(context.WithoutCancel(ctx), snap); err != nil {
		m.logger.Error("failed to save run state",
			zap.String("run_id", snap.RunID),
			zap.Error(err))
	}
}

// publish emits a progress event; bus failures are logged only
func (m *Manager) publish(ctx context.Context, topic string, eventType domain.EventType, runID, nodeID string, data map[string]interface{}) {
	event := domain.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		RunID:     runID,
		NodeID:    nodeID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	if err := m.eventBus.Publish(context.WithoutCancel(ctx), topic, event); err != nil {
		m.logger.Error("failed to publish event",
			zap.String("run_id", runID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}
