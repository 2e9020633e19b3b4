package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/scriptflow/pkg/domain"
	"github.com/aescanero/scriptflow/pkg/ports"
	"go.uber.org/zap"
)

// Job is one unit of work handed to the pool
type Job struct {
	ID  string
	Run func(ctx context.Context)
}

// Pool manages a pool of worker goroutines draining a bounded job queue
type Pool struct {
	size    int
	metrics ports.MetricsCollector
	logger  *zap.Logger
	health  *HealthMonitor

	jobs    chan Job
	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.RWMutex
	started bool
	closed  bool
}

// worker represents a single worker goroutine
type worker struct {
	id         string
	pool       *Pool
	status     WorkerStatus
	currentJob string
	mu         sync.RWMutex
	lastJob    time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool
func NewPool(
	size int,
	queueSize int,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:    size,
		metrics: metrics,
		logger:  logger,
		jobs:    make(chan Job, queueSize),
		workers: make([]*worker, size),
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < size; i++ {
		pool.workers[i] = &worker{
			id:      fmt.Sprintf("worker-%d", i),
			pool:    pool,
			status:  WorkerStatusStopped,
			lastJob: time.Now(),
		}
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start starts the worker pool
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("worker pool already started")
	}
	if p.closed {
		return fmt.Errorf("worker pool is shut down")
	}
	p.started = true

	p.logger.Info("starting worker pool", zap.Int("size", p.size))

	for _, w := range p.workers {
		w.setStatus(WorkerStatusIdle, "")
		p.wg.Add(1)
		go w.run(p.ctx)
	}

	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Submit queues a job without blocking. It fails with domain.ErrQueueFull
// when the queue is at capacity.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return fmt.Errorf("worker pool is shut down")
	}

	select {
	case p.jobs <- job:
		p.metrics.SetQueueDepth(len(p.jobs))
		return nil
	default:
		return fmt.Errorf("%w: %d jobs pending", domain.ErrQueueFull, cap(p.jobs))
	}
}

// Shutdown stops accepting jobs and waits for running jobs to finish.
// Jobs still queued are then run with the pool's cancelled context so
// their owners can settle them.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.health.Stop()
	p.cancel()

	done := make(chan int, 1)
	go func() {
		p.wg.Wait()
		done <- p.drain()
	}()

	select {
	case drained := <-done:
		p.logger.Info("worker pool shut down complete",
			zap.Int("drained_jobs", drained))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// drain settles every queued job once the workers are gone. No new jobs
// can arrive because Submit refuses them after close.
func (p *Pool) drain() int {
	n := 0
	for {
		select {
		case job := <-p.jobs:
			n++
			p.settle(job)
		default:
			p.metrics.SetQueueDepth(0)
			return n
		}
	}
}

func (p *Pool) settle(job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("drained job panicked",
				zap.String("job_id", job.ID),
				zap.Any("panic", r))
		}
	}()

	p.logger.Debug("settling queued job", zap.String("job_id", job.ID))
	job.Run(p.ctx)
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// QueueDepth returns the number of jobs waiting for a worker
func (p *Pool) QueueDepth() int {
	return len(p.jobs)
}

// QueueCapacity returns how many jobs can wait for a worker
func (p *Pool) QueueCapacity() int {
	return cap(p.jobs)
}

// Health returns the pool's health monitor
func (p *Pool) Health() *HealthMonitor {
	return p.health
}

// run is the main worker loop
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	w.pool.logger.Debug("worker started", zap.String("worker_id", w.id))

	for {
		select {
		case <-ctx.Done():
			w.setStatus(WorkerStatusStopped, "")
			w.pool.logger.Debug("worker stopped", zap.String("worker_id", w.id))
			return
		case job := <-w.pool.jobs:
			w.pool.metrics.SetQueueDepth(len(w.pool.jobs))
			w.handle(ctx, job)
		}
	}
}

// handle runs one job, recovering from panics so the worker survives
func (w *worker) handle(ctx context.Context, job Job) {
	w.setStatus(WorkerStatusBusy, job.ID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			w.pool.logger.Error("job panicked",
				zap.String("worker_id", w.id),
				zap.String("job_id", job.ID),
				zap.Any("panic", r))
		}
		w.setStatus(WorkerStatusIdle, "")
	}()

	w.pool.logger.Debug("job started",
		zap.String("worker_id", w.id),
		zap.String("job_id", job.ID))

	job.Run(ctx)

	w.pool.logger.Debug("job finished",
		zap.String("worker_id", w.id),
		zap.String("job_id", job.ID),
		zap.Duration("duration", time.Since(start)))
}

func (w *worker) setStatus(status WorkerStatus, jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.status = status
	w.currentJob = jobID
	if status == WorkerStatusBusy {
		w.lastJob = time.Now()
	}
}
