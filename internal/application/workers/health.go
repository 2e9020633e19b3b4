package workers

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthMonitor periodically samples the pool and records its status
type HealthMonitor struct {
	pool     *Pool
	interval time.Duration
	logger   *zap.Logger

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
}

// HealthStatus is a point-in-time view of the worker pool
type HealthStatus struct {
	TotalWorkers   int       `json:"total_workers"`
	IdleWorkers    int       `json:"idle_workers"`
	BusyWorkers    int       `json:"busy_workers"`
	StoppedWorkers int       `json:"stopped_workers"`
	QueuedJobs     int       `json:"queued_jobs"`
	QueueCapacity  int       `json:"queue_capacity"`
	Saturated      bool      `json:"saturated"`
	Healthy        bool      `json:"healthy"`
	Reason         string    `json:"reason,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(pool *Pool, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	return &HealthMonitor{
		pool:     pool,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the health monitor
func (h *HealthMonitor) Start() {
	h.mu.Lock()
	if h.running || h.interval <= 0 {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

// Stop stops the health monitor
func (h *HealthMonitor) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.stopCh)
}

func (h *HealthMonitor) run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.checkHealth()
		}
	}
}

// checkHealth logs the pool status and feeds the gauges
func (h *HealthMonitor) checkHealth() {
	status := h.GetStatus()

	h.logger.Debug("worker pool health check",
		zap.Int("total", status.TotalWorkers),
		zap.Int("idle", status.IdleWorkers),
		zap.Int("busy", status.BusyWorkers),
		zap.Int("stopped", status.StoppedWorkers),
		zap.Int("queued", status.QueuedJobs),
		zap.Bool("healthy", status.Healthy))

	h.pool.metrics.RecordWorkerPoolStatus(
		status.IdleWorkers,
		status.BusyWorkers,
		status.StoppedWorkers,
	)
	h.pool.metrics.SetQueueDepth(status.QueuedJobs)

	if !status.Healthy {
		h.logger.Warn("worker pool is unhealthy",
			zap.String("reason", status.Reason),
			zap.Int("stopped", status.StoppedWorkers),
			zap.Int("queued", status.QueuedJobs),
			zap.Int("capacity", status.QueueCapacity))
	}
}

// GetStatus returns the current health status.
// The pool is healthy while every worker is alive and new runs can still
// be queued; a full queue means Submit rejects runs with ErrQueueFull.
func (h *HealthMonitor) GetStatus() *HealthStatus {
	var idle, busy, stopped int
	for _, status := range h.pool.GetStatus() {
		switch status {
		case WorkerStatusIdle:
			idle++
		case WorkerStatusBusy:
			busy++
		case WorkerStatusStopped:
			stopped++
		}
	}

	total := idle + busy + stopped
	queued, capacity := h.pool.QueueDepth(), h.pool.QueueCapacity()

	status := &HealthStatus{
		TotalWorkers:   total,
		IdleWorkers:    idle,
		BusyWorkers:    busy,
		StoppedWorkers: stopped,
		QueuedJobs:     queued,
		QueueCapacity:  capacity,
		Saturated:      capacity > 0 && queued >= capacity,
		Timestamp:      time.Now(),
	}

	switch {
	case total == 0:
		status.Reason = "no workers"
	case stopped > 0:
		status.Reason = fmt.Sprintf("%d of %d workers stopped", stopped, total)
	case status.Saturated:
		status.Reason = fmt.Sprintf("run queue full (%d/%d)", queued, capacity)
	}
	status.Healthy = status.Reason == ""

	return status
}

// IsHealthy returns true if the worker pool is healthy
func (h *HealthMonitor) IsHealthy() bool {
	return h.GetStatus().Healthy
}
