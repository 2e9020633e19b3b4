package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	runsSubmitted     prometheus.Counter
	runsCompleted     *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	stepsExecuted     *prometheus.CounterVec
	stepDuration      *prometheus.HistogramVec
	activeRuns        prometheus.Gauge
	executorRequests  *prometheus.CounterVec
	executorLatency   prometheus.Histogram
	executorRetries   prometheus.Counter
	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
	queueDepth        prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector registered on reg
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		runsSubmitted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scriptflow_runs_submitted_total",
				Help: "Total number of workflow runs submitted",
			},
		),
		runsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptflow_runs_finished_total",
				Help: "Total number of workflow runs finished, by final status",
			},
			[]string{"status"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scriptflow_run_duration_seconds",
				Help:    "Workflow run duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
			},
			[]string{"status"},
		),
		stepsExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptflow_steps_executed_total",
				Help: "Total number of steps executed, by status",
			},
			[]string{"status"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scriptflow_step_duration_seconds",
				Help:    "Step execution duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
		activeRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptflow_active_runs",
				Help: "Number of currently active runs",
			},
		),
		executorRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptflow_executor_requests_total",
				Help: "Total number of requests sent to the remote executor, by outcome",
			},
			[]string{"outcome"},
		),
		executorLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scriptflow_executor_latency_seconds",
				Help:    "Remote executor request latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),
		executorRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scriptflow_executor_retries_total",
				Help: "Total number of retried executor requests",
			},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptflow_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptflow_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptflow_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptflow_run_queue_depth",
				Help: "Runs waiting for a worker",
			},
		),
	}
}

// RecordRunSubmitted counts a submitted run
func (c *Collector) RecordRunSubmitted() {
	c.runsSubmitted.Inc()
}

// RecordRunCompleted records a finished run
func (c *Collector) RecordRunCompleted(status string, duration time.Duration) {
	c.runsCompleted.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordStepExecuted records a finished step
func (c *Collector) RecordStepExecuted(status string, duration time.Duration) {
	c.stepsExecuted.WithLabelValues(status).Inc()
	c.stepDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// SetActiveRuns sets the number of currently active runs
func (c *Collector) SetActiveRuns(count int) {
	c.activeRuns.Set(float64(count))
}

// RecordExecutorRequest records one request to the remote executor
func (c *Collector) RecordExecutorRequest(outcome string, duration time.Duration) {
	c.executorRequests.WithLabelValues(outcome).Inc()
	c.executorLatency.Observe(duration.Seconds())
}

// RecordExecutorRetry counts a retried executor request
func (c *Collector) RecordExecutorRetry() {
	c.executorRetries.Inc()
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}

// SetQueueDepth sets the number of queued runs
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}
