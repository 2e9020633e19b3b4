package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_RecordsRunsAndSteps(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordRunSubmitted()
	c.RecordRunSubmitted()
	c.RecordRunCompleted("completed", time.Second)
	c.RecordStepExecuted("succeeded", 10*time.Millisecond)
	c.RecordStepExecuted("succeeded", 20*time.Millisecond)
	c.RecordStepExecuted("failed", 30*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.runsSubmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsCompleted.WithLabelValues("completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.stepsExecuted.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stepsExecuted.WithLabelValues("failed")))
}

func TestCollector_ExecutorAndPoolGauges(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordExecutorRequest("ok", time.Millisecond)
	c.RecordExecutorRequest("status_502", time.Millisecond)
	c.RecordExecutorRetry()
	c.RecordWorkerPoolStatus(3, 1, 0)
	c.SetActiveRuns(1)
	c.SetQueueDepth(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.executorRequests.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.executorRetries))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.workerPoolIdle))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.workerPoolBusy))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.activeRuns))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.queueDepth))
}

func TestNewCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollector(prometheus.NewRegistry())
		NewCollector(prometheus.NewRegistry())
	})
}
