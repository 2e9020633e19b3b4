package domain

import (
	"time"
)

// StepStatus is the execution state of one node within a run
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"
)

// RunStatus is the lifecycle state of a workflow run
type RunStatus string

const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusResolving RunStatus = "resolving"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusAborted   RunStatus = "aborted"
)

// IsTerminal reports whether the run has finished
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusAborted
}

// ExecutionResult is the normalised response of one remote execution.
// Nil fields were absent or null in the executor's response.
type ExecutionResult struct {
	Result *string `json:"result,omitempty"`
	Stdout *string `json:"stdout,omitempty"`
	Error  *string `json:"error,omitempty"`
}

// ScriptError returns the soft error the executor flagged, if any
func (r *ExecutionResult) ScriptError() error {
	if r == nil || r.Error == nil {
		return nil
	}
	return &RemoteScriptError{Message: *r.Error}
}

// ExecutionRecord is the outcome of one node. It is immutable once appended
// to a report.
type ExecutionRecord struct {
	NodeID      string     `json:"node_id,omitempty"`
	Status      StepStatus `json:"status"`
	Result      *string    `json:"result,omitempty"`
	Stdout      *string    `json:"stdout,omitempty"`
	Error       *string    `json:"error,omitempty"`
	ErrorKind   string     `json:"error_kind,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMS  int64      `json:"duration_ms,omitempty"`
}

// StepState tracks one entry of the resolved order
type StepState struct {
	NodeID string     `json:"node_id"`
	Status StepStatus `json:"status"`
}

// RunState is the snapshot of one end-to-end execution
type RunState struct {
	RunID       string            `json:"run_id"`
	GraphID     string            `json:"graph_id,omitempty"`
	Status      RunStatus         `json:"status"`
	Order       []string          `json:"order"`
	Cursor      int               `json:"cursor"`
	Steps       []StepState       `json:"steps"`
	Records     []ExecutionRecord `json:"records"`
	Error       string            `json:"error,omitempty"`
	ErrorKind   string            `json:"error_kind,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// Report builds the caller-facing report of the run
func (s *RunState) Report() *Report {
	records := make([]ExecutionRecord, len(s.Records))
	copy(records, s.Records)
	return &Report{
		RunID:   s.RunID,
		Status:  s.Status,
		Records: records,
	}
}

// Report is the ordered list of records produced by a run
type Report struct {
	RunID   string            `json:"run_id,omitempty"`
	Status  RunStatus         `json:"status,omitempty"`
	Records []ExecutionRecord `json:"records"`
}

// WireResult is one entry of the {results: [...]} wire format
type WireResult struct {
	Result *string `json:"result,omitempty"`
	Stdout *string `json:"stdout,omitempty"`
	Error  *string `json:"error,omitempty"`
}

// Wire converts the report to its wire representation
func (r *Report) Wire() []WireResult {
	out := make([]WireResult, len(r.Records))
	for i, rec := range r.Records {
		out[i] = WireResult{
			Result: rec.Result,
			Stdout: rec.Stdout,
			Error:  rec.Error,
		}
	}
	return out
}

// RecordsFromWire rebuilds records from wire entries. The wire format has no
// step status, so decoded records leave Status empty: a bare error entry may
// be a soft script error or the transport failure that ended a batch.
func RecordsFromWire(results []WireResult) []ExecutionRecord {
	out := make([]ExecutionRecord, len(results))
	for i, w := range results {
		out[i] = ExecutionRecord{
			Result: w.Result,
			Stdout: w.Stdout,
			Error:  w.Error,
		}
	}
	return out
}

// WireFromResult converts one execution result to its wire form
func WireFromResult(r ExecutionResult) WireResult {
	return WireResult{Result: r.Result, Stdout: r.Stdout, Error: r.Error}
}

// WireError builds the trailing error entry of an aborted batch
func WireError(err error) WireResult {
	msg := err.Error()
	return WireResult{Error: &msg}
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
