package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_WireRoundTrip(t *testing.T) {
	report := &Report{
		Records: []ExecutionRecord{
			{NodeID: "0", Status: StepStatusSucceeded, Result: StringPtr("42"), Stdout: StringPtr("hello\n")},
			{NodeID: "1", Status: StepStatusSucceeded, Result: StringPtr(""), Stdout: nil},
			{NodeID: "2", Status: StepStatusSucceeded, Stdout: StringPtr(""), Error: StringPtr("syntax error")},
			{NodeID: "3", Status: StepStatusSucceeded, Error: StringPtr("syntax error"), ErrorKind: ErrorKindRemoteScript},
			{NodeID: "4", Status: StepStatusFailed, Error: StringPtr("transport error: connection refused")},
		},
	}

	data, err := json.Marshal(map[string]interface{}{"results": report.Wire()})
	require.NoError(t, err)

	var decoded struct {
		Results []WireResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	records := RecordsFromWire(decoded.Results)
	require.Len(t, records, len(report.Records))
	for i, want := range report.Records {
		got := records[i]
		assert.Equal(t, want.Result, got.Result, "record %d result", i)
		assert.Equal(t, want.Stdout, got.Stdout, "record %d stdout", i)
		assert.Equal(t, want.Error, got.Error, "record %d error", i)
		assert.Empty(t, got.Status, "record %d status", i)
	}

	// a bare soft error is indistinguishable from a transport failure on the wire
	assert.JSONEq(t, `{"error":"syntax error"}`, mustJSON(t, report.Wire()[3]))
	assert.Equal(t, ExecutionRecord{Error: StringPtr("syntax error")}, records[3])

	// absent and empty must stay distinguishable
	assert.Nil(t, records[1].Stdout)
	require.NotNil(t, records[1].Result)
	assert.Equal(t, "", *records[1].Result)
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestReport_WireOmitsAbsentFields(t *testing.T) {
	report := &Report{Records: []ExecutionRecord{{Result: StringPtr("")}}}

	data, err := json.Marshal(report.Wire())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"result":""}]`, string(data))
}

func TestExecutionResult_ScriptError(t *testing.T) {
	assert.NoError(t, (&ExecutionResult{Result: StringPtr("ok")}).ScriptError())

	err := (&ExecutionResult{Error: StringPtr("boom")}).ScriptError()
	assert.True(t, errors.Is(err, ErrRemoteScript))
	assert.Contains(t, err.Error(), "boom")
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"graph", &GraphError{Kind: ErrCycleDetected}, ErrorKindGraph},
		{"transport", &TransportError{StatusCode: 502}, ErrorKindTransport},
		{"wrapped transport", fmt.Errorf("step 1: %w", &TransportError{}), ErrorKindTransport},
		{"timeout", &TimeoutError{Op: "execute"}, ErrorKindTimeout},
		{"deadline", context.DeadlineExceeded, ErrorKindTimeout},
		{"remote", &RemoteScriptError{Message: "x"}, ErrorKindRemoteScript},
		{"cancelled", ErrCancelled, ErrorKindCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorKind(tt.err))
		})
	}
}

func TestGraphError_Unwrap(t *testing.T) {
	err := &GraphError{Kind: ErrNoEntryNode, Msg: "every node is an edge target"}

	assert.True(t, errors.Is(err, ErrNoEntryNode))
	assert.Equal(t, "no entry node: every node is an edge target", err.Error())
}

func TestRunStatus_IsTerminal(t *testing.T) {
	assert.True(t, RunStatusCompleted.IsTerminal())
	assert.True(t, RunStatusAborted.IsTerminal())
	assert.False(t, RunStatusRunning.IsTerminal())
	assert.False(t, RunStatusIdle.IsTerminal())
}
