package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoEntryNode      = errors.New("no entry node")
	ErrCycleDetected    = errors.New("cycle detected")
	ErrUnknownNode      = errors.New("unknown node")
	ErrDuplicateNode    = errors.New("duplicate node")
	ErrUnreachableNodes = errors.New("unreachable nodes")

	ErrTransport    = errors.New("transport error")
	ErrTimeout      = errors.New("timeout")
	ErrRemoteScript = errors.New("remote script error")
	ErrCancelled    = errors.New("run cancelled")

	ErrRunNotFound   = errors.New("run not found")
	ErrRunTerminal   = errors.New("run already in terminal state")
	ErrGraphNotFound = errors.New("graph not found")
	ErrQueueFull     = errors.New("run queue full")
)

// Error kinds carried on records and run states
const (
	ErrorKindGraph        = "graph"
	ErrorKindTransport    = "transport"
	ErrorKindTimeout      = "timeout"
	ErrorKindRemoteScript = "remote_script"
	ErrorKindCancelled    = "cancelled"
)

// GraphError reports a graph that cannot be linearized.
// No remote call is made for a run that fails with a GraphError.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

// TransportError reports a failed exchange with the remote executor:
// network failure, non-2xx status or an undecodable body.
type TransportError struct {
	StatusCode int
	Retried    bool
	Err        error
}

func (e *TransportError) Error() string {
	msg := "transport error"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("transport error: executor returned status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Retried {
		msg += " (after retry)"
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// TimeoutError reports a call that exceeded its deadline
type TimeoutError struct {
	Op    string
	After time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("%s timed out after %s", e.Op, e.After)
	}
	return fmt.Sprintf("%s timed out", e.Op)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// RemoteScriptError is a failure the executor reported for the script itself
type RemoteScriptError struct {
	Message string
}

func (e *RemoteScriptError) Error() string {
	return fmt.Sprintf("remote script error: %s", e.Message)
}

func (e *RemoteScriptError) Is(target error) bool { return target == ErrRemoteScript }

// ErrorKind classifies err into one of the ErrorKind constants
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	case errors.Is(err, ErrTransport):
		return ErrorKindTransport
	case errors.Is(err, ErrRemoteScript):
		return ErrorKindRemoteScript
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return ErrorKindCancelled
	}
	var ge *GraphError
	if errors.As(err, &ge) {
		return ErrorKindGraph
	}
	return ErrorKindTransport
}
