package domain

import (
	"time"
)

// EventType identifies a progress event
type EventType string

const (
	EventTypeRunSubmitted  EventType = "run.submitted"
	EventTypeRunResolved   EventType = "run.resolved"
	EventTypeRunCompleted  EventType = "run.completed"
	EventTypeRunAborted    EventType = "run.aborted"
	EventTypeStepStarted   EventType = "step.started"
	EventTypeStepCompleted EventType = "step.completed"
	EventTypeStepFailed    EventType = "step.failed"
)

// Event topics
const (
	TopicRunEvents  = "run.events"
	TopicStepEvents = "step.events"
)

// Event is a progress notification about a run
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	RunID     string                 `json:"run_id"`
	NodeID    string                 `json:"node_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// IsTerminal reports whether the event ends its run
func (e Event) IsTerminal() bool {
	return e.Type == EventTypeRunCompleted || e.Type == EventTypeRunAborted
}
