package types

import "time"

// EventType identifies a system event emitted on lifecycle transitions.
type EventType string

const (
	EventWorkflowCreated     EventType = "workflow_created"
	EventWorkflowCompleted   EventType = "workflow_completed"
	EventWorkflowFailed      EventType = "workflow_failed"
	EventProcessStarted      EventType = "process_started"
	EventProcessTerminated   EventType = "process_terminated"
	EventProcessPaused       EventType = "process_paused"
	EventProcessResumed      EventType = "process_resumed"
	EventProcessRestarted    EventType = "process_restarted"
	EventProcessUnresponsive EventType = "process_unresponsive"
)

// SystemEvent is emitted on workflow and process lifecycle transitions for
// any external observer (logging, dashboards) to subscribe to.
type SystemEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Source    string         `json:"source"`
	Data      map[string]any `json:"data,omitempty"`
	Priority  Priority       `json:"priority"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewSystemEvent creates an event with the given type, source, and payload.
func NewSystemEvent(id string, eventType EventType, source string, data map[string]any) SystemEvent {
	return SystemEvent{
		ID:        id,
		Type:      eventType,
		Source:    source,
		Data:      data,
		Priority:  PriorityMedium,
		Timestamp: time.Now(),
	}
}

// WithPriority sets the event priority.
func (e SystemEvent) WithPriority(p Priority) SystemEvent {
	e.Priority = p
	return e
}
