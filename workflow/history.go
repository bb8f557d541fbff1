package workflow

import (
	"sync"
	"time"
)

// StepExecution records a single dispatch attempt of a step.
type StepExecution struct {
	StepID     string           `json:"step_id"`
	Action     string           `json:"action"`
	Attempt    int              `json:"attempt"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Duration   time.Duration    `json:"duration"`
	Status     StepStatus       `json:"status"`
	Output     map[string]any   `json:"output,omitempty"`
	Error      string           `json:"error,omitempty"`
	Decision   RecoveryDecision `json:"decision,omitempty"`
}

// ExecutionHistory records the complete execution path of a workflow,
// including failed attempts and the recovery decision taken for each.
type ExecutionHistory struct {
	WorkflowID   string           `json:"workflow_id"`
	WorkflowName string           `json:"workflow_name"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
	Steps        []*StepExecution `json:"steps"`
	mu           sync.RWMutex
}

// NewExecutionHistory creates an empty history for a workflow.
func NewExecutionHistory(workflowID, workflowName string) *ExecutionHistory {
	return &ExecutionHistory{
		WorkflowID:   workflowID,
		WorkflowName: workflowName,
		Steps:        make([]*StepExecution, 0),
	}
}

// RecordStart marks the beginning of an execution pass. The first pass sets
// StartedAt; resumed passes keep the original start time.
func (h *ExecutionHistory) RecordStart(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.StartedAt.IsZero() {
		h.StartedAt = now
	}
}

// RecordAttempt appends one dispatch attempt.
func (h *ExecutionHistory) RecordAttempt(exec *StepExecution) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Steps = append(h.Steps, exec)
}

// RecordFinish marks the end of execution.
func (h *ExecutionHistory) RecordFinish(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.FinishedAt = now
}

// Attempts returns a snapshot of all recorded attempts.
func (h *ExecutionHistory) Attempts() []*StepExecution {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*StepExecution, len(h.Steps))
	copy(out, h.Steps)
	return out
}

// AttemptsFor returns the recorded attempts for one step id, in order.
func (h *ExecutionHistory) AttemptsFor(stepID string) []*StepExecution {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*StepExecution
	for _, s := range h.Steps {
		if s.StepID == stepID {
			out = append(out, s)
		}
	}
	return out
}

// Failures returns the recorded failed attempts.
func (h *ExecutionHistory) Failures() []*StepExecution {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*StepExecution
	for _, s := range h.Steps {
		if s.Status == StepFailed {
			out = append(out, s)
		}
	}
	return out
}
