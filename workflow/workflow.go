package workflow

import (
	"time"

	"github.com/eduflow/eduflow/types"
)

// Status represents the lifecycle state of a workflow instance.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// StepStatus represents the lifecycle state of a single step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// Step is a single unit of work within a workflow, dispatched to a
// capability-matched handler. DependsOn is never mutated after
// instantiation.
type Step struct {
	ID                 string         `json:"id"`
	AssignedTo         string         `json:"assigned_to,omitempty"`
	Action             string         `json:"action"`
	RequiredCapability Capability     `json:"required_capability"`
	Input              map[string]any `json:"input,omitempty"`
	Output             map[string]any `json:"output,omitempty"`
	Status             StepStatus     `json:"status"`
	DependsOn          []string       `json:"depends_on,omitempty"`
	Timeout            time.Duration  `json:"timeout"`
}

// IsRoot reports whether the step has no dependencies.
func (s *Step) IsRoot() bool {
	return len(s.DependsOn) == 0
}

// Workflow is a runnable instance of a template: ordered steps with
// dependencies and a tracked status. The orchestrator owns the instance
// exclusively for its lifetime; all mutation happens under the
// orchestrator's lock.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Status      Status         `json:"status"`
	Priority    types.Priority `json:"priority"`
	Steps       []*Step        `json:"steps"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`

	// graph is built once at instantiation and retained for the life of
	// the workflow; resume recomputes order from this unmodified graph.
	graph   *Graph
	history *ExecutionHistory
}

// StepByID returns the step with the given id, or nil if absent.
func (w *Workflow) StepByID(id string) *Step {
	for _, s := range w.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Graph returns the dependency graph built at instantiation.
func (w *Workflow) Graph() *Graph {
	return w.graph
}

// History returns the step-level execution history.
func (w *Workflow) History() *ExecutionHistory {
	return w.history
}

// completedSteps counts steps that have reached the completed status.
func (w *Workflow) completedSteps() int {
	n := 0
	for _, s := range w.Steps {
		if s.Status == StepCompleted {
			n++
		}
	}
	return n
}

// currentStep returns the id of the single in-progress step, if any.
func (w *Workflow) currentStep() string {
	for _, s := range w.Steps {
		if s.Status == StepInProgress {
			return s.ID
		}
	}
	return ""
}
