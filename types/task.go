package types

// TaskType identifies an inbound orchestrator task.
type TaskType string

const (
	TaskCreateWorkflow    TaskType = "create_workflow"
	TaskExecuteWorkflow   TaskType = "execute_workflow"
	TaskPauseWorkflow     TaskType = "pause_workflow"
	TaskResumeWorkflow    TaskType = "resume_workflow"
	TaskCancelWorkflow    TaskType = "cancel_workflow"
	TaskGetWorkflowStatus TaskType = "get_workflow_status"
)

// Task is the inbound task contract accepted by the orchestrator.
// Unrecognized types fail with an UNKNOWN_TASK error naming the type.
type Task struct {
	Type TaskType       `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}
