package types

import "time"

// Priority represents the urgency of a message, event, workflow, or process.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// MessageType identifies the purpose of an AgentMessage.
type MessageType string

const (
	// Requests recognized by the workflow orchestrator.
	MsgWorkflowCreateRequest  MessageType = "workflow-create-request"
	MsgWorkflowExecuteRequest MessageType = "workflow-execute-request"
	MsgWorkflowStepComplete   MessageType = "workflow-step-complete"
	MsgWorkflowStatusRequest  MessageType = "workflow-status-request"

	// MsgWorkflowTask is the step dispatch message sent to capability handlers.
	MsgWorkflowTask MessageType = "workflow-task"

	// Responses emitted by the orchestrator.
	MsgWorkflowResponse MessageType = "workflow-response"
	MsgErrorResponse    MessageType = "error-response"
)

// AgentMessage is the typed envelope every component uses to talk to every
// other component. Responses echo the request id as CorrelationID.
type AgentMessage struct {
	ID               string         `json:"id"`
	FromAgentID      string         `json:"from_agent_id"`
	ToAgentID        string         `json:"to_agent_id"`
	Type             MessageType    `json:"type"`
	Data             map[string]any `json:"data,omitempty"`
	Priority         Priority       `json:"priority"`
	Timestamp        time.Time      `json:"timestamp"`
	RequiresResponse bool           `json:"requires_response"`
	CorrelationID    string         `json:"correlation_id,omitempty"`
}

// NewMessage creates a message with the given addressing and payload.
// The caller supplies the id; the orchestrator uses uuid-based ids.
func NewMessage(id, from, to string, msgType MessageType, data map[string]any) *AgentMessage {
	return &AgentMessage{
		ID:          id,
		FromAgentID: from,
		ToAgentID:   to,
		Type:        msgType,
		Data:        data,
		Priority:    PriorityMedium,
		Timestamp:   time.Now(),
	}
}

// Response builds a reply to this message, swapping the addressing and
// echoing the request id as the correlation id.
func (m *AgentMessage) Response(id string, msgType MessageType, data map[string]any) *AgentMessage {
	return &AgentMessage{
		ID:            id,
		FromAgentID:   m.ToAgentID,
		ToAgentID:     m.FromAgentID,
		Type:          msgType,
		Data:          data,
		Priority:      m.Priority,
		Timestamp:     time.Now(),
		CorrelationID: m.ID,
	}
}

// WithPriority sets the message priority.
func (m *AgentMessage) WithPriority(p Priority) *AgentMessage {
	m.Priority = p
	return m
}

// WithResponseRequired marks the message as expecting a reply.
func (m *AgentMessage) WithResponseRequired() *AgentMessage {
	m.RequiresResponse = true
	return m
}
