package types

import (
	"testing"
)

func TestMessage_ResponseSwapsAddressingAndCorrelates(t *testing.T) {
	t.Parallel()

	req := NewMessage("req-1", "caller", "workflow-orchestrator",
		MsgWorkflowCreateRequest, map[string]any{"template": "t"}).
		WithPriority(PriorityHigh).
		WithResponseRequired()

	if !req.RequiresResponse {
		t.Fatalf("expected RequiresResponse to be set")
	}

	resp := req.Response("resp-1", MsgWorkflowResponse, map[string]any{"ok": true})

	if resp.CorrelationID != "req-1" {
		t.Fatalf("expected correlation id req-1, got %s", resp.CorrelationID)
	}
	if resp.FromAgentID != "workflow-orchestrator" || resp.ToAgentID != "caller" {
		t.Fatalf("expected swapped addressing, got %s -> %s", resp.FromAgentID, resp.ToAgentID)
	}
	if resp.Priority != PriorityHigh {
		t.Fatalf("expected response to inherit priority, got %s", resp.Priority)
	}
}

func TestNewSystemEvent(t *testing.T) {
	t.Parallel()

	ev := NewSystemEvent("ev-1", EventWorkflowCreated, "workflow-orchestrator",
		map[string]any{"workflowId": "wf-1"}).
		WithPriority(PriorityCritical)

	if ev.Type != EventWorkflowCreated {
		t.Fatalf("expected type %s, got %s", EventWorkflowCreated, ev.Type)
	}
	if ev.Priority != PriorityCritical {
		t.Fatalf("expected critical priority, got %s", ev.Priority)
	}
	if ev.Timestamp.IsZero() {
		t.Fatalf("expected timestamp to be set")
	}
}
