package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	err := NewError(ErrWorkflowNotFound, "workflow wf-1 not found")
	assert.Equal(t, "[WORKFLOW_NOT_FOUND] workflow wf-1 not found", err.Error())

	cause := errors.New("boom")
	wrapped := NewError(ErrStepTimeout, "step s1 timed out").WithCause(cause)
	assert.Contains(t, wrapped.Error(), "boom")
	assert.ErrorIs(t, wrapped, cause)
}

func TestError_CodeExtraction(t *testing.T) {
	err := NewErrorf(ErrCircularDependency, "cycle involving step %s", "b")
	assert.Equal(t, ErrCircularDependency, GetErrorCode(err))
	assert.True(t, IsCode(err, ErrCircularDependency))

	// Code survives fmt wrapping.
	outer := fmt.Errorf("execute failed: %w", err)
	assert.Equal(t, ErrCircularDependency, GetErrorCode(outer))

	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}

func TestError_Retryable(t *testing.T) {
	err := NewError(ErrStepTimeout, "timed out").WithRetryable(true)
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestAgentMessage_Response(t *testing.T) {
	req := NewMessage("msg-1", "curriculum-agent", "orchestrator",
		MsgWorkflowStatusRequest, map[string]any{"workflowId": "wf-1"}).
		WithPriority(PriorityHigh).
		WithResponseRequired()

	require.True(t, req.RequiresResponse)

	resp := req.Response("msg-2", MsgWorkflowResponse, map[string]any{"status": "running"})
	assert.Equal(t, "msg-1", resp.CorrelationID)
	assert.Equal(t, "orchestrator", resp.FromAgentID)
	assert.Equal(t, "curriculum-agent", resp.ToAgentID)
	assert.Equal(t, PriorityHigh, resp.Priority)
}
