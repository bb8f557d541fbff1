package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduflow/eduflow/workflow"
)

func newTestCache(t *testing.T) *StatusCache {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.DefaultTTL = time.Minute

	c, err := NewStatusCache(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestStatusCache_RoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	report := workflow.StatusReport{
		Found:          true,
		WorkflowID:     "wf-1",
		Name:           "lesson-planning",
		Status:         workflow.StatusRunning,
		Progress:       0.5,
		CompletedSteps: 2,
		TotalSteps:     4,
		CurrentStep:    "adapt-content",
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, c.SetStatus(ctx, report))

	got, found, err := c.GetStatus(ctx, "wf-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, report.WorkflowID, got.WorkflowID)
	assert.Equal(t, report.Status, got.Status)
	assert.Equal(t, report.Progress, got.Progress)
	assert.Equal(t, report.CurrentStep, got.CurrentStep)
}

func TestStatusCache_Miss(t *testing.T) {
	c := newTestCache(t)

	_, found, err := c.GetStatus(context.Background(), "unknown")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStatusCache_Delete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetStatus(ctx, workflow.StatusReport{Found: true, WorkflowID: "wf-2", Status: workflow.StatusCompleted}))
	require.NoError(t, c.Delete(ctx, "wf-2"))

	_, found, err := c.GetStatus(ctx, "wf-2")
	require.NoError(t, err)
	assert.False(t, found)
}
