package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *GormHistoryStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	store, err := NewGormHistoryStore(db)
	require.NoError(t, err)
	return store
}

func TestGormHistoryStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	wf := &Workflow{ID: "wf-1", Name: "lesson-review"}
	wf.history = NewExecutionHistory(wf.ID, wf.Name)
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	wf.history.RecordAttempt(&StepExecution{
		StepID:     "grade",
		Action:     "grade submission",
		Attempt:    1,
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Duration:   time.Second,
		Status:     StepFailed,
		Error:      "transient grading error",
		Decision:   DecisionRetry,
	})
	wf.history.RecordAttempt(&StepExecution{
		StepID:     "grade",
		Action:     "grade submission",
		Attempt:    2,
		StartedAt:  started.Add(time.Second),
		FinishedAt: started.Add(2 * time.Second),
		Duration:   time.Second,
		Status:     StepCompleted,
	})

	require.NoError(t, store.Save(ctx, wf))

	records, err := store.Load(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "lesson-review", records[0].WorkflowName)
	assert.Equal(t, 1, records[0].Attempt)
	assert.Equal(t, string(StepFailed), records[0].Status)
	assert.Equal(t, string(DecisionRetry), records[0].Decision)
	assert.Equal(t, "transient grading error", records[0].Error)

	assert.Equal(t, 2, records[1].Attempt)
	assert.Equal(t, string(StepCompleted), records[1].Status)
	assert.Empty(t, records[1].Decision)
}

func TestGormHistoryStore_SaveEmptyHistoryIsNoop(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	wf := &Workflow{ID: "wf-2", Name: "empty"}
	wf.history = NewExecutionHistory(wf.ID, wf.Name)

	require.NoError(t, store.Save(ctx, wf))

	records, err := store.Load(ctx, "wf-2")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestGormHistoryStore_LoadIsolatesWorkflows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"wf-a", "wf-b"} {
		wf := &Workflow{ID: id, Name: "lesson-review"}
		wf.history = NewExecutionHistory(wf.ID, wf.Name)
		wf.history.RecordAttempt(&StepExecution{
			StepID: "grade", Attempt: 1, Status: StepCompleted,
		})
		require.NoError(t, store.Save(ctx, wf))
	}

	records, err := store.Load(ctx, "wf-a")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "wf-a", records[0].WorkflowID)
}
