package workflow

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// HistoryStore persists execution histories for terminal workflows.
type HistoryStore interface {
	Save(ctx context.Context, wf *Workflow) error
	Load(ctx context.Context, workflowID string) ([]StepExecutionRecord, error)
}

// StepExecutionRecord is the persisted form of one step dispatch attempt.
type StepExecutionRecord struct {
	ID           uint          `gorm:"primaryKey"`
	WorkflowID   string        `gorm:"index;size:64"`
	WorkflowName string        `gorm:"size:128"`
	StepID       string        `gorm:"size:64"`
	Action       string        `gorm:"size:256"`
	Attempt      int
	Status       string        `gorm:"size:16"`
	Error        string        `gorm:"size:1024"`
	Decision     string        `gorm:"size:16"`
	StartedAt    time.Time
	FinishedAt   time.Time
	Duration     time.Duration
	CreatedAt    time.Time
}

// TableName keeps the table name stable across gorm naming strategies.
func (StepExecutionRecord) TableName() string {
	return "step_executions"
}

// GormHistoryStore is a gorm-backed HistoryStore.
type GormHistoryStore struct {
	db *gorm.DB
}

// NewGormHistoryStore auto-migrates the schema and returns the store.
func NewGormHistoryStore(db *gorm.DB) (*GormHistoryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.AutoMigrate(&StepExecutionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	return &GormHistoryStore{db: db}, nil
}

// Save persists every recorded attempt of the workflow's history.
func (s *GormHistoryStore) Save(ctx context.Context, wf *Workflow) error {
	attempts := wf.History().Attempts()
	if len(attempts) == 0 {
		return nil
	}

	records := make([]StepExecutionRecord, 0, len(attempts))
	for _, a := range attempts {
		records = append(records, StepExecutionRecord{
			WorkflowID:   wf.ID,
			WorkflowName: wf.Name,
			StepID:       a.StepID,
			Action:       a.Action,
			Attempt:      a.Attempt,
			Status:       string(a.Status),
			Error:        a.Error,
			Decision:     string(a.Decision),
			StartedAt:    a.StartedAt,
			FinishedAt:   a.FinishedAt,
			Duration:     a.Duration,
		})
	}

	if err := s.db.WithContext(ctx).Create(&records).Error; err != nil {
		return fmt.Errorf("failed to save execution history: %w", err)
	}
	return nil
}

// Load returns the persisted attempts for a workflow, oldest first.
func (s *GormHistoryStore) Load(ctx context.Context, workflowID string) ([]StepExecutionRecord, error) {
	var records []StepExecutionRecord
	err := s.db.WithContext(ctx).
		Where("workflow_id = ?", workflowID).
		Order("id asc").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load execution history: %w", err)
	}
	return records, nil
}
