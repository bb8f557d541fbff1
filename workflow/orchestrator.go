package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/eduflow/eduflow/bus"
	"github.com/eduflow/eduflow/internal/metrics"
	"github.com/eduflow/eduflow/types"
)

const (
	// DefaultAgentID is the orchestrator's addressing identity.
	DefaultAgentID = "workflow-orchestrator"

	defaultMaxStepRetries = 2
	defaultStepTimeout    = 30 * time.Second
)

// StatusReport is the result of a status query. Found is false for unknown
// workflow ids; unknown ids never produce an error.
type StatusReport struct {
	Found          bool           `json:"found"`
	WorkflowID     string         `json:"workflow_id,omitempty"`
	Name           string         `json:"name,omitempty"`
	Status         Status         `json:"status,omitempty"`
	Priority       types.Priority `json:"priority,omitempty"`
	Progress       float64        `json:"progress"`
	CompletedSteps int            `json:"completed_steps"`
	TotalSteps     int            `json:"total_steps"`
	CurrentStep    string         `json:"current_step,omitempty"`
	CreatedAt      time.Time      `json:"created_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// StatusCache caches status reports for external observers. Implementations
// must be safe for concurrent use; failures are logged, never fatal.
type StatusCache interface {
	SetStatus(ctx context.Context, report StatusReport) error
	GetStatus(ctx context.Context, workflowID string) (StatusReport, bool, error)
}

// Orchestrator owns the active workflow set and drives execution. All
// registries and collaborators are constructor-injected; there is no
// package-level state, so tests can run independent instances side by side.
type Orchestrator struct {
	agentID        string
	templates      *Registry
	handlers       *HandlerRegistry
	policy         RecoveryPolicy
	bus            bus.Bus
	logger         *zap.Logger
	metrics        *metrics.Collector
	store          HistoryStore
	cache          StatusCache
	tracer         trace.Tracer
	clock          func() time.Time
	maxStepRetries int
	stepTimeout    time.Duration

	mu        sync.RWMutex
	workflows map[string]*Workflow
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithBus sets the system event bus.
func WithBus(b bus.Bus) Option {
	return func(o *Orchestrator) { o.bus = b }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *Orchestrator) { o.metrics = c }
}

// WithHistoryStore sets the execution history store.
func WithHistoryStore(s HistoryStore) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithStatusCache sets the status report cache.
func WithStatusCache(c StatusCache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithRecoveryPolicy replaces the default failure-recovery policy.
func WithRecoveryPolicy(p RecoveryPolicy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithMaxStepRetries caps in-place re-dispatches of a failed step before
// the engine falls back to skip (or abort for critical workflows).
func WithMaxStepRetries(n int) Option {
	return func(o *Orchestrator) { o.maxStepRetries = n }
}

// WithDefaultStepTimeout sets the deadline applied to steps whose blueprint
// declares no timeout of its own.
func WithDefaultStepTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.stepTimeout = d
		}
	}
}

// WithClock injects the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithAgentID overrides the orchestrator's addressing identity.
func WithAgentID(id string) Option {
	return func(o *Orchestrator) { o.agentID = id }
}

// NewOrchestrator creates an orchestrator over the given template and
// handler registries.
func NewOrchestrator(templates *Registry, handlers *HandlerRegistry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		agentID:        DefaultAgentID,
		templates:      templates,
		handlers:       handlers,
		policy:         DefaultPolicy{},
		logger:         zap.NewNop(),
		tracer:         otel.Tracer("eduflow/workflow"),
		clock:          time.Now,
		maxStepRetries: defaultMaxStepRetries,
		stepTimeout:    defaultStepTimeout,
		workflows:      make(map[string]*Workflow),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(zap.String("component", "orchestrator"))
	return o
}

// Create instantiates the named template and adds the workflow to the
// active set.
func (o *Orchestrator) Create(templateName string, params Parameters, priority types.Priority) (*Workflow, error) {
	wf, err := o.templates.Instantiate(templateName, params, priority)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.workflows[wf.ID] = wf
	o.mu.Unlock()

	o.logger.Info("workflow created",
		zap.String("workflow_id", wf.ID),
		zap.String("template", templateName),
		zap.String("priority", string(wf.Priority)),
		zap.Int("steps", len(wf.Steps)),
	)
	if o.metrics != nil {
		o.metrics.WorkflowCreated(templateName)
	}
	o.emit(types.EventWorkflowCreated, map[string]any{
		"workflowId": wf.ID,
		"template":   templateName,
		"priority":   string(wf.Priority),
	}, types.PriorityMedium)

	return wf, nil
}

// Execute runs the workflow to a terminal or paused state. It is legal only
// from created or paused. Step-level failures are resolved through the
// recovery policy and do not propagate; only structural errors and an abort
// decision surface as the returned error.
func (o *Orchestrator) Execute(ctx context.Context, workflowID string) error {
	ctx, span := o.tracer.Start(ctx, "workflow.execute",
		trace.WithAttributes(attribute.String("workflow.id", workflowID)))
	defer span.End()

	o.mu.Lock()
	wf, ok := o.workflows[workflowID]
	if !ok {
		o.mu.Unlock()
		return types.NewErrorf(types.ErrWorkflowNotFound, "workflow %s not found", workflowID)
	}
	if wf.Status != StatusCreated && wf.Status != StatusPaused {
		status := wf.Status
		o.mu.Unlock()
		return types.NewErrorf(types.ErrInvalidTransition,
			"cannot execute workflow in status %s", status)
	}

	prev := wf.Status
	wf.Status = StatusRunning
	order, err := wf.graph.TopologicalOrder()
	if err != nil {
		// The record is left in its last valid state.
		wf.Status = prev
		o.mu.Unlock()
		return err
	}
	wf.history.RecordStart(o.clock())
	o.mu.Unlock()

	o.logger.Info("workflow execution started",
		zap.String("workflow_id", wf.ID),
		zap.String("name", wf.Name),
		zap.Int("order_len", len(order)),
	)

	started := o.clock()
	for _, stepID := range order {
		o.mu.Lock()
		if wf.Status != StatusRunning {
			// Paused or cancelled mid-run; stop processing.
			o.mu.Unlock()
			return nil
		}
		step := wf.StepByID(stepID)
		if step == nil || step.Status == StepCompleted {
			// Completed steps are never re-dispatched on resume.
			o.mu.Unlock()
			continue
		}
		step.Status = StepInProgress
		step.AssignedTo = string(step.RequiredCapability)
		o.mu.Unlock()

		if err := o.runStep(ctx, wf, step); err != nil {
			o.recordTerminal(ctx, wf, started, StatusFailed)
			return err
		}
	}

	o.mu.Lock()
	if wf.Status != StatusRunning {
		o.mu.Unlock()
		return nil
	}
	wf.Status = StatusCompleted
	now := o.clock()
	wf.CompletedAt = &now
	wf.history.RecordFinish(now)
	o.mu.Unlock()

	o.logger.Info("workflow completed",
		zap.String("workflow_id", wf.ID),
		zap.Duration("duration", o.clock().Sub(started)),
	)
	if o.metrics != nil {
		o.metrics.WorkflowExecution(string(StatusCompleted), o.clock().Sub(started))
	}
	o.emit(types.EventWorkflowCompleted, map[string]any{
		"workflowId": wf.ID,
	}, types.PriorityMedium)
	o.persist(ctx, wf)
	o.updateCache(ctx, wf)
	return nil
}

// runStep dispatches one step, applying the recovery policy on failure.
// A non-nil return means the workflow aborted.
func (o *Orchestrator) runStep(ctx context.Context, wf *Workflow, step *Step) error {
	for attempt := 1; ; attempt++ {
		startedAt := o.clock()
		output, err := o.dispatch(ctx, wf, step)
		finishedAt := o.clock()

		if err == nil {
			o.mu.Lock()
			if wf.Status == StatusRunning && step.Status == StepInProgress {
				step.Status = StepCompleted
				step.Output = output
				wf.history.RecordAttempt(&StepExecution{
					StepID:     step.ID,
					Action:     step.Action,
					Attempt:    attempt,
					StartedAt:  startedAt,
					FinishedAt: finishedAt,
					Duration:   finishedAt.Sub(startedAt),
					Status:     StepCompleted,
					Output:     output,
				})
			}
			// Otherwise the workflow went paused or terminal while the
			// dispatch was in flight: the result is discarded.
			o.mu.Unlock()

			if o.metrics != nil {
				o.metrics.StepExecution(string(step.RequiredCapability),
					string(StepCompleted), finishedAt.Sub(startedAt))
			}
			return nil
		}

		o.mu.Lock()
		if wf.Status != StatusRunning || step.Status != StepInProgress {
			o.mu.Unlock()
			return nil
		}
		step.Status = StepFailed

		decision := o.policy.Decide(wf, step, err)
		if decision == DecisionRetry && attempt > o.maxStepRetries {
			// Retry budget exhausted; fall back per priority.
			if wf.Priority == types.PriorityCritical {
				decision = DecisionAbort
			} else {
				decision = DecisionSkip
			}
		}

		wf.history.RecordAttempt(&StepExecution{
			StepID:     step.ID,
			Action:     step.Action,
			Attempt:    attempt,
			StartedAt:  startedAt,
			FinishedAt: finishedAt,
			Duration:   finishedAt.Sub(startedAt),
			Status:     StepFailed,
			Error:      err.Error(),
			Decision:   decision,
		})

		o.logger.Warn("step failed",
			zap.String("workflow_id", wf.ID),
			zap.String("step_id", step.ID),
			zap.Int("attempt", attempt),
			zap.String("decision", string(decision)),
			zap.Error(err),
		)
		if o.metrics != nil {
			o.metrics.StepExecution(string(step.RequiredCapability),
				string(StepFailed), finishedAt.Sub(startedAt))
			o.metrics.RecoveryDecision(string(decision))
		}

		switch decision {
		case DecisionRetry:
			step.Status = StepInProgress
			o.mu.Unlock()
			continue
		case DecisionSkip:
			o.mu.Unlock()
			return nil
		default: // DecisionAbort
			wf.Status = StatusFailed
			wf.history.RecordFinish(o.clock())
			o.mu.Unlock()
			o.emit(types.EventWorkflowFailed, map[string]any{
				"workflowId": wf.ID,
				"stepId":     step.ID,
				"reason":     err.Error(),
			}, types.PriorityHigh)
			return fmt.Errorf("workflow %s aborted at step %s: %w", wf.ID, step.ID, err)
		}
	}
}

// dispatch resolves the handler for a step's capability and invokes it with
// the step's timeout. A handler that neither replies nor honors the context
// before the deadline is treated as timed out.
func (o *Orchestrator) dispatch(ctx context.Context, wf *Workflow, step *Step) (map[string]any, error) {
	handler, err := o.handlers.Resolve(step.RequiredCapability)
	if err != nil {
		// Execution-time error: templates are not validated against the
		// capability map at registration.
		return nil, err
	}

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = o.stepTimeout
	}

	ctx, span := o.tracer.Start(ctx, "workflow.step",
		trace.WithAttributes(
			attribute.String("workflow.id", wf.ID),
			attribute.String("step.id", step.ID),
			attribute.String("step.capability", string(step.RequiredCapability)),
		))
	defer span.End()

	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := StepRequest{
		WorkflowID: wf.ID,
		StepID:     step.ID,
		Action:     step.Action,
		Input:      step.Input,
	}

	type result struct {
		output map[string]any
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		out, err := handler.Handle(dctx, req)
		ch <- result{out, err}
	}()

	select {
	case res := <-ch:
		return res.output, res.err
	case <-dctx.Done():
		if errors.Is(dctx.Err(), context.DeadlineExceeded) {
			return nil, types.NewErrorf(types.ErrStepTimeout,
				"step %s timed out after %s", step.ID, timeout).WithRetryable(true)
		}
		return nil, dctx.Err()
	}
}

// Pause suspends a running workflow. Pause is lossy: any in-progress step
// reverts to pending and is fully re-dispatched on resume.
func (o *Orchestrator) Pause(workflowID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	wf, ok := o.workflows[workflowID]
	if !ok {
		return types.NewErrorf(types.ErrWorkflowNotFound, "workflow %s not found", workflowID)
	}
	if wf.Status != StatusRunning {
		return types.NewErrorf(types.ErrInvalidTransition,
			"cannot pause workflow in status %s", wf.Status)
	}

	wf.Status = StatusPaused
	for _, s := range wf.Steps {
		if s.Status == StepInProgress {
			s.Status = StepPending
		}
	}
	o.logger.Info("workflow paused", zap.String("workflow_id", wf.ID))
	return nil
}

// Resume re-executes a paused workflow over its unmodified dependency
// graph. Already-completed steps are skipped.
func (o *Orchestrator) Resume(ctx context.Context, workflowID string) error {
	o.mu.RLock()
	wf, ok := o.workflows[workflowID]
	if ok && wf.Status != StatusPaused {
		status := wf.Status
		o.mu.RUnlock()
		return types.NewErrorf(types.ErrInvalidTransition,
			"cannot resume workflow in status %s", status)
	}
	o.mu.RUnlock()
	if !ok {
		return types.NewErrorf(types.ErrWorkflowNotFound, "workflow %s not found", workflowID)
	}

	o.logger.Info("workflow resumed", zap.String("workflow_id", workflowID))
	return o.Execute(ctx, workflowID)
}

// Cancel forces a non-terminal workflow to failed and marks every pending
// or in-progress step failed. Cancellation is cooperative: an in-flight
// dispatch is not interrupted; its result is discarded when it returns.
func (o *Orchestrator) Cancel(ctx context.Context, workflowID string) error {
	o.mu.Lock()
	wf, ok := o.workflows[workflowID]
	if !ok {
		o.mu.Unlock()
		return types.NewErrorf(types.ErrWorkflowNotFound, "workflow %s not found", workflowID)
	}
	if wf.Status == StatusCompleted || wf.Status == StatusFailed {
		status := wf.Status
		o.mu.Unlock()
		return types.NewErrorf(types.ErrInvalidTransition,
			"cannot cancel workflow in status %s", status)
	}

	wf.Status = StatusFailed
	for _, s := range wf.Steps {
		if s.Status == StepPending || s.Status == StepInProgress {
			s.Status = StepFailed
		}
	}
	wf.history.RecordFinish(o.clock())
	o.mu.Unlock()

	o.logger.Info("workflow cancelled", zap.String("workflow_id", wf.ID))
	o.emit(types.EventWorkflowFailed, map[string]any{
		"workflowId": wf.ID,
		"reason":     "cancelled",
	}, types.PriorityMedium)
	o.persist(ctx, wf)
	o.updateCache(ctx, wf)
	return nil
}

// Status derives the progress report for a workflow. Unknown ids yield a
// report with Found=false rather than an error; when a status cache is
// configured it is consulted for ids no longer in the active set.
func (o *Orchestrator) Status(ctx context.Context, workflowID string) StatusReport {
	o.mu.RLock()
	wf, ok := o.workflows[workflowID]
	var report StatusReport
	if ok {
		report = o.reportLocked(wf)
	}
	o.mu.RUnlock()

	if !ok {
		if o.cache != nil {
			if cached, found, err := o.cache.GetStatus(ctx, workflowID); err == nil && found {
				return cached
			}
		}
		return StatusReport{Found: false}
	}

	if o.cache != nil {
		if err := o.cache.SetStatus(ctx, report); err != nil {
			o.logger.Warn("status cache write failed",
				zap.String("workflow_id", workflowID), zap.Error(err))
		}
	}
	return report
}

// Remove drops a terminal workflow from the active set.
func (o *Orchestrator) Remove(workflowID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	wf, ok := o.workflows[workflowID]
	if !ok {
		return types.NewErrorf(types.ErrWorkflowNotFound, "workflow %s not found", workflowID)
	}
	if wf.Status != StatusCompleted && wf.Status != StatusFailed {
		return types.NewErrorf(types.ErrInvalidTransition,
			"cannot remove workflow in status %s", wf.Status)
	}
	delete(o.workflows, workflowID)
	return nil
}

// Get returns an active workflow by id.
func (o *Orchestrator) Get(workflowID string) (*Workflow, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	wf, ok := o.workflows[workflowID]
	return wf, ok
}

// reportLocked builds a status report; the caller holds the lock.
func (o *Orchestrator) reportLocked(wf *Workflow) StatusReport {
	total := len(wf.Steps)
	completed := wf.completedSteps()
	progress := 0.0
	if total > 0 {
		progress = float64(completed) / float64(total)
	}
	return StatusReport{
		Found:          true,
		WorkflowID:     wf.ID,
		Name:           wf.Name,
		Status:         wf.Status,
		Priority:       wf.Priority,
		Progress:       progress,
		CompletedSteps: completed,
		TotalSteps:     total,
		CurrentStep:    wf.currentStep(),
		CreatedAt:      wf.CreatedAt,
		CompletedAt:    wf.CompletedAt,
	}
}

// recordTerminal finalizes metrics, persistence, and cache on abort.
func (o *Orchestrator) recordTerminal(ctx context.Context, wf *Workflow, started time.Time, status Status) {
	if o.metrics != nil {
		o.metrics.WorkflowExecution(string(status), o.clock().Sub(started))
	}
	o.persist(ctx, wf)
	o.updateCache(ctx, wf)
}

// persist saves the execution history when a store is configured.
func (o *Orchestrator) persist(ctx context.Context, wf *Workflow) {
	if o.store == nil {
		return
	}
	if err := o.store.Save(ctx, wf); err != nil {
		o.logger.Error("failed to persist execution history",
			zap.String("workflow_id", wf.ID), zap.Error(err))
	}
}

// updateCache writes the current status report through to the cache.
func (o *Orchestrator) updateCache(ctx context.Context, wf *Workflow) {
	if o.cache == nil {
		return
	}
	o.mu.RLock()
	report := o.reportLocked(wf)
	o.mu.RUnlock()
	if err := o.cache.SetStatus(ctx, report); err != nil {
		o.logger.Warn("status cache write failed",
			zap.String("workflow_id", wf.ID), zap.Error(err))
	}
}

// emit publishes a system event when a bus is configured.
func (o *Orchestrator) emit(eventType types.EventType, data map[string]any, priority types.Priority) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(types.NewSystemEvent(uuid.NewString(), eventType, o.agentID, data).
		WithPriority(priority))
}
