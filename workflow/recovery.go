package workflow

import "github.com/eduflow/eduflow/types"

// RecoveryDecision is the outcome of the failure-recovery policy for one
// failed step.
type RecoveryDecision string

const (
	// DecisionRetry re-dispatches the failed step.
	DecisionRetry RecoveryDecision = "retry"
	// DecisionSkip leaves the step failed and proceeds to the next step.
	DecisionSkip RecoveryDecision = "skip"
	// DecisionAbort fails the workflow and stops processing remaining steps.
	DecisionAbort RecoveryDecision = "abort"
)

// RecoveryPolicy decides how to recover from a failed step.
type RecoveryPolicy interface {
	Decide(wf *Workflow, step *Step, failure error) RecoveryDecision
}

// DefaultPolicy is the stateless decision table:
//
//   - a root step (no dependencies) is retried;
//   - otherwise a critical-priority workflow aborts;
//   - otherwise the step is skipped.
//
// The policy does not count prior retries of the same step; the engine owns
// the retry budget and falls back to skip or abort when it is exhausted.
type DefaultPolicy struct{}

// Decide implements RecoveryPolicy.
func (DefaultPolicy) Decide(wf *Workflow, step *Step, _ error) RecoveryDecision {
	if step.IsRoot() {
		return DecisionRetry
	}
	if wf.Priority == types.PriorityCritical {
		return DecisionAbort
	}
	return DecisionSkip
}
