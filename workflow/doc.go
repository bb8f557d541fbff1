/*
Package workflow provides the workflow orchestration engine.

# Overview

The workflow package implements template-driven workflow orchestration:
named templates are instantiated into concrete workflows, a dependency
graph is built from the declared step dependencies, a topological order
is computed (with cycle detection), and steps are dispatched sequentially
to capability-matched handlers with per-step timeouts. Step failures are
resolved through a pluggable recovery policy (retry / skip / abort).

# Core types

  - Template, StepBlueprint, Registry: immutable workflow blueprints
  - Workflow, Step: runnable instances with tracked status
  - Graph: dependency adjacency and topological order
  - Capability, Handler, HandlerRegistry: late-bound step dispatch
  - RecoveryPolicy, DefaultPolicy: per-failure retry/skip/abort decisions
  - Orchestrator: owns active workflows and drives execution
  - ExecutionHistory, HistoryStore: step-level execution records

# Execution model

Execution is single-flow cooperative: the engine dispatches one step at a
time and blocks until the handler responds, errors, or the per-step timeout
fires. Pause is lossy: an in-progress step reverts to pending and is fully
re-dispatched on resume; already-completed steps are never re-dispatched.
Cancellation is cooperative: terminal state is marked immediately and any
in-flight handler result is discarded when it eventually returns.
*/
package workflow
