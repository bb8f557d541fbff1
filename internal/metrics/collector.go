package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector aggregates workflow and process metrics. Metrics are registered
// on the provided registerer so independent collectors (one per test, for
// example) never collide.
type Collector struct {
	// Workflow metrics
	workflowsCreated  *prometheus.CounterVec
	workflowDuration  *prometheus.HistogramVec
	stepExecutions    *prometheus.CounterVec
	stepDuration      *prometheus.HistogramVec
	recoveryDecisions *prometheus.CounterVec

	// Process metrics
	processTransitions *prometheus.CounterVec
	processRestarts    prometheus.Counter
	processHealth      *prometheus.GaugeVec

	// Resource metrics
	activeAllocations prometheus.Gauge

	logger *zap.Logger
}

// NewCollector creates a collector registered on reg. A nil reg falls back
// to the default registry.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.workflowsCreated = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_created_total",
			Help:      "Total number of workflows instantiated from templates",
		},
		[]string{"template"},
	)

	c.workflowDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "Workflow execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		},
		[]string{"status"},
	)

	c.stepExecutions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_executions_total",
			Help:      "Total number of step dispatch attempts",
		},
		[]string{"capability", "status"},
	)

	c.stepDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Step dispatch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"capability"},
	)

	c.recoveryDecisions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_decisions_total",
			Help:      "Total number of failure-recovery decisions by outcome",
		},
		[]string{"decision"},
	)

	c.processTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_transitions_total",
			Help:      "Total number of process state transitions",
		},
		[]string{"transition"},
	)

	c.processRestarts = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_restarts_total",
			Help:      "Total number of process restarts",
		},
	)

	c.processHealth = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_health",
			Help:      "Number of tracked processes by health state",
		},
		[]string{"state"},
	)

	c.activeAllocations = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resource_allocations_active",
			Help:      "Number of active resource allocations",
		},
	)

	return c
}

// WorkflowCreated counts a template instantiation.
func (c *Collector) WorkflowCreated(template string) {
	c.workflowsCreated.WithLabelValues(template).Inc()
}

// WorkflowExecution records a terminal workflow execution.
func (c *Collector) WorkflowExecution(status string, duration time.Duration) {
	c.workflowDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// StepExecution records one step dispatch attempt.
func (c *Collector) StepExecution(capability, status string, duration time.Duration) {
	c.stepExecutions.WithLabelValues(capability, status).Inc()
	c.stepDuration.WithLabelValues(capability).Observe(duration.Seconds())
}

// RecoveryDecision counts a failure-recovery outcome.
func (c *Collector) RecoveryDecision(decision string) {
	c.recoveryDecisions.WithLabelValues(decision).Inc()
}

// ProcessTransition counts a process state transition, e.g. "running->paused".
func (c *Collector) ProcessTransition(transition string) {
	c.processTransitions.WithLabelValues(transition).Inc()
}

// ProcessRestart counts a process restart.
func (c *Collector) ProcessRestart() {
	c.processRestarts.Inc()
}

// SetProcessHealth sets the tracked-process gauge for a health state.
func (c *Collector) SetProcessHealth(state string, count float64) {
	c.processHealth.WithLabelValues(state).Set(count)
}

// AllocationGranted increments the active allocation gauge.
func (c *Collector) AllocationGranted() {
	c.activeAllocations.Inc()
}

// AllocationReleased decrements the active allocation gauge.
func (c *Collector) AllocationReleased() {
	c.activeAllocations.Dec()
}
