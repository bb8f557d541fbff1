package process

import (
	"fmt"
	"time"
)

// IssueSeverity ranks a health issue.
type IssueSeverity string

const (
	SeverityWarning  IssueSeverity = "warning"
	SeverityCritical IssueSeverity = "critical"
)

// Issue describes one problem found during health assessment.
type Issue struct {
	Severity    IssueSeverity `json:"severity"`
	Type        string        `json:"type"`
	Description string        `json:"description"`
	Timestamp   time.Time     `json:"timestamp"`
	Resolved    bool          `json:"resolved"`
}

// HealthReport is the outcome of assessing one process. Reports are
// recomputed fresh on every sweep, never persisted incrementally.
type HealthReport struct {
	AgentID      string         `json:"agent_id"`
	PID          string         `json:"pid"`
	Status       HealthState    `json:"status"`
	Metrics      map[string]any `json:"metrics,omitempty"`
	Issues       []Issue        `json:"issues,omitempty"`
	LastReported time.Time      `json:"last_reported"`
}

// assess computes the health of one process at the given instant.
//
// Inactivity beyond cfg.UnresponsiveAfter is unresponsive; inactivity of at
// least cfg.DegradedAfter (inclusive lower bound) is degraded; anything
// less is healthy. Independently, a restart count above 70% of the restart
// budget floors the status at degraded and attaches a frequent_restarts
// issue.
func assess(p *Info, cfg Config, now time.Time) HealthReport {
	elapsed := now.Sub(p.LastActivity)

	report := HealthReport{
		AgentID:      p.AgentID,
		PID:          p.PID,
		Status:       HealthHealthy,
		LastReported: now,
		Metrics: map[string]any{
			"inactive_for":  elapsed.String(),
			"restart_count": p.RestartCount,
		},
	}

	switch {
	case elapsed > cfg.UnresponsiveAfter:
		report.Status = HealthUnresponsive
		report.Issues = append(report.Issues, Issue{
			Severity:    SeverityCritical,
			Type:        "unresponsive",
			Description: fmt.Sprintf("no activity for %s", elapsed.Round(time.Second)),
			Timestamp:   now,
		})
	case elapsed >= cfg.DegradedAfter:
		report.Status = HealthDegraded
		report.Issues = append(report.Issues, Issue{
			Severity:    SeverityWarning,
			Type:        "slow_activity",
			Description: fmt.Sprintf("no activity for %s", elapsed.Round(time.Second)),
			Timestamp:   now,
		})
	}

	if p.MaxRestarts > 0 && float64(p.RestartCount) > 0.7*float64(p.MaxRestarts) {
		if report.Status == HealthHealthy {
			report.Status = HealthDegraded
		}
		report.Issues = append(report.Issues, Issue{
			Severity:    SeverityWarning,
			Type:        "frequent_restarts",
			Description: fmt.Sprintf("%d of %d restarts used", p.RestartCount, p.MaxRestarts),
			Timestamp:   now,
		})
	}

	return report
}
