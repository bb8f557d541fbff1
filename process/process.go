package process

import (
	"time"

	"github.com/eduflow/eduflow/types"
)

// Status represents the lifecycle state of a tracked process.
type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusPaused   Status = "paused"
	StatusStopping Status = "stopping"
	StatusStopped  Status = "stopped"
	StatusCrashed  Status = "crashed"
)

// HealthState classifies a process's responsiveness and stability.
type HealthState string

const (
	HealthHealthy      HealthState = "healthy"
	HealthDegraded     HealthState = "degraded"
	HealthCritical     HealthState = "critical"
	HealthUnresponsive HealthState = "unresponsive"
)

// Info is the tracked lifecycle record for one process. LastActivity is
// updated on every state transition. Parent/child pids form a tree.
type Info struct {
	PID          string         `json:"pid"`
	AgentID      string         `json:"agent_id"`
	Name         string         `json:"name"`
	Status       Status         `json:"status"`
	Priority     types.Priority `json:"priority"`
	ParentPID    string         `json:"parent_pid,omitempty"`
	Children     []string       `json:"children,omitempty"`
	StartTime    time.Time      `json:"start_time"`
	LastActivity time.Time      `json:"last_activity"`
	Allocations  []string       `json:"allocations,omitempty"`
	Health       HealthState    `json:"health"`
	RestartCount int            `json:"restart_count"`
	MaxRestarts  int            `json:"max_restarts"`
}

// clone returns a copy safe to hand out without holding the manager lock.
func (p *Info) clone() *Info {
	cp := *p
	cp.Children = append([]string(nil), p.Children...)
	cp.Allocations = append([]string(nil), p.Allocations...)
	return &cp
}

// SpawnConfig configures a new process.
type SpawnConfig struct {
	Name        string         `json:"name"`
	Priority    types.Priority `json:"priority"`
	ParentPID   string         `json:"parent_pid,omitempty"`
	Resources   *Spec          `json:"resources,omitempty"`
	MaxRestarts int            `json:"max_restarts,omitempty"`
}
