package process

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eduflow/eduflow/bus"
	"github.com/eduflow/eduflow/internal/metrics"
	"github.com/eduflow/eduflow/types"
)

// DefaultAgentID is the manager's addressing identity on the event bus.
const DefaultAgentID = "process-manager"

// Config tunes the lifecycle manager.
type Config struct {
	HealthSweepInterval   time.Duration
	MaxRestarts           int
	RestartSettleDelay    time.Duration
	DegradedAfter         time.Duration
	UnresponsiveAfter     time.Duration
	AutoRestartsPerMinute int
}

// DefaultConfig returns the default lifecycle configuration.
func DefaultConfig() Config {
	return Config{
		HealthSweepInterval:   30 * time.Second,
		MaxRestarts:           5,
		RestartSettleDelay:    time.Second,
		DegradedAfter:         time.Minute,
		UnresponsiveAfter:     5 * time.Minute,
		AutoRestartsPerMinute: 6,
	}
}

// Manager owns the tracked process records and their state machine. All
// collaborators are constructor-injected; independent managers can coexist
// in tests.
type Manager struct {
	cfg       Config
	resources *ResourceManager
	bus       bus.Bus
	logger    *zap.Logger
	metrics   *metrics.Collector
	clock     func() time.Time
	limiter   *rate.Limiter

	mu        sync.RWMutex
	processes map[string]*Info

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithBus sets the system event bus.
func WithBus(b bus.Bus) ManagerOption {
	return func(m *Manager) { m.bus = b }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) ManagerOption {
	return func(m *Manager) { m.metrics = c }
}

// WithClock injects the time source, for tests.
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) { m.clock = clock }
}

// NewManager creates a lifecycle manager over the given resource manager.
func NewManager(cfg Config, resources *ResourceManager, opts ...ManagerOption) *Manager {
	perMinute := cfg.AutoRestartsPerMinute
	if perMinute <= 0 {
		perMinute = 6
	}
	m := &Manager{
		cfg:       cfg,
		resources: resources,
		logger:    zap.NewNop(),
		clock:     time.Now,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		processes: make(map[string]*Info),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("component", "process_manager"))
	return m
}

// Spawn allocates a pid, optionally requests resources, links the process
// into its parent's child list, and transitions it to running. A resource
// allocation failure is fatal to the spawn and propagates to the caller.
func (m *Manager) Spawn(ctx context.Context, agentID string, cfg SpawnConfig) (*Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var parent *Info
	if cfg.ParentPID != "" {
		var ok bool
		parent, ok = m.processes[cfg.ParentPID]
		if !ok {
			return nil, types.NewErrorf(types.ErrProcessNotFound,
				"parent process %s not found", cfg.ParentPID)
		}
	}

	now := m.clock()
	maxRestarts := cfg.MaxRestarts
	if maxRestarts <= 0 {
		maxRestarts = m.cfg.MaxRestarts
	}
	priority := cfg.Priority
	if priority == "" {
		priority = types.PriorityMedium
	}

	p := &Info{
		PID:          uuid.NewString(),
		AgentID:      agentID,
		Name:         cfg.Name,
		Status:       StatusStarting,
		Priority:     priority,
		ParentPID:    cfg.ParentPID,
		StartTime:    now,
		LastActivity: now,
		Health:       HealthHealthy,
		MaxRestarts:  maxRestarts,
	}

	if cfg.Resources != nil {
		alloc, err := m.resources.Request(p.PID, *cfg.Resources, nil)
		if err != nil {
			return nil, fmt.Errorf("spawn aborted for agent %s: %w", agentID, err)
		}
		p.Allocations = append(p.Allocations, alloc.ID)
	}

	if parent != nil {
		parent.Children = append(parent.Children, p.PID)
	}
	m.processes[p.PID] = p
	m.transitionLocked(p, StatusRunning)

	m.logger.Info("process started",
		zap.String("pid", p.PID),
		zap.String("agent_id", agentID),
		zap.String("name", cfg.Name),
	)
	m.emit(types.EventProcessStarted, map[string]any{
		"pid":     p.PID,
		"agentId": agentID,
	}, types.PriorityMedium)

	return p.clone(), nil
}

// Terminate stops a process after recursively terminating every transitive
// descendant (post-order), releasing all held resource allocations and
// unlinking the record from its parent.
func (m *Manager) Terminate(pid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.processes[pid]; !ok {
		return types.NewErrorf(types.ErrProcessNotFound, "process %s not found", pid)
	}
	m.terminateLocked(pid)
	return nil
}

func (m *Manager) terminateLocked(pid string) {
	p, ok := m.processes[pid]
	if !ok || p.Status == StatusStopped {
		return
	}

	// Children first: the parent only stops once its subtree is stopped.
	for _, child := range append([]string(nil), p.Children...) {
		m.terminateLocked(child)
	}
	p.Children = nil

	m.transitionLocked(p, StatusStopping)
	m.resources.ReleaseAll(pid)
	p.Allocations = nil

	if p.ParentPID != "" {
		if parent, ok := m.processes[p.ParentPID]; ok {
			parent.Children = removeString(parent.Children, pid)
		}
		p.ParentPID = ""
	}

	m.transitionLocked(p, StatusStopped)
	m.logger.Info("process terminated", zap.String("pid", pid))
	m.emit(types.EventProcessTerminated, map[string]any{"pid": pid}, types.PriorityMedium)
}

// Pause suspends a running process. Illegal from any other state.
func (m *Manager) Pause(pid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.processes[pid]
	if !ok {
		return types.NewErrorf(types.ErrProcessNotFound, "process %s not found", pid)
	}
	if p.Status != StatusRunning {
		return types.NewErrorf(types.ErrInvalidTransition,
			"cannot pause process in status %s", p.Status)
	}

	m.transitionLocked(p, StatusPaused)
	m.emit(types.EventProcessPaused, map[string]any{"pid": pid}, types.PriorityMedium)
	return nil
}

// Resume continues a paused process. Illegal from any other state.
func (m *Manager) Resume(pid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.processes[pid]
	if !ok {
		return types.NewErrorf(types.ErrProcessNotFound, "process %s not found", pid)
	}
	if p.Status != StatusPaused {
		return types.NewErrorf(types.ErrInvalidTransition,
			"cannot resume process in status %s", p.Status)
	}

	m.transitionLocked(p, StatusRunning)
	m.emit(types.EventProcessResumed, map[string]any{"pid": pid}, types.PriorityMedium)
	return nil
}

// Restart bounces a process through stopping → running after a brief
// settle delay. The restart budget is enforced before any transition: once
// RestartCount reaches MaxRestarts the call fails with
// RESTART_LIMIT_EXCEEDED and the record is unchanged.
func (m *Manager) Restart(ctx context.Context, pid string) error {
	m.mu.Lock()
	p, ok := m.processes[pid]
	if !ok {
		m.mu.Unlock()
		return types.NewErrorf(types.ErrProcessNotFound, "process %s not found", pid)
	}
	if p.RestartCount >= p.MaxRestarts {
		count := p.RestartCount
		m.mu.Unlock()
		return types.NewErrorf(types.ErrRestartLimitExceeded,
			"process %s reached restart limit (%d)", pid, count)
	}
	if p.Status == StatusStopping {
		status := p.Status
		m.mu.Unlock()
		return types.NewErrorf(types.ErrInvalidTransition,
			"cannot restart process in status %s", status)
	}
	m.transitionLocked(p, StatusStopping)
	m.mu.Unlock()

	// Settle before coming back up.
	select {
	case <-time.After(m.cfg.RestartSettleDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	p, ok = m.processes[pid]
	if !ok {
		m.mu.Unlock()
		return types.NewErrorf(types.ErrProcessNotFound, "process %s not found", pid)
	}
	m.transitionLocked(p, StatusRunning)
	p.RestartCount++
	count := p.RestartCount
	m.mu.Unlock()

	m.logger.Info("process restarted",
		zap.String("pid", pid),
		zap.Int("restart_count", count),
	)
	if m.metrics != nil {
		m.metrics.ProcessRestart()
	}
	// Elevated priority: repeated restarts are themselves a signal worth
	// surfacing.
	m.emit(types.EventProcessRestarted, map[string]any{
		"pid":          pid,
		"restartCount": count,
	}, types.PriorityHigh)
	return nil
}

// Touch records activity for a process, resetting its inactivity clock.
func (m *Manager) Touch(pid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.processes[pid]
	if !ok {
		return types.NewErrorf(types.ErrProcessNotFound, "process %s not found", pid)
	}
	p.LastActivity = m.clock()
	return nil
}

// Get returns a copy of a process record.
func (m *Manager) Get(pid string) (*Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.processes[pid]
	if !ok {
		return nil, false
	}
	return p.clone(), true
}

// List returns copies of all tracked process records.
func (m *Manager) List() []*Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Info, 0, len(m.processes))
	for _, p := range m.processes {
		out = append(out, p.clone())
	}
	return out
}

// Remove drops a stopped or crashed record from the tracked set.
func (m *Manager) Remove(pid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.processes[pid]
	if !ok {
		return types.NewErrorf(types.ErrProcessNotFound, "process %s not found", pid)
	}
	if p.Status != StatusStopped && p.Status != StatusCrashed {
		return types.NewErrorf(types.ErrInvalidTransition,
			"cannot remove process in status %s", p.Status)
	}
	delete(m.processes, pid)
	return nil
}

// Health recomputes the report for one process.
func (m *Manager) Health(pid string) (HealthReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.processes[pid]
	if !ok {
		return HealthReport{}, types.NewErrorf(types.ErrProcessNotFound,
			"process %s not found", pid)
	}
	return assess(p, m.cfg, m.clock()), nil
}

// transitionLocked applies a state transition and stamps LastActivity.
// The caller holds the lock.
func (m *Manager) transitionLocked(p *Info, to Status) {
	from := p.Status
	p.Status = to
	p.LastActivity = m.clock()
	if m.metrics != nil {
		m.metrics.ProcessTransition(string(from) + "->" + string(to))
	}
}

func (m *Manager) emit(eventType types.EventType, data map[string]any, priority types.Priority) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(types.NewSystemEvent(uuid.NewString(), eventType, DefaultAgentID, data).
		WithPriority(priority))
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
