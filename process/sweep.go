package process

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eduflow/eduflow/types"
)

// Start launches the periodic health sweep. It runs until Stop is called
// or the context is cancelled.
func (m *Manager) Start(ctx context.Context) {
	go m.sweepLoop(ctx)
}

// Stop halts the sweep loop and waits for it to exit. Idempotent.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	<-m.doneChan
}

func (m *Manager) sweepLoop(ctx context.Context) {
	defer close(m.doneChan)

	interval := m.cfg.HealthSweepInterval
	if interval <= 0 {
		interval = DefaultConfig().HealthSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("health sweep started", zap.Duration("interval", interval))

	for {
		select {
		case <-ticker.C:
			m.Sweep(ctx)
		case <-m.stopChan:
			m.logger.Info("health sweep stopped")
			return
		case <-ctx.Done():
			m.logger.Info("health sweep stopped", zap.Error(ctx.Err()))
			return
		}
	}
}

// Sweep assesses every live process once, updates recorded health, marks
// unresponsive processes as crashed and attempts a rate-limited automatic
// restart for them. It returns the reports produced during the pass.
func (m *Manager) Sweep(ctx context.Context) []HealthReport {
	now := m.clock()

	m.mu.Lock()
	reports := make([]HealthReport, 0, len(m.processes))
	counts := map[HealthState]int{
		HealthHealthy:      0,
		HealthDegraded:     0,
		HealthCritical:     0,
		HealthUnresponsive: 0,
	}
	var crashed []string
	for _, p := range m.processes {
		if p.Status == StatusStopped || p.Status == StatusStopping {
			continue
		}
		report := assess(p, m.cfg, now)
		p.Health = report.Status
		counts[report.Status]++
		if report.Status == HealthUnresponsive && p.Status == StatusRunning {
			m.transitionLocked(p, StatusCrashed)
			crashed = append(crashed, p.PID)
		}
		reports = append(reports, report)
	}
	m.mu.Unlock()

	if m.metrics != nil {
		for state, n := range counts {
			m.metrics.SetProcessHealth(string(state), float64(n))
		}
	}

	for _, pid := range crashed {
		m.recover(ctx, pid)
	}
	return reports
}

// recover attempts one automatic restart of a crashed process, subject to
// the global restart rate limit. A denied or failed attempt escalates
// instead of retrying.
func (m *Manager) recover(ctx context.Context, pid string) {
	if !m.limiter.Allow() {
		m.logger.Warn("auto restart rate limited", zap.String("pid", pid))
		m.escalate(pid, "restart rate limit reached")
		return
	}

	if err := m.Restart(ctx, pid); err != nil {
		m.logger.Error("auto restart failed",
			zap.String("pid", pid),
			zap.Error(err),
		)
		m.escalate(pid, err.Error())
		return
	}

	// The restarted process starts a fresh inactivity window.
	_ = m.Touch(pid)
}

func (m *Manager) escalate(pid string, reason string) {
	m.emit(types.EventProcessUnresponsive, map[string]any{
		"pid":    pid,
		"reason": reason,
	}, types.PriorityCritical)
}
