package process

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduflow/eduflow/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.HealthSweepInterval = 10 * time.Millisecond
	cfg.RestartSettleDelay = time.Millisecond
	cfg.MaxRestarts = 3
	cfg.AutoRestartsPerMinute = 60
	return cfg
}

func newTestManager(t *testing.T, capacity Spec) (*Manager, *ResourceManager, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	rm := NewResourceManager(capacity, zap.NewNop(), nil)
	m := NewManager(testConfig(), rm,
		WithLogger(zap.NewNop()),
		WithClock(clock.Now),
	)
	return m, rm, clock
}

// --- Spawn ---

func TestSpawn_Running(t *testing.T) {
	m, _, clock := newTestManager(t, Spec{})

	p, err := m.Spawn(context.Background(), "tutor-agent", SpawnConfig{Name: "tutor"})
	require.NoError(t, err)

	assert.NotEmpty(t, p.PID)
	assert.Equal(t, StatusRunning, p.Status)
	assert.Equal(t, types.PriorityMedium, p.Priority)
	assert.Equal(t, HealthHealthy, p.Health)
	assert.Equal(t, clock.Now(), p.StartTime)
	assert.Equal(t, 3, p.MaxRestarts)
}

func TestSpawn_UnknownParent(t *testing.T) {
	m, _, _ := newTestManager(t, Spec{})

	_, err := m.Spawn(context.Background(), "a", SpawnConfig{ParentPID: "missing"})
	require.Error(t, err)
	assert.Equal(t, types.ErrProcessNotFound, types.GetErrorCode(err))
}

func TestSpawn_LinksChildToParent(t *testing.T) {
	m, _, _ := newTestManager(t, Spec{})
	ctx := context.Background()

	parent, err := m.Spawn(ctx, "parent", SpawnConfig{Name: "parent"})
	require.NoError(t, err)
	child, err := m.Spawn(ctx, "child", SpawnConfig{Name: "child", ParentPID: parent.PID})
	require.NoError(t, err)

	got, ok := m.Get(parent.PID)
	require.True(t, ok)
	assert.Equal(t, []string{child.PID}, got.Children)
	assert.Equal(t, parent.PID, child.ParentPID)
}

func TestSpawn_ResourceFailureAbortsSpawn(t *testing.T) {
	m, rm, _ := newTestManager(t, Spec{MemoryMB: 64})

	_, err := m.Spawn(context.Background(), "hungry", SpawnConfig{
		Name:      "hungry",
		Resources: &Spec{MemoryMB: 128},
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrResourceAllocation, types.GetErrorCode(err))
	assert.Empty(t, m.List())
	assert.Zero(t, rm.Active())
}

// --- Terminate ---

func TestTerminate_PostOrderAndReleasesResources(t *testing.T) {
	m, rm, _ := newTestManager(t, Spec{MemoryMB: 1024})
	ctx := context.Background()
	res := &Spec{MemoryMB: 128}

	root, err := m.Spawn(ctx, "root", SpawnConfig{Name: "root", Resources: res})
	require.NoError(t, err)
	mid, err := m.Spawn(ctx, "mid", SpawnConfig{Name: "mid", ParentPID: root.PID, Resources: res})
	require.NoError(t, err)
	leaf, err := m.Spawn(ctx, "leaf", SpawnConfig{Name: "leaf", ParentPID: mid.PID, Resources: res})
	require.NoError(t, err)
	require.Equal(t, 3, rm.Active())

	require.NoError(t, m.Terminate(root.PID))

	for _, pid := range []string{root.PID, mid.PID, leaf.PID} {
		got, ok := m.Get(pid)
		require.True(t, ok, "terminated records stay visible")
		assert.Equal(t, StatusStopped, got.Status)
		assert.Empty(t, got.Children)
		assert.Empty(t, got.Allocations)
	}
	assert.Zero(t, rm.Active())
	assert.Equal(t, Spec{}, rm.Granted())
}

func TestTerminate_ChildUnlinksFromParent(t *testing.T) {
	m, _, _ := newTestManager(t, Spec{})
	ctx := context.Background()

	parent, err := m.Spawn(ctx, "parent", SpawnConfig{Name: "parent"})
	require.NoError(t, err)
	child, err := m.Spawn(ctx, "child", SpawnConfig{Name: "child", ParentPID: parent.PID})
	require.NoError(t, err)

	require.NoError(t, m.Terminate(child.PID))

	got, ok := m.Get(parent.PID)
	require.True(t, ok)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Empty(t, got.Children)
}

func TestTerminate_Unknown(t *testing.T) {
	m, _, _ := newTestManager(t, Spec{})

	err := m.Terminate("missing")
	require.Error(t, err)
	assert.Equal(t, types.ErrProcessNotFound, types.GetErrorCode(err))
}

// --- Pause / Resume ---

func TestPauseResume_Transitions(t *testing.T) {
	m, _, _ := newTestManager(t, Spec{})

	p, err := m.Spawn(context.Background(), "a", SpawnConfig{Name: "a"})
	require.NoError(t, err)

	require.NoError(t, m.Pause(p.PID))
	got, _ := m.Get(p.PID)
	assert.Equal(t, StatusPaused, got.Status)

	// Pausing a paused process is rejected and leaves the record unchanged.
	err = m.Pause(p.PID)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidTransition, types.GetErrorCode(err))
	got, _ = m.Get(p.PID)
	assert.Equal(t, StatusPaused, got.Status)

	require.NoError(t, m.Resume(p.PID))
	got, _ = m.Get(p.PID)
	assert.Equal(t, StatusRunning, got.Status)

	err = m.Resume(p.PID)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidTransition, types.GetErrorCode(err))
}

// --- Restart ---

func TestRestart_IncrementsCount(t *testing.T) {
	m, _, _ := newTestManager(t, Spec{})
	ctx := context.Background()

	p, err := m.Spawn(ctx, "a", SpawnConfig{Name: "a"})
	require.NoError(t, err)

	require.NoError(t, m.Restart(ctx, p.PID))

	got, _ := m.Get(p.PID)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, 1, got.RestartCount)
}

func TestRestart_LimitExceeded(t *testing.T) {
	m, _, _ := newTestManager(t, Spec{})
	ctx := context.Background()

	p, err := m.Spawn(ctx, "a", SpawnConfig{Name: "a", MaxRestarts: 2})
	require.NoError(t, err)

	require.NoError(t, m.Restart(ctx, p.PID))
	require.NoError(t, m.Restart(ctx, p.PID))

	err = m.Restart(ctx, p.PID)
	require.Error(t, err)
	assert.Equal(t, types.ErrRestartLimitExceeded, types.GetErrorCode(err))

	// The failed attempt must not consume budget or change state.
	got, _ := m.Get(p.PID)
	assert.Equal(t, 2, got.RestartCount)
	assert.Equal(t, StatusRunning, got.Status)
}

// --- Touch / Remove ---

func TestTouch_ResetsActivity(t *testing.T) {
	m, _, clock := newTestManager(t, Spec{})

	p, err := m.Spawn(context.Background(), "a", SpawnConfig{Name: "a"})
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	require.NoError(t, m.Touch(p.PID))

	report, err := m.Health(p.PID)
	require.NoError(t, err)
	assert.Equal(t, HealthHealthy, report.Status)
}

func TestRemove_OnlyTerminal(t *testing.T) {
	m, _, _ := newTestManager(t, Spec{})

	p, err := m.Spawn(context.Background(), "a", SpawnConfig{Name: "a"})
	require.NoError(t, err)

	err = m.Remove(p.PID)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidTransition, types.GetErrorCode(err))

	require.NoError(t, m.Terminate(p.PID))
	require.NoError(t, m.Remove(p.PID))

	_, ok := m.Get(p.PID)
	assert.False(t, ok)
}

// --- Sweep ---

func TestSweep_MarksUnresponsiveCrashedAndRestarts(t *testing.T) {
	m, _, clock := newTestManager(t, Spec{})
	ctx := context.Background()

	p, err := m.Spawn(ctx, "a", SpawnConfig{Name: "a"})
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	reports := m.Sweep(ctx)

	require.Len(t, reports, 1)
	assert.Equal(t, HealthUnresponsive, reports[0].Status)

	// The sweep auto-restarts the crashed process.
	got, _ := m.Get(p.PID)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, 1, got.RestartCount)
}

func TestSweep_SkipsStopped(t *testing.T) {
	m, _, clock := newTestManager(t, Spec{})
	ctx := context.Background()

	p, err := m.Spawn(ctx, "a", SpawnConfig{Name: "a"})
	require.NoError(t, err)
	require.NoError(t, m.Terminate(p.PID))

	clock.Advance(10 * time.Minute)
	reports := m.Sweep(ctx)
	assert.Empty(t, reports)

	got, _ := m.Get(p.PID)
	assert.Equal(t, StatusStopped, got.Status)
}

func TestSweep_EscalatesWhenRestartBudgetSpent(t *testing.T) {
	m, _, clock := newTestManager(t, Spec{})
	ctx := context.Background()

	p, err := m.Spawn(ctx, "a", SpawnConfig{Name: "a", MaxRestarts: 1})
	require.NoError(t, err)
	require.NoError(t, m.Restart(ctx, p.PID))

	clock.Advance(6 * time.Minute)
	m.Sweep(ctx)

	// Restart budget is exhausted so the process stays crashed.
	got, _ := m.Get(p.PID)
	assert.Equal(t, StatusCrashed, got.Status)
	assert.Equal(t, 1, got.RestartCount)
}
