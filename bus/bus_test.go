package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduflow/eduflow/types"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestEventBus_PublishSubscribe(t *testing.T) {
	b := New(zap.NewNop())
	defer b.Stop()

	var mu sync.Mutex
	var got []types.SystemEvent
	b.Subscribe(types.EventProcessStarted, func(e types.SystemEvent) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	b.Publish(types.NewSystemEvent("ev-1", types.EventProcessStarted, "process-manager", nil))
	b.Publish(types.NewSystemEvent("ev-2", types.EventProcessPaused, "process-manager", nil))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "ev-1", got[0].ID)
}

func TestEventBus_WildcardSubscription(t *testing.T) {
	b := New(zap.NewNop())
	defer b.Stop()

	var count int64
	var mu sync.Mutex
	b.Subscribe(AllEvents, func(e types.SystemEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	b.Publish(types.NewSystemEvent("ev-1", types.EventWorkflowCreated, "orchestrator", nil))
	b.Publish(types.NewSystemEvent("ev-2", types.EventProcessRestarted, "process-manager", nil))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 2
	})
}

func TestEventBus_Unsubscribe(t *testing.T) {
	b := New(zap.NewNop())
	defer b.Stop()

	var mu sync.Mutex
	received := 0
	id := b.Subscribe(types.EventWorkflowFailed, func(e types.SystemEvent) {
		mu.Lock()
		received++
		mu.Unlock()
	})

	b.Publish(types.NewSystemEvent("ev-1", types.EventWorkflowFailed, "orchestrator", nil))
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received == 1
	})

	b.Unsubscribe(id)
	b.Publish(types.NewSystemEvent("ev-2", types.EventWorkflowFailed, "orchestrator", nil))

	// Give the dispatch loop a beat; the count must not move.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, received)
}

func TestEventBus_StopIsIdempotent(t *testing.T) {
	b := New(zap.NewNop())
	b.Stop()
	b.Stop()
	// Publishing after stop must not panic.
	b.Publish(types.NewSystemEvent("ev-1", types.EventWorkflowCreated, "orchestrator", nil))
}
