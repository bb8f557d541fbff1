package process

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduflow/eduflow/internal/metrics"
	"github.com/eduflow/eduflow/types"
)

// Spec quantifies a resource grant or consumption: memory, compute,
// storage, and network sub-grants. Zero fields request nothing.
type Spec struct {
	MemoryMB     int `json:"memory_mb,omitempty" yaml:"memory_mb"`
	ComputeUnits int `json:"compute_units,omitempty" yaml:"compute_units"`
	StorageMB    int `json:"storage_mb,omitempty" yaml:"storage_mb"`
	NetworkKbps  int `json:"network_kbps,omitempty" yaml:"network_kbps"`
}

func (s Spec) add(o Spec) Spec {
	return Spec{
		MemoryMB:     s.MemoryMB + o.MemoryMB,
		ComputeUnits: s.ComputeUnits + o.ComputeUnits,
		StorageMB:    s.StorageMB + o.StorageMB,
		NetworkKbps:  s.NetworkKbps + o.NetworkKbps,
	}
}

func (s Spec) sub(o Spec) Spec {
	return Spec{
		MemoryMB:     s.MemoryMB - o.MemoryMB,
		ComputeUnits: s.ComputeUnits - o.ComputeUnits,
		StorageMB:    s.StorageMB - o.StorageMB,
		NetworkKbps:  s.NetworkKbps - o.NetworkKbps,
	}
}

func (s Spec) fitsWithin(capacity Spec) bool {
	return s.MemoryMB <= capacity.MemoryMB &&
		s.ComputeUnits <= capacity.ComputeUnits &&
		s.StorageMB <= capacity.StorageMB &&
		s.NetworkKbps <= capacity.NetworkKbps
}

// Allocation is a granted resource handle. Allocations are released
// explicitly by id; they are never garbage-collected implicitly.
type Allocation struct {
	ID        string     `json:"id"`
	PID       string     `json:"pid"`
	Spec      Spec       `json:"spec"`
	Usage     Spec       `json:"usage"`
	GrantedAt time.Time  `json:"granted_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ResourceManager accounts for resource grants against a fixed capacity.
type ResourceManager struct {
	mu          sync.RWMutex
	capacity    Spec
	granted     Spec
	allocations map[string]*Allocation

	logger  *zap.Logger
	metrics *metrics.Collector
	clock   func() time.Time
}

// NewResourceManager creates a manager with the given total capacity.
func NewResourceManager(capacity Spec, logger *zap.Logger, collector *metrics.Collector) *ResourceManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceManager{
		capacity:    capacity,
		allocations: make(map[string]*Allocation),
		logger:      logger.With(zap.String("component", "resource_manager")),
		metrics:     collector,
		clock:       time.Now,
	}
}

// Request grants resources for a process, or fails with RESOURCE_ALLOCATION
// when the remaining capacity cannot cover the spec.
func (rm *ResourceManager) Request(pid string, spec Spec, expiresAt *time.Time) (*Allocation, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if !rm.granted.add(spec).fitsWithin(rm.capacity) {
		return nil, types.NewErrorf(types.ErrResourceAllocation,
			"insufficient capacity for process %s", pid).WithRetryable(true)
	}

	alloc := &Allocation{
		ID:        uuid.NewString(),
		PID:       pid,
		Spec:      spec,
		GrantedAt: rm.clock(),
		ExpiresAt: expiresAt,
	}
	rm.allocations[alloc.ID] = alloc
	rm.granted = rm.granted.add(spec)

	rm.logger.Debug("resources granted",
		zap.String("allocation_id", alloc.ID),
		zap.String("pid", pid),
		zap.Int("memory_mb", spec.MemoryMB),
		zap.Int("compute_units", spec.ComputeUnits),
	)
	if rm.metrics != nil {
		rm.metrics.AllocationGranted()
	}
	return alloc, nil
}

// Release frees an allocation by id.
func (rm *ResourceManager) Release(allocationID string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.releaseLocked(allocationID)
}

func (rm *ResourceManager) releaseLocked(allocationID string) error {
	alloc, ok := rm.allocations[allocationID]
	if !ok {
		return types.NewErrorf(types.ErrAllocationNotFound,
			"allocation %s not found", allocationID)
	}
	delete(rm.allocations, allocationID)
	rm.granted = rm.granted.sub(alloc.Spec)

	rm.logger.Debug("resources released",
		zap.String("allocation_id", allocationID),
		zap.String("pid", alloc.PID),
	)
	if rm.metrics != nil {
		rm.metrics.AllocationReleased()
	}
	return nil
}

// ReleaseAll frees every allocation held by a process.
func (rm *ResourceManager) ReleaseAll(pid string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for id, alloc := range rm.allocations {
		if alloc.PID == pid {
			_ = rm.releaseLocked(id)
		}
	}
}

// UpdateUsage records current consumption against an allocation.
func (rm *ResourceManager) UpdateUsage(allocationID string, usage Spec) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	alloc, ok := rm.allocations[allocationID]
	if !ok {
		return types.NewErrorf(types.ErrAllocationNotFound,
			"allocation %s not found", allocationID)
	}
	alloc.Usage = usage
	return nil
}

// Get returns an allocation by id.
func (rm *ResourceManager) Get(allocationID string) (*Allocation, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	alloc, ok := rm.allocations[allocationID]
	if !ok {
		return nil, false
	}
	cp := *alloc
	return &cp, true
}

// Granted returns the currently granted totals.
func (rm *ResourceManager) Granted() Spec {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.granted
}

// Active returns the number of live allocations.
func (rm *ResourceManager) Active() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.allocations)
}
