package workflow

import (
	"context"
	"sync"

	"github.com/eduflow/eduflow/types"
)

// Capability is a named skill a handler advertises; steps declare the
// capability they require and the registry routes dispatch accordingly.
type Capability string

// StepRequest carries the payload of a single step dispatch.
type StepRequest struct {
	WorkflowID string
	StepID     string
	Action     string
	Input      map[string]any
}

// Handler executes dispatched steps for a capability. Handle must respect
// ctx cancellation; a dispatch whose handler does not reply before the
// step timeout is treated as timed out.
type Handler interface {
	Handle(ctx context.Context, req StepRequest) (map[string]any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req StepRequest) (map[string]any, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, req StepRequest) (map[string]any, error) {
	return f(ctx, req)
}

// HandlerRegistry maps capabilities to handlers. Binding is late: handlers
// may be registered or replaced after templates are defined, and resolution
// happens at dispatch time, not at template registration.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[Capability]Handler
}

// NewHandlerRegistry creates an empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[Capability]Handler)}
}

// Register binds a handler to a capability, replacing any previous binding.
func (r *HandlerRegistry) Register(capability Capability, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[capability] = handler
}

// RegisterFunc binds a function handler to a capability.
func (r *HandlerRegistry) RegisterFunc(capability Capability, fn HandlerFunc) {
	r.Register(capability, fn)
}

// Resolve returns the handler for a capability, or a HANDLER_NOT_FOUND
// error naming the capability.
func (r *HandlerRegistry) Resolve(capability Capability) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[capability]
	if !ok {
		return nil, types.NewErrorf(types.ErrHandlerNotFound,
			"no handler registered for capability %s", capability)
	}
	return h, nil
}

// Capabilities returns the currently registered capabilities.
func (r *HandlerRegistry) Capabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	caps := make([]Capability, 0, len(r.handlers))
	for c := range r.handlers {
		caps = append(caps, c)
	}
	return caps
}
