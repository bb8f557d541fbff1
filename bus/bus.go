package bus

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/eduflow/eduflow/types"
)

// AllEvents subscribes a handler to every event type.
const AllEvents types.EventType = "*"

// subscriptionCounter generates unique subscription ids; an atomic counter
// avoids collisions under concurrent Subscribe calls.
var subscriptionCounter int64

// Handler consumes a published system event.
type Handler func(types.SystemEvent)

// Bus is the system event bus interface.
type Bus interface {
	Publish(event types.SystemEvent)
	Subscribe(eventType types.EventType, handler Handler) string
	Unsubscribe(subscriptionID string)
	Stop()
}

// EventBus is the default channel-backed Bus implementation.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[types.EventType]map[string]Handler
	events   chan types.SystemEvent
	done     chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

// New creates an event bus and starts its dispatch loop.
func New(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &EventBus{
		handlers: make(map[types.EventType]map[string]Handler),
		events:   make(chan types.SystemEvent, 256),
		done:     make(chan struct{}),
		logger:   logger.With(zap.String("component", "event_bus")),
	}
	go b.dispatch()
	return b
}

// Publish enqueues an event for asynchronous delivery. Events are dropped
// when the buffer is full or the bus is stopped.
func (b *EventBus) Publish(event types.SystemEvent) {
	select {
	case b.events <- event:
	case <-b.done:
	default:
		b.logger.Warn("event buffer full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("source", event.Source),
		)
	}
}

// Subscribe registers a handler for the given event type and returns a
// subscription id for later Unsubscribe. Use AllEvents to receive every
// published event.
func (b *EventBus) Subscribe(eventType types.EventType, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]Handler)
	}

	id := fmt.Sprintf("%s-%d", eventType, atomic.AddInt64(&subscriptionCounter, 1))
	b.handlers[eventType][id] = handler
	return id
}

// Unsubscribe removes a subscription by id.
func (b *EventBus) Unsubscribe(subscriptionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, handlers := range b.handlers {
		if _, ok := handlers[subscriptionID]; ok {
			delete(handlers, subscriptionID)
			if len(handlers) == 0 {
				delete(b.handlers, eventType)
			}
			return
		}
	}
}

// dispatch delivers queued events to matching handlers.
func (b *EventBus) dispatch() {
	for {
		select {
		case event := <-b.events:
			b.mu.RLock()
			handlers := make([]Handler, 0, len(b.handlers[event.Type])+len(b.handlers[AllEvents]))
			for _, h := range b.handlers[event.Type] {
				handlers = append(handlers, h)
			}
			for _, h := range b.handlers[AllEvents] {
				handlers = append(handlers, h)
			}
			b.mu.RUnlock()

			for _, handler := range handlers {
				h := handler
				go func() {
					defer func() {
						if r := recover(); r != nil {
							b.logger.Error("event handler panicked", zap.Any("recover", r))
						}
					}()
					h(event)
				}()
			}
		case <-b.done:
			return
		}
	}
}

// Stop shuts down the dispatch loop. Safe to call more than once.
func (b *EventBus) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
	})
}
