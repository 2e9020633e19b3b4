package memory

import (
	"context"
	"sync"

	"github.com/aescanero/scriptflow/pkg/domain"
	"github.com/aescanero/scriptflow/pkg/ports"
)

// InMemoryEventBus implements EventBus using in-process handlers.
// Handlers run synchronously in publish order and must not block.
type InMemoryEventBus struct {
	subscribers map[string]map[uint64]ports.EventHandler
	nextID      uint64
	mu          sync.RWMutex
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make(map[string]map[uint64]ports.EventHandler),
	}
}

// Publish delivers an event to every subscriber of a topic
func (e *InMemoryEventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	e.mu.RLock()
	handlers := make([]ports.EventHandler, 0, len(e.subscribers[topic]))
	for _, h := range e.subscribers[topic] {
		handlers = append(handlers, h)
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		// handler errors belong to the subscriber
		_ = h(ctx, event)
	}

	return nil
}

// Subscribe registers handler until ctx is done
func (e *InMemoryEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	if e.subscribers[topic] == nil {
		e.subscribers[topic] = make(map[uint64]ports.EventHandler)
	}
	e.subscribers[topic][id] = handler
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.unsubscribe(topic, id)
	}()

	return nil
}

// Close drops all subscribers
func (e *InMemoryEventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.subscribers = make(map[string]map[uint64]ports.EventHandler)
	return nil
}

// subscriberCount returns the number of handlers on a topic
func (e *InMemoryEventBus) subscriberCount(topic string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.subscribers[topic])
}

func (e *InMemoryEventBus) unsubscribe(topic string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.subscribers[topic], id)
	if len(e.subscribers[topic]) == 0 {
		delete(e.subscribers, topic)
	}
}
