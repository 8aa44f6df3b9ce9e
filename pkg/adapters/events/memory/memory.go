package memory

import (
	"context"
	"sync"

	"github.com/aescanero/predictor/pkg/ports"
)

type subscription struct {
	id      uint64
	handler ports.EventHandler
}

// InMemoryEventBus implements EventBus using in-process handlers
type InMemoryEventBus struct {
	subscribers map[string][]subscription
	nextID      uint64
	mu          sync.RWMutex
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make(map[string][]subscription),
	}
}

// Publish publishes an event to all subscribers of a topic
func (e *InMemoryEventBus) Publish(ctx context.Context, topic string, event ports.Event) error {
	e.mu.RLock()
	subs := make([]subscription, len(e.subscribers[topic]))
	copy(subs, e.subscribers[topic])
	e.mu.RUnlock()

	// Publish never blocks on a subscriber
	for _, sub := range subs {
		go func(h ports.EventHandler) {
			_ = h(ctx, event)
		}(sub.handler)
	}

	return nil
}

// Subscribe subscribes to events on a specific topic until ctx is done
func (e *InMemoryEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.subscribers[topic] = append(e.subscribers[topic], subscription{id: id, handler: handler})
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.unsubscribe(topic, id)
	}()

	return nil
}

// Unsubscribe removes all subscriptions from a topic
func (e *InMemoryEventBus) Unsubscribe(ctx context.Context, topic string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.subscribers, topic)
	return nil
}

// Close drops every subscriber
func (e *InMemoryEventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.subscribers = make(map[string][]subscription)
	return nil
}

// SubscriberCount returns the number of live subscriptions on a topic
func (e *InMemoryEventBus) SubscriberCount(topic string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.subscribers[topic])
}

func (e *InMemoryEventBus) unsubscribe(topic string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.subscribers[topic]
	for i, s := range subs {
		if s.id == id {
			e.subscribers[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(e.subscribers[topic]) == 0 {
		delete(e.subscribers, topic)
	}
}
