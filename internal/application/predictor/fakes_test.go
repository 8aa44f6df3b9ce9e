package predictor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aescanero/predictor/pkg/ports"
)

type published struct {
	topic string
	event ports.Event
}

type fakeBus struct {
	mu     sync.Mutex
	events []published
	fail   bool
}

func (b *fakeBus) Publish(ctx context.Context, topic string, event ports.Event) error {
	if b.fail {
		return errors.New("bus unavailable")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{topic: topic, event: event})
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	return nil
}

func (b *fakeBus) Unsubscribe(ctx context.Context, topic string) error { return nil }

func (b *fakeBus) Close() error { return nil }

func (b *fakeBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func (b *fakeBus) last() published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events[len(b.events)-1]
}

type fakeMetrics struct {
	mu          sync.Mutex
	predictions int
	up          bool
	published   map[string]int
	failed      map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{published: map[string]int{}, failed: map[string]int{}}
}

func (m *fakeMetrics) IncPredictionsServed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *fakeMetrics) SetUp(up bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.up = up
}

func (m *fakeMetrics) RecordEventPublished(topic string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.failed[topic]++
		return
	}
	m.published[topic]++
}

func (m *fakeMetrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {}

func (m *fakeMetrics) isUp() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.up
}
