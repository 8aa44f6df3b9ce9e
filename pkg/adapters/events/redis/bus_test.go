package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/predictor/pkg/ports"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const waitFor = 5 * time.Second

func newTestBus(t *testing.T) (*StreamsEventBus, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bus, err := NewStreamsEventBus(client, "predictor", "test-consumer", 0, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	return bus, client
}

type recorder struct {
	mu     sync.Mutex
	events []ports.Event
}

func (r *recorder) handle(ctx context.Context, event ports.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func groupNames(t *testing.T, bus *StreamsEventBus, topic string) []string {
	t.Helper()

	bus.mu.Lock()
	defer bus.mu.Unlock()
	names := make([]string, 0, len(bus.subs[topic]))
	for name := range bus.subs[topic] {
		names = append(names, name)
	}
	return names
}

func TestPublishAppendsToStream(t *testing.T) {
	bus, client := newTestBus(t)
	ctx := context.Background()

	require.NoError(t, bus.Publish(ctx, ports.TopicPredictionEvents, ports.Event{
		ID:   "evt-1",
		Type: ports.EventTypePredictionServed,
	}))

	messages, err := client.XRange(ctx, getStreamKey(ports.TopicPredictionEvents), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, messages, 1)

	event, err := decodeEvent(messages[0])
	require.NoError(t, err)
	assert.Equal(t, "evt-1", event.ID)
	assert.Equal(t, ports.EventTypePredictionServed, event.Type)
}

func TestEverySubscriberReceivesEveryEvent(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b := &recorder{}, &recorder{}
	require.NoError(t, bus.Subscribe(ctx, ports.TopicPredictionEvents, a.handle))
	require.NoError(t, bus.Subscribe(ctx, ports.TopicPredictionEvents, b.handle))
	assert.Len(t, groupNames(t, bus, ports.TopicPredictionEvents), 2)

	const published = 10
	for i := 0; i < published; i++ {
		require.NoError(t, bus.Publish(ctx, ports.TopicPredictionEvents, ports.Event{ID: fmt.Sprintf("evt-%d", i)}))
	}

	assert.Eventually(t, func() bool {
		return a.count() == published && b.count() == published
	}, waitFor, 20*time.Millisecond)
}

func TestHandledMessagesAreAcknowledged(t *testing.T) {
	bus, client := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &recorder{}
	require.NoError(t, bus.Subscribe(ctx, ports.TopicStatusEvents, r.handle))
	group := groupNames(t, bus, ports.TopicStatusEvents)[0]

	require.NoError(t, bus.Publish(ctx, ports.TopicStatusEvents, ports.Event{ID: "evt-1"}))
	require.Eventually(t, func() bool { return r.count() == 1 }, waitFor, 20*time.Millisecond)

	assert.Eventually(t, func() bool {
		pending, err := client.XPending(ctx, getStreamKey(ports.TopicStatusEvents), group).Result()
		return err == nil && pending.Count == 0
	}, waitFor, 20*time.Millisecond)
}

func TestFailedMessagesStayPending(t *testing.T) {
	bus, client := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx, ports.TopicStatusEvents, func(ctx context.Context, event ports.Event) error {
		return errors.New("handler failed")
	}))
	group := groupNames(t, bus, ports.TopicStatusEvents)[0]

	require.NoError(t, bus.Publish(ctx, ports.TopicStatusEvents, ports.Event{ID: "evt-1"}))

	assert.Eventually(t, func() bool {
		pending, err := client.XPending(ctx, getStreamKey(ports.TopicStatusEvents), group).Result()
		return err == nil && pending.Count == 1
	}, waitFor, 20*time.Millisecond)
}

func TestMalformedMessagesAreDropped(t *testing.T) {
	bus, client := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &recorder{}
	require.NoError(t, bus.Subscribe(ctx, ports.TopicStatusEvents, r.handle))
	group := groupNames(t, bus, ports.TopicStatusEvents)[0]
	streamKey := getStreamKey(ports.TopicStatusEvents)

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{"data": "{not json"},
	}).Err())
	require.NoError(t, bus.Publish(ctx, ports.TopicStatusEvents, ports.Event{ID: "evt-ok"}))

	require.Eventually(t, func() bool { return r.count() == 1 }, waitFor, 20*time.Millisecond)
	assert.Eventually(t, func() bool {
		pending, err := client.XPending(ctx, streamKey, group).Result()
		return err == nil && pending.Count == 0
	}, waitFor, 20*time.Millisecond)
}

func TestSubscribeToleratesExistingGroup(t *testing.T) {
	bus, client := newTestBus(t)
	bus.newGroupID = func() string { return "fixed" }
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	streamKey := getStreamKey(ports.TopicStatusEvents)
	require.NoError(t, client.XGroupCreateMkStream(ctx, streamKey, "predictor:fixed", "$").Err())

	r := &recorder{}
	require.NoError(t, bus.Subscribe(ctx, ports.TopicStatusEvents, r.handle))

	require.NoError(t, bus.Publish(ctx, ports.TopicStatusEvents, ports.Event{ID: "evt-1"}))
	assert.Eventually(t, func() bool { return r.count() == 1 }, waitFor, 20*time.Millisecond)
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	bus, client := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, bus.Subscribe(ctx, ports.TopicPredictionEvents, (&recorder{}).handle))
	require.Equal(t, 1, bus.subscriptionCount(ports.TopicPredictionEvents))
	group := groupNames(t, bus, ports.TopicPredictionEvents)[0]

	cancel()

	assert.Eventually(t, func() bool {
		return bus.subscriptionCount(ports.TopicPredictionEvents) == 0
	}, waitFor, 20*time.Millisecond)
	assert.Eventually(t, func() bool {
		// Creating the group again only succeeds once it has been destroyed
		err := client.XGroupCreate(context.Background(), getStreamKey(ports.TopicPredictionEvents), group, "$").Err()
		return err == nil
	}, waitFor, 20*time.Millisecond)
}

func TestUnsubscribeEndsTopicSubscriptions(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx, ports.TopicPredictionEvents, (&recorder{}).handle))
	require.NoError(t, bus.Subscribe(ctx, ports.TopicPredictionEvents, (&recorder{}).handle))
	require.NoError(t, bus.Subscribe(ctx, ports.TopicStatusEvents, (&recorder{}).handle))

	require.NoError(t, bus.Unsubscribe(ctx, ports.TopicPredictionEvents))

	assert.Eventually(t, func() bool {
		return bus.subscriptionCount(ports.TopicPredictionEvents) == 0
	}, waitFor, 20*time.Millisecond)
	assert.Equal(t, 1, bus.subscriptionCount(ports.TopicStatusEvents))
}

func TestCloseWaitsForReaders(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx := context.Background()

	require.NoError(t, bus.Subscribe(ctx, ports.TopicPredictionEvents, (&recorder{}).handle))
	require.NoError(t, bus.Subscribe(ctx, ports.TopicStatusEvents, (&recorder{}).handle))

	require.NoError(t, bus.Close())
	assert.Equal(t, 0, bus.subscriptionCount(ports.TopicPredictionEvents))
	assert.Equal(t, 0, bus.subscriptionCount(ports.TopicStatusEvents))
}
