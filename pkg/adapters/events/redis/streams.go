package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aescanero/predictor/pkg/ports"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const streamPrefix = "predictor:events:"

// StreamsEventBus implements EventBus using Redis Streams.
//
// Every Subscribe call reads through its own consumer group, so each
// subscriber sees every event published after it subscribed. The group is
// destroyed when the subscription ends.
type StreamsEventBus struct {
	client       *redis.Client
	logger       *zap.Logger
	groupPrefix  string
	consumerName string
	maxLen       int64
	newGroupID   func() string

	mu   sync.Mutex
	subs map[string]map[string]context.CancelFunc // topic -> group -> cancel
	wg   sync.WaitGroup
}

// NewStreamsEventBus creates a new Redis Streams event bus.
// Streams are trimmed to roughly maxLen entries; zero disables trimming.
func NewStreamsEventBus(client *redis.Client, groupPrefix, consumerName string, maxLen int64, logger *zap.Logger) (*StreamsEventBus, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if groupPrefix == "" || consumerName == "" {
		return nil, fmt.Errorf("consumer group and consumer name are required")
	}

	return &StreamsEventBus{
		client:       client,
		logger:       logger,
		groupPrefix:  groupPrefix,
		consumerName: consumerName,
		maxLen:       maxLen,
		newGroupID:   uuid.NewString,
		subs:         make(map[string]map[string]context.CancelFunc),
	}, nil
}

// Publish appends an event to the topic's stream
func (e *StreamsEventBus) Publish(ctx context.Context, topic string, event ports.Event) error {
	streamKey := getStreamKey(topic)

	args, err := encodeEvent(streamKey, event, e.maxLen)
	if err != nil {
		return err
	}

	if _, err := e.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	e.logger.Debug("event published",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("stream", streamKey))

	return nil
}

// Subscribe reads the topic's stream through a dedicated consumer group
// until ctx is done or the topic is unsubscribed
func (e *StreamsEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	streamKey := getStreamKey(topic)
	group := fmt.Sprintf("%s:%s", e.groupPrefix, e.newGroupID())

	err := e.client.XGroupCreateMkStream(ctx, streamKey, group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	if e.subs[topic] == nil {
		e.subs[topic] = make(map[string]context.CancelFunc)
	}
	e.subs[topic][group] = cancel
	e.mu.Unlock()

	e.logger.Info("subscribed to event stream",
		zap.String("stream", streamKey),
		zap.String("consumer_group", group),
		zap.String("consumer", e.consumerName))

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.readStream(subCtx, streamKey, group, handler)
		e.release(topic, streamKey, group)
	}()

	return nil
}

func (e *StreamsEventBus) readStream(ctx context.Context, streamKey, group string, handler ports.EventHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := e.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: e.consumerName,
			Streams:  []string{streamKey, ">"},
			Count:    10,
			Block:    time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			e.logger.Error("failed to read from stream",
				zap.String("stream", streamKey),
				zap.String("consumer_group", group),
				zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				e.processMessage(ctx, streamKey, group, message, handler)
			}
		}
	}
}

func (e *StreamsEventBus) processMessage(ctx context.Context, streamKey, group string, message redis.XMessage, handler ports.EventHandler) {
	event, err := decodeEvent(message)
	if err != nil {
		e.logger.Error("dropping malformed message",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		e.ack(ctx, streamKey, group, message.ID)
		return
	}

	if err := handler(ctx, event); err != nil {
		e.logger.Error("handler error",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return
	}

	e.ack(ctx, streamKey, group, message.ID)
}

func (e *StreamsEventBus) ack(ctx context.Context, streamKey, group, messageID string) {
	if err := e.client.XAck(ctx, streamKey, group, messageID).Err(); err != nil {
		e.logger.Error("failed to acknowledge message",
			zap.String("stream", streamKey),
			zap.String("message_id", messageID),
			zap.Error(err))
	}
}

// release forgets a finished subscription and destroys its consumer group
func (e *StreamsEventBus) release(topic, streamKey, group string) {
	e.mu.Lock()
	if cancel, ok := e.subs[topic][group]; ok {
		cancel()
		delete(e.subs[topic], group)
		if len(e.subs[topic]) == 0 {
			delete(e.subs, topic)
		}
	}
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.client.XGroupDestroy(ctx, streamKey, group).Err(); err != nil {
		e.logger.Warn("failed to destroy consumer group",
			zap.String("stream", streamKey),
			zap.String("consumer_group", group),
			zap.Error(err))
	}
}

// Unsubscribe ends every subscription on topic
func (e *StreamsEventBus) Unsubscribe(ctx context.Context, topic string) error {
	e.mu.Lock()
	for _, cancel := range e.subs[topic] {
		cancel()
	}
	e.mu.Unlock()
	return nil
}

// Close ends all subscriptions and waits for their readers to exit.
// The Redis client is owned by the caller.
func (e *StreamsEventBus) Close() error {
	e.mu.Lock()
	for _, groups := range e.subs {
		for _, cancel := range groups {
			cancel()
		}
	}
	e.mu.Unlock()

	e.wg.Wait()
	return nil
}

// subscriptionCount returns the number of live subscriptions on a topic
func (e *StreamsEventBus) subscriptionCount(topic string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs[topic])
}

func encodeEvent(streamKey string, event ports.Event, maxLen int64) (*redis.XAddArgs, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	return args, nil
}

func decodeEvent(message redis.XMessage) (ports.Event, error) {
	var event ports.Event

	data, ok := message.Values["data"].(string)
	if !ok {
		return event, fmt.Errorf("message %s has no data field", message.ID)
	}
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return event, nil
}

// getStreamKey returns the Redis stream key for a topic
func getStreamKey(topic string) string {
	return streamPrefix + topic
}
