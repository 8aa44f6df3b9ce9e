package ports

import (
	"context"
	"time"
)

// EventType identifies the kind of event on the bus
type EventType string

const (
	EventTypePredictionServed EventType = "prediction.served"
	EventTypeStatusHeartbeat  EventType = "status.heartbeat"
)

// Topics used by the predictor
const (
	TopicPredictionEvents = "prediction.events"
	TopicStatusEvents     = "status.events"
)

// Event is a message published on the event bus
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventHandler processes a single event
type EventHandler func(ctx context.Context, event Event) error

// EventBus publishes events to topics and fans them out to subscribers
type EventBus interface {
	Publish(ctx context.Context, topic string, event Event) error
	// Subscribe registers handler until ctx is cancelled
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Unsubscribe(ctx context.Context, topic string) error
	Close() error
}
