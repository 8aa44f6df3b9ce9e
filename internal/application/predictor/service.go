package predictor

import (
	"context"
	"time"

	"github.com/aescanero/predictor/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PredictionValue is the value returned by every prediction
	PredictionValue = 112.5

	StatusSuccess = "success"
	StatusOnline  = "online"
)

// Prediction is the payload returned by POST /predict
type Prediction struct {
	Prediction float64 `json:"prediction"`
	Status     string  `json:"status"`
}

// Status is the payload returned by GET /status
type Status struct {
	Status string `json:"status"`
}

// Service serves predictions and liveness status
type Service struct {
	eventBus ports.EventBus
	metrics  ports.MetricsCollector
	logger   *zap.Logger
}

// NewService creates a new predictor service
func NewService(eventBus ports.EventBus, metrics ports.MetricsCollector, logger *zap.Logger) *Service {
	return &Service{
		eventBus: eventBus,
		metrics:  metrics,
		logger:   logger,
	}
}

// Predict returns the fixed prediction. Event publication failures are
// logged and never affect the result.
func (s *Service) Predict(ctx context.Context) Prediction {
	p := Prediction{
		Prediction: PredictionValue,
		Status:     StatusSuccess,
	}

	s.metrics.IncPredictionsServed()
	publish(ctx, s.eventBus, s.metrics, s.logger, ports.TopicPredictionEvents, ports.EventTypePredictionServed, map[string]interface{}{
		"prediction": p.Prediction,
		"status":     p.Status,
	})

	return p
}

// Status returns the liveness payload
func (s *Service) Status(ctx context.Context) Status {
	return Status{Status: StatusOnline}
}

func publish(ctx context.Context, bus ports.EventBus, metrics ports.MetricsCollector, logger *zap.Logger, topic string, eventType ports.EventType, data map[string]interface{}) {
	event := ports.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	// Delivery outlives the request context
	err := bus.Publish(context.WithoutCancel(ctx), topic, event)
	metrics.RecordEventPublished(topic, err)
	if err != nil {
		logger.Warn("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}
