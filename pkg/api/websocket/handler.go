package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aescanero/predictor/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Topics forwarded to clients
var streamTopics = []string{ports.TopicPredictionEvents, ports.TopicStatusEvents}

// Handler handles WebSocket connections
type Handler struct {
	eventBus   ports.EventBus
	logger     *zap.Logger
	bufferSize int
}

// NewHandler creates a new WebSocket handler
func NewHandler(eventBus ports.EventBus, logger *zap.Logger) *Handler {
	return &Handler{
		eventBus:   eventBus,
		logger:     logger,
		bufferSize: 32,
	}
}

// HandleEventStream forwards prediction and status events to the client
// until it disconnects
func (h *Handler) HandleEventStream(c *gin.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Subscribe before the handshake completes so no event published after
	// the client connects is missed
	eventChan := make(chan ports.Event, h.bufferSize)
	for _, topic := range streamTopics {
		if err := h.eventBus.Subscribe(ctx, topic, h.forward(eventChan)); err != nil {
			h.logger.Error("failed to subscribe to events",
				zap.String("topic", topic),
				zap.Error(err))
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("client", c.ClientIP()))

	// The read loop only detects the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket connection closed",
				zap.String("client", c.ClientIP()))
			return
		case event := <-eventChan:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event", zap.Error(err))
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Error("failed to write message", zap.Error(err))
				return
			}
		}
	}
}

// forward returns an event handler feeding ch without blocking the bus
func (h *Handler) forward(ch chan<- ports.Event) ports.EventHandler {
	return func(ctx context.Context, event ports.Event) error {
		select {
		case ch <- event:
		default:
			h.logger.Warn("event channel full, dropping event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
		}
		return nil
	}
}
