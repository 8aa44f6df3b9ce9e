package predictor

import (
	"context"
	"sync"
	"time"

	"github.com/aescanero/predictor/pkg/ports"
	"go.uber.org/zap"
)

// HealthMonitor publishes a periodic heartbeat while the service is live
type HealthMonitor struct {
	eventBus ports.EventBus
	metrics  ports.MetricsCollector
	interval time.Duration
	logger   *zap.Logger
	started  time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(eventBus ports.EventBus, metrics ports.MetricsCollector, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	return &HealthMonitor{
		eventBus: eventBus,
		metrics:  metrics,
		interval: interval,
		logger:   logger,
	}
}

// Start starts the heartbeat loop. Calling Start on a running monitor is a no-op.
func (h *HealthMonitor) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	h.started = time.Now()
	h.stopCh = make(chan struct{})
	h.doneCh = make(chan struct{})

	h.metrics.SetUp(true)
	go h.run(h.stopCh, h.doneCh)
}

// Stop stops the heartbeat loop and marks the service down
func (h *HealthMonitor) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	stopCh, doneCh := h.stopCh, h.doneCh
	h.mu.Unlock()

	close(stopCh)
	<-doneCh
	h.metrics.SetUp(false)
}

// IsRunning reports whether the heartbeat loop is active
func (h *HealthMonitor) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

func (h *HealthMonitor) run(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			h.beat()
		}
	}
}

func (h *HealthMonitor) beat() {
	uptime := time.Since(h.started)

	h.logger.Debug("heartbeat",
		zap.String("status", StatusOnline),
		zap.Duration("uptime", uptime))

	h.metrics.SetUp(true)
	publish(context.Background(), h.eventBus, h.metrics, h.logger, ports.TopicStatusEvents, ports.EventTypeStatusHeartbeat, map[string]interface{}{
		"status":         StatusOnline,
		"uptime_seconds": uptime.Seconds(),
	})
}
