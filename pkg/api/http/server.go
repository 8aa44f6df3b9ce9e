package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aescanero/predictor/internal/application/predictor"
	"github.com/aescanero/predictor/pkg/ports"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PredictionService is the application behind the HTTP handlers
type PredictionService interface {
	Predict(ctx context.Context) predictor.Prediction
	Status(ctx context.Context) predictor.Status
}

// MetricsCollector records request metrics and exposes them for scraping
type MetricsCollector interface {
	ports.MetricsCollector
	Handler() http.Handler
}

// EventStreamer streams bus events to a WebSocket client
type EventStreamer interface {
	HandleEventStream(c *gin.Context)
}

// Server represents the HTTP API server
type Server struct {
	router  *gin.Engine
	server  *http.Server
	service PredictionService
	metrics MetricsCollector
	logger  *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	Service           PredictionService
	Metrics           MetricsCollector
	Logger            *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	router.Use(metricsMiddleware(cfg.Metrics))
	router.Use(corsMiddleware())

	s := &Server{
		router:  router,
		service: cfg.Service,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	return s
}

// SetupWebSocket mounts the event stream at /ws/events
func (s *Server) SetupWebSocket(streamer EventStreamer) {
	s.router.GET("/ws/events", streamer.HandleEventStream)
}

// Handler returns the router, for embedding or tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}
