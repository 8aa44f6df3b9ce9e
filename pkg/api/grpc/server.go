package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-checked service name besides the overall ""
const ServiceName = "predictor"

// Server represents the gRPC API server
type Server struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	logger   *zap.Logger
}

// Config holds gRPC server configuration
type Config struct {
	Addr   string
	Logger *zap.Logger
}

// NewServer creates a new gRPC server listening on cfg.Addr
func NewServer(cfg *Config) (*Server, error) {
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	return NewServerWithListener(listener, cfg.Logger), nil
}

// NewServerWithListener creates a gRPC server on an existing listener
func NewServerWithListener(listener net.Listener, logger *zap.Logger) *Server {
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()

	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{
		server:   grpcServer,
		health:   healthServer,
		listener: listener,
		logger:   logger,
	}
}

// Start starts the gRPC server
func (s *Server) Start() error {
	s.logger.Info("starting gRPC server", zap.String("addr", s.listener.Addr().String()))

	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}

	return nil
}

// MarkNotServing reports NOT_SERVING for every service, so health-checking
// load balancers drain traffic before the server stops
func (s *Server) MarkNotServing() {
	s.health.Shutdown()
}

// Shutdown marks the server NOT_SERVING and stops it gracefully,
// forcing a stop if ctx expires first
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down gRPC server")

	s.MarkNotServing()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
		<-done
		return fmt.Errorf("gRPC graceful shutdown timed out: %w", ctx.Err())
	}

	s.logger.Info("gRPC server shut down complete")
	return nil
}
