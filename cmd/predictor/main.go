package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/predictor/internal/application/predictor"
	"github.com/aescanero/predictor/internal/config"
	"github.com/aescanero/predictor/pkg/adapters/events/memory"
	"github.com/aescanero/predictor/pkg/adapters/events/redis"
	"github.com/aescanero/predictor/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/predictor/pkg/api/grpc"
	"github.com/aescanero/predictor/pkg/api/http"
	"github.com/aescanero/predictor/pkg/api/websocket"
	"github.com/aescanero/predictor/pkg/ports"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting predictor API",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	eventBus, closeEvents := initEventBus(cfg, logger)

	registry := prometheus.NewRegistry()
	metricsCollector := prometheus.NewCollector(registry, registry)

	service := predictor.NewService(eventBus, metricsCollector, logger)
	healthMonitor := predictor.NewHealthMonitor(eventBus, metricsCollector, cfg.Health.CheckInterval, logger)

	httpServer := http.NewServer(&http.Config{
		Addr:              cfg.GetHTTPAddr(),
		ReadHeaderTimeout: cfg.Timeouts.ReadHeaderTimeout,
		Service:           service,
		Metrics:           metricsCollector,
		Logger:            logger,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(eventBus, logger))

	var grpcServer *grpc.Server
	if cfg.GRPCEnabled {
		grpcServer, err = grpc.NewServer(&grpc.Config{
			Addr:   cfg.GetGRPCAddr(),
			Logger: logger,
		})
		if err != nil {
			logger.Fatal("failed to create gRPC server", zap.Error(err))
		}
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	if grpcServer != nil {
		go func() {
			if err := grpcServer.Start(); err != nil {
				logger.Fatal("gRPC server failed", zap.Error(err))
			}
		}()
	}

	healthMonitor.Start()

	logger.Info("predictor API started",
		zap.String("http_addr", cfg.GetHTTPAddr()),
		zap.Bool("grpc_enabled", cfg.GRPCEnabled),
		zap.String("grpc_addr", cfg.GetGRPCAddr()),
		zap.String("events_backend", cfg.Events.Backend))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	healthMonitor.Stop()

	if grpcServer != nil {
		if err := grpcServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("gRPC server shutdown error", zap.Error(err))
		}
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	closeEvents()

	logger.Info("predictor API shut down complete")
}

// initEventBus builds the configured event bus and returns it with its cleanup
func initEventBus(cfg *config.Config, logger *zap.Logger) (ports.EventBus, func()) {
	if cfg.Events.Backend != config.EventsBackendRedis {
		bus := memory.NewInMemoryEventBus()
		return bus, func() { _ = bus.Close() }
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	bus, err := redis.NewStreamsEventBus(
		redisClient,
		cfg.Events.ConsumerGroup,
		fmt.Sprintf("predictor-%d", os.Getpid()),
		cfg.Events.StreamMaxLen,
		logger,
	)
	if err != nil {
		logger.Fatal("failed to create event bus", zap.Error(err))
	}

	return bus, func() {
		_ = bus.Close()
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
