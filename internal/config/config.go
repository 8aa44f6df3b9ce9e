package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Event bus backends
const (
	EventsBackendMemory = "memory"
	EventsBackendRedis  = "redis"
)

// Config holds all configuration for the predictor API
type Config struct {
	// Server configuration
	HTTPPort    int    `env:"PREDICTOR_HTTP_PORT" envDefault:"5000"`
	GRPCPort    int    `env:"PREDICTOR_GRPC_PORT" envDefault:"9090"`
	GRPCEnabled bool   `env:"PREDICTOR_GRPC_ENABLED" envDefault:"true"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Event bus configuration
	Events EventsConfig

	// Redis configuration, used when Events.Backend is redis
	Redis RedisConfig

	// Health monitor configuration
	Health HealthConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// EventsConfig selects and tunes the event bus.
// ConsumerGroup prefixes the per-subscription Redis consumer groups.
type EventsConfig struct {
	Backend       string `env:"EVENTS_BACKEND" envDefault:"memory"`
	ConsumerGroup string `env:"EVENTS_CONSUMER_GROUP" envDefault:"predictor"`
	StreamMaxLen  int64  `env:"EVENTS_STREAM_MAX_LEN" envDefault:"10000"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// HealthConfig holds health monitor configuration
type HealthConfig struct {
	CheckInterval time.Duration `env:"HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	ReadHeaderTimeout time.Duration `env:"TIMEOUT_READ_HEADER" envDefault:"10s"`
	ShutdownTimeout   time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCEnabled {
		if c.GRPCPort < 1 || c.GRPCPort > 65535 {
			return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
		}
		if c.GRPCPort == c.HTTPPort {
			return fmt.Errorf("gRPC port %d conflicts with HTTP port", c.GRPCPort)
		}
	}

	switch c.Events.Backend {
	case EventsBackendMemory:
	case EventsBackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis event backend")
		}
		if c.Events.ConsumerGroup == "" {
			return fmt.Errorf("events consumer group is required for the redis event backend")
		}
	default:
		return fmt.Errorf("unsupported events backend: %s (must be memory or redis)", c.Events.Backend)
	}

	if c.Health.CheckInterval <= 0 {
		return fmt.Errorf("health check interval must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
