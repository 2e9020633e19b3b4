package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Backend names accepted by STORAGE_BACKEND and EVENTS_BACKEND
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all configuration for scriptflow
type Config struct {
	// Server configuration
	HTTPPort int    `env:"SCRIPTFLOW_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"SCRIPTFLOW_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Remote executor configuration
	Executor ExecutorConfig

	// Storage and event backends
	Storage StorageConfig

	// Redis configuration
	Redis RedisConfig

	// Worker configuration
	Workers WorkerConfig

	// Run behaviour
	Run RunConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// ExecutorConfig holds the remote executor connection settings
type ExecutorConfig struct {
	URL        string        `env:"EXECUTOR_URL" envDefault:"http://localhost:8000"`
	Timeout    time.Duration `env:"EXECUTOR_TIMEOUT" envDefault:"30s"`
	MaxRetries int           `env:"EXECUTOR_MAX_RETRIES" envDefault:"1"`
	RetryDelay time.Duration `env:"EXECUTOR_RETRY_DELAY" envDefault:"200ms"`
}

// StorageConfig selects where run snapshots and events go
type StorageConfig struct {
	Backend       string        `env:"STORAGE_BACKEND" envDefault:"memory"`
	EventsBackend string        `env:"EVENTS_BACKEND" envDefault:"memory"`
	RunTTL        time.Duration `env:"STORAGE_RUN_TTL" envDefault:"24h"`
	StreamMaxLen  int64         `env:"EVENTS_STREAM_MAX_LEN" envDefault:"10000"`
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

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"5"`
	QueueSize           int           `env:"WORKER_QUEUE_SIZE" envDefault:"100"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// RunConfig holds run execution settings
type RunConfig struct {
	StepDelay           time.Duration `env:"RUN_STEP_DELAY" envDefault:"0s"`
	RequireFullCoverage bool          `env:"RUN_REQUIRE_FULL_COVERAGE" envDefault:"false"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	RunTimeout      time.Duration `env:"TIMEOUT_RUN" envDefault:"600s"` // 10 minutes
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
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
	// Validate server ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	// Validate executor config
	if c.Executor.URL == "" {
		return fmt.Errorf("executor URL is required")
	}
	if c.Executor.Timeout <= 0 {
		return fmt.Errorf("executor timeout must be positive")
	}
	if c.Executor.MaxRetries < 0 || c.Executor.MaxRetries > 1 {
		return fmt.Errorf("invalid executor max retries: %d (must be 0 or 1)", c.Executor.MaxRetries)
	}

	// Validate backends
	for name, backend := range map[string]string{
		"storage": c.Storage.Backend,
		"events":  c.Storage.EventsBackend,
	} {
		if backend != BackendMemory && backend != BackendRedis {
			return fmt.Errorf("unsupported %s backend: %s (must be memory or redis)", name, backend)
		}
	}
	if c.UsesRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	// Validate worker config
	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}
	if c.Workers.QueueSize < 0 {
		return fmt.Errorf("worker queue size must not be negative")
	}

	if c.Run.StepDelay < 0 {
		return fmt.Errorf("run step delay must not be negative")
	}

	// Validate log level
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

// UsesRedis reports whether any backend needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.Storage.Backend == BackendRedis || c.Storage.EventsBackend == BackendRedis
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
