package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/scriptflow/internal/application/graphs"
	"github.com/aescanero/scriptflow/internal/application/orchestrator"
	"github.com/aescanero/scriptflow/internal/application/workers"
	"github.com/aescanero/scriptflow/internal/config"
	"github.com/aescanero/scriptflow/pkg/adapters/backends"
	executorhttp "github.com/aescanero/scriptflow/pkg/adapters/executor/http"
	"github.com/aescanero/scriptflow/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/scriptflow/pkg/api/grpc"
	"github.com/aescanero/scriptflow/pkg/api/http"
	"github.com/aescanero/scriptflow/pkg/api/websocket"

	promclient "github.com/prometheus/client_golang/prometheus"
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
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting scriptflow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	// Initialize Redis client only when a backend needs it
	var redisClient *goredis.Client
	if cfg.UsesRedis() {
		redisClient = goredis.NewClient(&goredis.Options{
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

		// Test Redis connection
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	// Initialize adapters
	backendCfg := &backends.Config{
		Storage:      cfg.Storage.Backend,
		Events:       cfg.Storage.EventsBackend,
		Redis:        redisClient,
		RunTTL:       cfg.Storage.RunTTL,
		StreamMaxLen: cfg.Storage.StreamMaxLen,
		Logger:       logger,
	}

	eventBus, err := backends.NewEventBus(backendCfg)
	if err != nil {
		logger.Fatal("failed to create event bus", zap.Error(err))
	}

	runStorage, err := backends.NewRunStorage(backendCfg)
	if err != nil {
		logger.Fatal("failed to create run storage", zap.Error(err))
	}

	metricsCollector := prometheus.NewCollector(promclient.DefaultRegisterer)

	executor, err := executorhttp.NewClient(&executorhttp.Config{
		BaseURL:    cfg.Executor.URL,
		Timeout:    cfg.Executor.Timeout,
		MaxRetries: cfg.Executor.MaxRetries,
		RetryDelay: cfg.Executor.RetryDelay,
		Metrics:    metricsCollector,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to create executor client", zap.Error(err))
	}

	// Initialize application components
	workerPool := workers.NewPool(
		cfg.Workers.PoolSize,
		cfg.Workers.QueueSize,
		metricsCollector,
		logger,
		cfg.Workers.HealthCheckInterval,
	)

	orchestratorMgr := orchestrator.NewManager(
		executor,
		eventBus,
		runStorage,
		metricsCollector,
		workerPool,
		logger,
		orchestrator.Options{
			RunTimeout:          cfg.Timeouts.RunTimeout,
			StepDelay:           cfg.Run.StepDelay,
			RequireFullCoverage: cfg.Run.RequireFullCoverage,
		},
	)

	graphRegistry := graphs.NewRegistry(logger)
	validator := orchestrator.NewValidator(cfg.Run.RequireFullCoverage)

	// Start worker pool
	if err := workerPool.Start(); err != nil {
		logger.Fatal("failed to start worker pool", zap.Error(err))
	}

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Addr:         cfg.GetHTTPAddr(),
		Orchestrator: orchestratorMgr,
		Executor:     executor,
		Graphs:       graphRegistry,
		Validator:    validator,
		Health:       workerPool.Health(),
		Logger:       logger,
	})

	// Add WebSocket handler to HTTP server
	wsHandler := websocket.NewHandler(eventBus, orchestratorMgr, logger)
	httpServer.SetupWebSocket(wsHandler)

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Addr:     cfg.GetGRPCAddr(),
		Checker:  workerPool.Health(),
		Interval: cfg.Workers.HealthCheckInterval,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}

	// Start servers
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	logger.Info("scriptflow started",
		zap.String("http_addr", cfg.GetHTTPAddr()),
		zap.String("grpc_addr", cfg.GetGRPCAddr()),
		zap.String("executor_url", cfg.Executor.URL),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("events_backend", cfg.Storage.EventsBackend),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	// Shutdown components
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	// Runs stop before their next step; in-flight calls finish first
	if err := orchestratorMgr.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown error", zap.Error(err))
	}

	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("scriptflow shut down complete")
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
