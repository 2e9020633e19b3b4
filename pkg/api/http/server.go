package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aescanero/scriptflow/internal/application/graphs"
	"github.com/aescanero/scriptflow/internal/application/orchestrator"
	"github.com/aescanero/scriptflow/internal/application/workers"
	"github.com/aescanero/scriptflow/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthReporter reports the state of the run worker pool
type HealthReporter interface {
	GetStatus() *workers.HealthStatus
}

// Server represents the HTTP API server
type Server struct {
	router       *gin.Engine
	server       *http.Server
	orchestrator *orchestrator.Manager
	executor     ports.BatchExecutor
	graphs       *graphs.Registry
	validator    *orchestrator.Validator
	health       HealthReporter
	logger       *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Addr         string
	Orchestrator *orchestrator.Manager
	Executor     ports.BatchExecutor
	Graphs       *graphs.Registry
	Validator    *orchestrator.Validator
	Health       HealthReporter
	// Gatherer serves /metrics; the default registry when nil
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware())

	s := &Server{
		router:       router,
		orchestrator: cfg.Orchestrator,
		executor:     cfg.Executor,
		graphs:       cfg.Graphs,
		validator:    cfg.Validator,
		health:       cfg.Health,
		logger:       cfg.Logger,
	}

	metricsHandler := promhttp.Handler()
	if cfg.Gatherer != nil {
		metricsHandler = promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})
	}

	s.setupRoutes(metricsHandler)

	s.server = &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes(metricsHandler http.Handler) {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// Metrics
	s.router.GET("/metrics", gin.WrapH(metricsHandler))

	// Batch execution used by the editor
	s.router.POST("/execute-workflow", s.handleExecuteWorkflow)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/workflows/run", s.handleRunWorkflow)

		// Graph editing
		v1.POST("/graphs", s.handleCreateGraph)
		v1.GET("/graphs", s.handleListGraphs)
		v1.GET("/graphs/:id", s.handleGetGraph)
		v1.DELETE("/graphs/:id", s.handleDeleteGraph)
		v1.GET("/graphs/:id/validate", s.handleValidateGraph)
		v1.POST("/graphs/:id/nodes", s.handleAddNode)
		v1.PUT("/graphs/:id/nodes/:node", s.handleUpdateNode)
		v1.DELETE("/graphs/:id/nodes/:node", s.handleRemoveNode)
		v1.POST("/graphs/:id/edges", s.handleConnect)
		v1.DELETE("/graphs/:id/edges/:source/:target", s.handleDisconnect)
		v1.POST("/graphs/:id/runs", s.handleSubmitRun)

		// Runs
		v1.GET("/runs", s.handleListRuns)
		v1.GET("/runs/:id", s.handleGetRun)
		v1.GET("/runs/:id/result", s.handleGetResult)
		v1.POST("/runs/:id/cancel", s.handleCancelRun)
	}
}

// SetupWebSocket adds WebSocket handler to the server
func (s *Server) SetupWebSocket(handler interface{}) {
	if wsHandler, ok := handler.(interface {
		HandleRunStream(*gin.Context)
	}); ok {
		s.router.GET("/api/v1/runs/:id/ws", wsHandler.HandleRunStream)
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
