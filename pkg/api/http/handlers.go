package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/aescanero/scriptflow/internal/application/graphs"
	executorhttp "github.com/aescanero/scriptflow/pkg/adapters/executor/http"
	"github.com/aescanero/scriptflow/pkg/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ExecuteWorkflowRequest is the batch request sent by the editor
type ExecuteWorkflowRequest struct {
	Scripts []string `json:"scripts" binding:"required"`
}

// ExecuteWorkflowResponse holds one entry per executed script, plus a
// trailing error entry when the batch stopped early
type ExecuteWorkflowResponse struct {
	Results []domain.WireResult `json:"results"`
}

// RunWorkflowRequest carries a whole graph to run synchronously
type RunWorkflowRequest struct {
	Nodes []domain.Node `json:"nodes"`
	Edges []domain.Edge `json:"edges"`
}

// ReportResponse is a finished run as returned to callers
type ReportResponse struct {
	RunID     string                   `json:"run_id"`
	Status    domain.RunStatus         `json:"status"`
	Records   []domain.ExecutionRecord `json:"records"`
	Results   []domain.WireResult      `json:"results"`
	Error     string                   `json:"error,omitempty"`
	ErrorKind string                   `json:"error_kind,omitempty"`
}

// CreateGraphRequest creates an editable graph
type CreateGraphRequest struct {
	Name string `json:"name"`
}

// AddNodeRequest adds a node, optionally connected after an existing one
type AddNodeRequest struct {
	Script string `json:"script"`
	After  string `json:"after"`
}

// UpdateNodeRequest replaces a node's script
type UpdateNodeRequest struct {
	Script *string `json:"script" binding:"required"`
}

// ConnectRequest adds an edge
type ConnectRequest struct {
	Source string `json:"source" binding:"required"`
	Target string `json:"target" binding:"required"`
}

// RunSubmitResponse acknowledges an asynchronous run
type RunSubmitResponse struct {
	RunID       string `json:"run_id"`
	GraphID     string `json:"graph_id"`
	Status      string `json:"status"`
	SubmittedAt string `json:"submitted_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func abortWithError(c *gin.Context, status int, code, message string, details interface{}) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// writeError maps application errors onto HTTP statuses
func (s *Server) writeError(c *gin.Context, err error) {
	var ge *domain.GraphError
	switch {
	case errors.Is(err, domain.ErrGraphNotFound):
		abortWithError(c, http.StatusNotFound, "GRAPH_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, domain.ErrRunNotFound):
		abortWithError(c, http.StatusNotFound, "RUN_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, domain.ErrUnknownNode):
		abortWithError(c, http.StatusNotFound, "NODE_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, graphs.ErrEdgeNotFound):
		abortWithError(c, http.StatusNotFound, "EDGE_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, domain.ErrDuplicateNode):
		abortWithError(c, http.StatusConflict, "DUPLICATE_NODE", err.Error(), nil)
	case errors.Is(err, domain.ErrRunTerminal):
		abortWithError(c, http.StatusConflict, "RUN_FINISHED", err.Error(), nil)
	case errors.Is(err, domain.ErrQueueFull):
		abortWithError(c, http.StatusServiceUnavailable, "QUEUE_FULL", err.Error(), nil)
	case errors.As(err, &ge):
		abortWithError(c, http.StatusUnprocessableEntity, "GRAPH_ERROR", err.Error(), nil)
	default:
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), nil)
	}
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return false
	}
	return true
}

func reportResponse(report *domain.Report, err error) ReportResponse {
	resp := ReportResponse{
		RunID:   report.RunID,
		Status:  report.Status,
		Records: report.Records,
		Results: report.Wire(),
	}
	if err != nil {
		resp.Error = err.Error()
		resp.ErrorKind = domain.ErrorKind(err)
	}
	return resp
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if s.health != nil {
		pool := s.health.GetStatus()
		body["checks"] = gin.H{"workers": pool}
		if !pool.Healthy {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
		}
	}

	c.JSON(status, body)
}

// handleExecuteWorkflow runs a list of scripts in order and returns one
// result per script
func (s *Server) handleExecuteWorkflow(c *gin.Context) {
	var req ExecuteWorkflowRequest
	if !bindJSON(c, &req) {
		return
	}

	results, err := s.executor.ExecuteBatch(c.Request.Context(), req.Scripts)
	if err != nil {
		s.logger.Warn("batch stopped early",
			zap.Int("scripts", len(req.Scripts)),
			zap.Int("completed", len(results)),
			zap.Error(err))
	}

	c.JSON(http.StatusOK, ExecuteWorkflowResponse{
		Results: executorhttp.BatchResults(results, err),
	})
}

// handleRunWorkflow resolves and runs a graph, waiting for the report
func (s *Server) handleRunWorkflow(c *gin.Context) {
	var req RunWorkflowRequest
	if !bindJSON(c, &req) {
		return
	}

	g, err := domain.NewGraphFrom(req.Nodes, req.Edges)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_GRAPH", err.Error(), nil)
		return
	}

	report, err := s.orchestrator.RunWorkflow(c.Request.Context(), g)

	var ge *domain.GraphError
	if errors.As(err, &ge) {
		abortWithError(c, http.StatusUnprocessableEntity, "GRAPH_ERROR", err.Error(), reportResponse(report, err))
		return
	}

	c.JSON(http.StatusOK, reportResponse(report, err))
}

// handleCreateGraph creates an editable graph
func (s *Server) handleCreateGraph(c *gin.Context) {
	var req CreateGraphRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	c.JSON(http.StatusCreated, s.graphs.Create(req.Name))
}

// handleListGraphs handles listing graphs
func (s *Server) handleListGraphs(c *gin.Context) {
	list := s.graphs.List()
	c.JSON(http.StatusOK, gin.H{
		"graphs": list,
		"total":  len(list),
	})
}

// handleGetGraph handles getting graph details
func (s *Server) handleGetGraph(c *gin.Context) {
	info, err := s.graphs.Get(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleDeleteGraph(c *gin.Context) {
	if err := s.graphs.Delete(c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleValidateGraph reports the order a run would follow without running it
func (s *Server) handleValidateGraph(c *gin.Context) {
	g, err := s.graphs.Snapshot(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	result, err := s.validator.Validate(g)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleAddNode(c *gin.Context) {
	var req AddNodeRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	node, err := s.graphs.AddNode(c.Param("id"), req.Script, req.After)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, node)
}

func (s *Server) handleUpdateNode(c *gin.Context) {
	var req UpdateNodeRequest
	if !bindJSON(c, &req) {
		return
	}

	graphID, nodeID := c.Param("id"), c.Param("node")
	if err := s.graphs.SetScript(graphID, nodeID, *req.Script); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, domain.Node{ID: nodeID, Script: *req.Script})
}

func (s *Server) handleRemoveNode(c *gin.Context) {
	if err := s.graphs.RemoveNode(c.Param("id"), c.Param("node")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleConnect(c *gin.Context) {
	var req ConnectRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := s.graphs.Connect(c.Param("id"), req.Source, req.Target); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, domain.Edge{Source: req.Source, Target: req.Target})
}

func (s *Server) handleDisconnect(c *gin.Context) {
	if err := s.graphs.Disconnect(c.Param("id"), c.Param("source"), c.Param("target")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleSubmitRun starts an asynchronous run of an editable graph
func (s *Server) handleSubmitRun(c *gin.Context) {
	graphID := c.Param("id")

	g, err := s.graphs.Snapshot(graphID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	runID, err := s.orchestrator.Submit(c.Request.Context(), graphID, g)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if err := s.graphs.SetLastRun(graphID, runID); err != nil {
		// graph deleted after the snapshot; the run goes on regardless
		s.logger.Warn("failed to record last run",
			zap.String("graph_id", graphID),
			zap.String("run_id", runID),
			zap.Error(err))
	}

	c.JSON(http.StatusAccepted, RunSubmitResponse{
		RunID:       runID,
		GraphID:     graphID,
		Status:      "submitted",
		SubmittedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListRuns(c *gin.Context) {
	runs, err := s.orchestrator.ListRuns(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}

// handleGetRun returns the live state of a run
func (s *Server) handleGetRun(c *gin.Context) {
	state, err := s.orchestrator.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// handleGetResult returns the report of a finished run
func (s *Server) handleGetResult(c *gin.Context) {
	state, err := s.orchestrator.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	if !state.Status.IsTerminal() {
		abortWithError(c, http.StatusConflict, "NOT_COMPLETED", "Run has not finished yet", gin.H{
			"status": state.Status,
			"cursor": state.Cursor,
		})
		return
	}

	report := state.Report()
	c.JSON(http.StatusOK, ReportResponse{
		RunID:     report.RunID,
		Status:    report.Status,
		Records:   report.Records,
		Results:   report.Wire(),
		Error:     state.Error,
		ErrorKind: state.ErrorKind,
	})
}

// handleCancelRun handles run cancellation
func (s *Server) handleCancelRun(c *gin.Context) {
	runID := c.Param("id")

	if err := s.orchestrator.CancelRun(c.Request.Context(), runID); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":       runID,
		"status":       "cancelling",
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}
