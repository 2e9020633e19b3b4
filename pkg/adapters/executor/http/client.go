package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/aescanero/scriptflow/pkg/domain"
	"github.com/aescanero/scriptflow/pkg/ports"
	"go.uber.org/zap"
)

const maxResponseBytes = 16 << 20

// Config holds executor client configuration
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client
	Metrics    ports.MetricsCollector
	Logger     *zap.Logger
}

// Client talks to the remote script executor
type Client struct {
	endpoint   string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	httpClient *http.Client
	metrics    ports.MetricsCollector
	logger     *zap.Logger
}

type executeRequest struct {
	Script string `json:"script"`
}

type executeResponse struct {
	Result json.RawMessage `json:"result"`
	Stdout json.RawMessage `json:"stdout"`
	Error  json.RawMessage `json:"error"`
}

// NewClient creates a new executor client
func NewClient(cfg *Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("executor base URL is required")
	}
	if cfg.MaxRetries < 0 || cfg.MaxRetries > 1 {
		return nil, fmt.Errorf("executor max retries must be 0 or 1, got %d", cfg.MaxRetries)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/execute",
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		httpClient: httpClient,
		metrics:    cfg.Metrics,
		logger:     logger,
	}, nil
}

// Execute sends one script to the executor.
//
// A script the executor flags as failing comes back as a result with Error
// set and a nil error. Transport failures return *domain.TransportError and
// deadline overruns return *domain.TimeoutError.
func (c *Client) Execute(ctx context.Context, script string) (*domain.ExecutionResult, error) {
	body, err := json.Marshal(executeRequest{Script: script})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if c.metrics != nil {
				c.metrics.RecordExecutorRetry()
			}
			c.logger.Warn("retrying executor request",
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr))

			if err := sleepCtx(ctx, c.retryDelay); err != nil {
				return nil, c.contextError(err)
			}
		}

		attempts++
		result, err := c.do(ctx, body)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			break
		}
	}

	var te *domain.TransportError
	if attempts > 1 && errors.As(lastErr, &te) {
		te.Retried = true
	}
	return nil, lastErr
}

// do performs a single attempt
func (c *Client) do(ctx context.Context, body []byte) (*domain.ExecutionResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record("error", start)
		if isTimeout(ctx, err) {
			return nil, &domain.TimeoutError{Op: "execute", After: c.timeout, Err: err}
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
		}
		return nil, &domain.TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.record("error", start)
		if isTimeout(ctx, err) {
			return nil, &domain.TimeoutError{Op: "execute", After: c.timeout, Err: err}
		}
		return nil, &domain.TransportError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.record(fmt.Sprintf("status_%d", resp.StatusCode), start)
		return nil, &domain.TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", snippet(data)),
		}
	}

	var decoded executeResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		c.record("invalid_body", start)
		return nil, &domain.TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to decode response: %w", err),
		}
	}

	result := &domain.ExecutionResult{
		Result: normalize(decoded.Result),
		Stdout: normalize(decoded.Stdout),
		Error:  normalize(decoded.Error),
	}

	if result.Error != nil {
		c.record("script_error", start)
	} else {
		c.record("ok", start)
	}

	c.logger.Debug("script executed",
		zap.Int("status", resp.StatusCode),
		zap.Bool("script_error", result.Error != nil),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

// ExecuteBatch runs scripts one after another in input order.
//
// The first transport or timeout error stops the batch; the results gathered
// before it are returned together with that error.
func (c *Client) ExecuteBatch(ctx context.Context, scripts []string) ([]domain.ExecutionResult, error) {
	results := make([]domain.ExecutionResult, 0, len(scripts))
	for i, script := range scripts {
		if err := ctx.Err(); err != nil {
			return results, c.contextError(err)
		}

		result, err := c.Execute(ctx, script)
		if err != nil {
			c.logger.Warn("batch aborted",
				zap.Int("index", i),
				zap.Int("total", len(scripts)),
				zap.Error(err))
			return results, err
		}
		results = append(results, *result)
	}
	return results, nil
}

// BatchResults converts a batch outcome to wire entries, appending the
// aborting error as a trailing entry
func BatchResults(results []domain.ExecutionResult, err error) []domain.WireResult {
	out := make([]domain.WireResult, 0, len(results)+1)
	for _, r := range results {
		out = append(out, domain.WireFromResult(r))
	}
	if err != nil {
		out = append(out, domain.WireError(err))
	}
	return out
}

func (c *Client) record(outcome string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordExecutorRequest(outcome, time.Since(start))
	}
}

func (c *Client) contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.TimeoutError{Op: "execute", Err: err}
	}
	return fmt.Errorf("%w: %v", domain.ErrCancelled, err)
}

// normalize maps a raw JSON value to text. Strings are unquoted, null and
// absent values become nil and any other value keeps its JSON text.
func normalize(raw json.RawMessage) *string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return &s
	}

	text := string(trimmed)
	return &text
}

// isRetryable reports a refused or reset connection
func isRetryable(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func snippet(data []byte) string {
	const max = 256
	s := strings.TrimSpace(string(data))
	if len(s) > max {
		s = s[:max] + "..."
	}
	if s == "" {
		s = "empty response body"
	}
	return s
}
