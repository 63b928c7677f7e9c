// Package upstream is the HTTP client for the hosted verification agents.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/claimcheck/internal/metrics"
	"github.com/ppiankov/claimcheck/internal/worker"
)

var (
	// ErrNotConfigured is returned when the API key or project id is missing
	ErrNotConfigured = errors.New("upstream not configured")

	// ErrTimeout matches any *TimeoutError
	ErrTimeout = errors.New("upstream timed out")
)

// TimeoutError reports an agent call aborted by its deadline
type TimeoutError struct {
	Agent   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("agent %s timed out after %v", e.Agent, e.Timeout)
}

// Is makes errors.Is(err, ErrTimeout) hold
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Config holds the agent endpoint and credentials
type Config struct {
	BaseURL   string
	APIKey    string
	ProjectID string
}

// Response is an agent response relayed verbatim
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IsJSON reports whether the agent declared a JSON body
func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType, "application/json")
}

// Client calls agents at {BaseURL}/agents/{id}/run
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *worker.Limiter
}

// NewClient creates a new agent client. The limiter may be nil.
func NewClient(config Config, httpClient *http.Client, limiter *worker.Limiter) *Client {
	if httpClient == nil {
		// Timeouts are applied per call through the request context
		httpClient = &http.Client{}
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")

	return &Client{
		config:     config,
		httpClient: httpClient,
		limiter:    limiter,
	}
}

// Configured reports whether both secrets are present
func (c *Client) Configured() bool {
	return c.config.APIKey != "" && c.config.ProjectID != ""
}

// Run posts body to the agent and returns its response. A zero timeout leaves
// the call bounded only by ctx.
func (c *Client) Run(ctx context.Context, agentID string, body any, timeout time.Duration) (resp *Response, err error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamDuration.WithLabelValues(agentID).Observe(time.Since(start).Seconds())
		metrics.UpstreamRequests.WithLabelValues(agentID, outcome(resp, err)).Inc()
	}()

	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(callCtx, agentID); err != nil {
		return nil, c.classify(ctx, callCtx, agentID, timeout, fmt.Errorf("rate limit: %w", err))
	}

	url := fmt.Sprintf("%s/agents/%s/run", c.config.BaseURL, agentID)
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("x-project-id", c.config.ProjectID)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classify(ctx, callCtx, agentID, timeout, fmt.Errorf("execute request: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, c.classify(ctx, callCtx, agentID, timeout, fmt.Errorf("read response: %w", err))
	}

	return &Response{
		StatusCode:  httpResp.StatusCode,
		ContentType: httpResp.Header.Get("Content-Type"),
		Body:        respBody,
	}, nil
}

// classify turns a failure caused by the call deadline into a *TimeoutError.
// Cancellation of the parent context is passed through unchanged.
func (c *Client) classify(parent, call context.Context, agentID string, timeout time.Duration, err error) error {
	if errors.Is(parent.Err(), context.Canceled) {
		return err
	}
	if errors.Is(call.Err(), context.DeadlineExceeded) || errors.Is(err, worker.ErrLimitDeadline) {
		return &TimeoutError{Agent: agentID, Timeout: timeout}
	}
	return err
}

func outcome(resp *Response, err error) string {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case err != nil:
		return "error"
	default:
		return metrics.StatusClass(resp.StatusCode)
	}
}
