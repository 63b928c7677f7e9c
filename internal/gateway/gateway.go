// Package gateway implements the agent gateways: stateless HTTP handlers that
// validate a request body, attach the server-held credentials, forward the
// request to one hosted agent and relay its response.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ppiankov/claimcheck/internal/jsonx"
	"github.com/ppiankov/claimcheck/internal/metrics"
	"github.com/ppiankov/claimcheck/internal/upstream"
)

// Error messages returned to callers
const (
	MsgNotConfigured  = "Server not configured"
	MsgTimedOut       = "Upstream timed out"
	MsgInternalError  = "Internal server error"
	maxRequestBodyLen = 1 << 20
)

// AgentRunner is the upstream client used by the gateways
type AgentRunner interface {
	Configured() bool
	Run(ctx context.Context, agentID string, body any, timeout time.Duration) (*upstream.Response, error)
}

// Definition describes one gateway instance
type Definition struct {
	Name    string
	Path    string
	AgentID string
	Timeout time.Duration

	// Validate returns a client error message when body lacks required fields
	Validate func(body map[string]any) (msg string, ok bool)

	// Payload builds the upstream request body from a validated request
	Payload func(body map[string]any) (any, error)
}

// Gateway serves one Definition
type Gateway struct {
	def    Definition
	runner AgentRunner
	logger *slog.Logger
}

// New creates a gateway for def
func New(def Definition, runner AgentRunner, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		def:    def,
		runner: runner,
		logger: logger.With("gateway", def.Name, "agent", def.AgentID),
	}
}

// Name returns the gateway name
func (g *Gateway) Name() string {
	return g.def.Name
}

// Path returns the route path of the gateway
func (g *Gateway) Path() string {
	return g.def.Path
}

// Handle is the gin handler for POST requests
func (g *Gateway) Handle(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("gateway panic", "panic", r)
			g.fail(c, http.StatusInternalServerError, MsgInternalError)
		}
	}()

	// Missing secrets disable every gateway regardless of the request
	if !g.runner.Configured() {
		g.logger.Error("missing upstream credentials (api key / project id)")
		g.fail(c, http.StatusInternalServerError, MsgNotConfigured)
		return
	}

	body, ok := g.readBody(c)
	if !ok {
		msg, _ := g.def.Validate(nil)
		g.fail(c, http.StatusBadRequest, msg)
		return
	}
	if msg, ok := g.def.Validate(body); !ok {
		g.fail(c, http.StatusBadRequest, msg)
		return
	}

	payload, err := g.def.Payload(body)
	if err != nil {
		g.logger.Error("build upstream payload", "error", err)
		g.fail(c, http.StatusInternalServerError, MsgInternalError)
		return
	}

	resp, err := g.runner.Run(c.Request.Context(), g.def.AgentID, payload, g.def.Timeout)
	if err != nil {
		switch {
		case errors.Is(err, upstream.ErrTimeout):
			g.logger.Warn("upstream timed out", "timeout", g.def.Timeout)
			g.fail(c, http.StatusInternalServerError, MsgTimedOut)
		case errors.Is(err, upstream.ErrNotConfigured):
			g.fail(c, http.StatusInternalServerError, MsgNotConfigured)
		default:
			g.logger.Error("upstream call failed", "error", err)
			g.fail(c, http.StatusInternalServerError, MsgInternalError)
		}
		return
	}

	g.relay(c, resp)
}

// readBody decodes the request body as a JSON object
func (g *Gateway) readBody(c *gin.Context) (map[string]any, bool) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBodyLen))
	if err != nil {
		return nil, false
	}
	v, err := jsonx.Decode(data)
	if err != nil {
		return nil, false
	}
	body := jsonx.Object(v)
	return body, body != nil
}

// relay writes the agent response with its original status code
func (g *Gateway) relay(c *gin.Context, resp *upstream.Response) {
	if resp.IsJSON() {
		if !json.Valid(resp.Body) {
			g.logger.Error("upstream declared JSON but body does not parse",
				"status", resp.StatusCode, "bytes", len(resp.Body))
			g.fail(c, http.StatusInternalServerError, MsgInternalError)
			return
		}
		g.write(c, resp.StatusCode, "application/json; charset=utf-8", resp.Body)
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "text/plain"
	}
	g.write(c, resp.StatusCode, contentType, resp.Body)
}

func (g *Gateway) fail(c *gin.Context, status int, msg string) {
	metrics.GatewayResponses.WithLabelValues(g.def.Name, strconv.Itoa(status)).Inc()
	c.JSON(status, gin.H{"error": msg})
}

func (g *Gateway) write(c *gin.Context, status int, contentType string, body []byte) {
	metrics.GatewayResponses.WithLabelValues(g.def.Name, strconv.Itoa(status)).Inc()
	c.Data(status, contentType, body)
}
