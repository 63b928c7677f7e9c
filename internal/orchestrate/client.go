package orchestrate

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

	"github.com/ppiankov/claimcheck/internal/gateway"
	"github.com/ppiankov/claimcheck/internal/jsonx"
)

// DefaultCallTimeout bounds each gateway call made by the orchestrator
const DefaultCallTimeout = 30 * time.Second

// Snippet is a known source passed to the verify step
type Snippet struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Domain  string `json:"domain,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// VerifyRequest is the body of a verify gateway call
type VerifyRequest struct {
	ClaimID  int       `json:"claim_id"`
	Claim    string    `json:"claim"`
	Snippets []Snippet `json:"snippets"`
}

// SourceCredRequest is the body of a source-credibility gateway call
type SourceCredRequest struct {
	ClaimID int      `json:"claim_id"`
	Domains []string `json:"domains"`
}

// AssessRequest is the body of an assess gateway call
type AssessRequest struct {
	ClaimID int    `json:"claim_id"`
	Query   string `json:"query"`
}

// GatewayClient calls the four gateways. Responses are decoded JSON values,
// or the raw text when the gateway did not answer with JSON.
type GatewayClient interface {
	Extract(ctx context.Context, query string) (any, error)
	Verify(ctx context.Context, req VerifyRequest) (any, error)
	SourceCredibility(ctx context.Context, req SourceCredRequest) (any, error)
	Assess(ctx context.Context, req AssessRequest) (any, error)
}

// HTTPError is a non-2xx gateway response
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// ExtractError is a non-2xx response from the extraction gateway
type ExtractError struct {
	StatusCode int
	Body       string
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("Extractor failed (%d): %s", e.StatusCode, e.Body)
}

// HTTPClient calls the gateways over HTTP
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewHTTPClient creates a client for the gateways served at baseURL
func NewHTTPClient(baseURL string, timeout time.Duration, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &HTTPClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		timeout:    timeout,
	}
}

// Extract submits the input text for claim extraction. Unlike the other
// calls it has no client-side timeout.
func (c *HTTPClient) Extract(ctx context.Context, query string) (any, error) {
	resp, err := c.post(ctx, gateway.PathExtract, map[string]string{"query": query})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read extractor response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ExtractError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	v, err := jsonx.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode extractor response: %w", err)
	}
	return v, nil
}

// Verify runs the logic/tonality check
func (c *HTTPClient) Verify(ctx context.Context, req VerifyRequest) (any, error) {
	if req.Snippets == nil {
		req.Snippets = []Snippet{}
	}
	return c.callJSON(ctx, gateway.PathVerify, req)
}

// SourceCredibility scores the given domains
func (c *HTTPClient) SourceCredibility(ctx context.Context, req SourceCredRequest) (any, error) {
	return c.callJSON(ctx, gateway.PathSourceCred, req)
}

// Assess asks for the final verdict
func (c *HTTPClient) Assess(ctx context.Context, req AssessRequest) (any, error) {
	return c.callJSON(ctx, gateway.PathAssess, req)
}

// callJSON posts body under the call timeout and decodes the answer by its
// content type. Non-2xx answers become an *HTTPError carrying the body text.
func (c *HTTPClient) callJSON(ctx context.Context, path string, body any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.post(ctx, path, body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s timed out after %v", path, c.timeout)
		}
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}

	var parsed any
	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json")
	if isJSON {
		parsed, err = jsonx.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s response: %w", path, err)
		}
	} else {
		parsed = string(data)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: jsonx.String(parsed)}
	}
	return parsed, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	return resp, nil
}
