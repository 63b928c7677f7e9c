package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/ppiankov/claimcheck/internal/jsonx"
	"github.com/ppiankov/claimcheck/internal/model"
)

// Route paths of the four gateways
const (
	PathExtract    = "/api/claims"
	PathVerify     = "/api/claim-verify"
	PathSourceCred = "/api/source-cred"
	PathAssess     = "/api/claim-assess"
)

// Extract forwards the raw input text to the claim extraction agent
func Extract(agentID string, cfg model.AgentTimeouts) Definition {
	return Definition{
		Name:    "extract",
		Path:    PathExtract,
		AgentID: agentID,
		Timeout: cfg.Extract,
		Validate: func(body map[string]any) (string, bool) {
			const msg = "Missing or invalid 'query' in body"
			query, ok := body["query"].(string)
			return msg, ok && query != ""
		},
		Payload: func(body map[string]any) (any, error) {
			return map[string]any{"query": body["query"]}, nil
		},
	}
}

// verifyQuery is encoded as the verify agent's query string
type verifyQuery struct {
	ClaimID  any `json:"claim_id"`
	Claim    any `json:"claim"`
	Snippets any `json:"snippets"`
}

// Verify forwards a claim and its known snippets to the logic/tonality agent
func Verify(agentID string, cfg model.AgentTimeouts) Definition {
	return Definition{
		Name:    "verify",
		Path:    PathVerify,
		AgentID: agentID,
		Timeout: cfg.Verify,
		Validate: func(body map[string]any) (string, bool) {
			return "Missing claim_id or claim", jsonx.Truthy(body["claim_id"]) && jsonx.Truthy(body["claim"])
		},
		Payload: func(body map[string]any) (any, error) {
			snippets := body["snippets"]
			if snippets == nil {
				snippets = []any{}
			}
			return encodedQuery(verifyQuery{
				ClaimID:  body["claim_id"],
				Claim:    body["claim"],
				Snippets: snippets,
			})
		},
	}
}

type sourceCredQuery struct {
	ClaimID any `json:"claim_id"`
	Domains any `json:"domains"`
}

// SourceCred forwards a claim's domains to the source credibility agent
func SourceCred(agentID string, cfg model.AgentTimeouts) Definition {
	return Definition{
		Name:    "source-cred",
		Path:    PathSourceCred,
		AgentID: agentID,
		Timeout: cfg.SourceCred,
		Validate: func(body map[string]any) (string, bool) {
			_, isArray := jsonx.Array(body["domains"])
			return "Missing claim_id or domains[]", jsonx.Truthy(body["claim_id"]) && isArray
		},
		Payload: func(body map[string]any) (any, error) {
			return encodedQuery(sourceCredQuery{
				ClaimID: body["claim_id"],
				Domains: body["domains"],
			})
		},
	}
}

type assessBody struct {
	ClaimID any    `json:"claim_id"`
	Query   string `json:"query"`
}

// Assess forwards a plain instruction string to the evidence agent. Unlike
// verify and source-cred the query is not a JSON-encoded payload.
func Assess(agentID string, cfg model.AgentTimeouts) Definition {
	return Definition{
		Name:    "assess",
		Path:    PathAssess,
		AgentID: agentID,
		Timeout: cfg.Assess,
		Validate: func(body map[string]any) (string, bool) {
			ok := jsonx.Truthy(body["claim_id"]) && (jsonx.Truthy(body["claim"]) || jsonx.Truthy(body["query"]))
			return "Missing claim_id and claim/query", ok
		},
		Payload: func(body map[string]any) (any, error) {
			query, ok := body["query"].(string)
			if !ok || query == "" {
				if body["query"] != nil {
					query = jsonx.String(body["query"])
				} else {
					query = "Verify: " + jsonx.String(body["claim"])
				}
			}
			return assessBody{ClaimID: body["claim_id"], Query: query}, nil
		},
	}
}

// encodedQuery wraps v as {"query": "<v as JSON>"}
func encodedQuery(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	return map[string]string{"query": string(data)}, nil
}

// Defaults builds the four gateways from the upstream configuration
func Defaults(cfg model.UpstreamConfig, runner AgentRunner, logger *slog.Logger) []*Gateway {
	return []*Gateway{
		New(Extract(cfg.Agents.Extract, cfg.Timeouts), runner, logger),
		New(Verify(cfg.Agents.Verify, cfg.Timeouts), runner, logger),
		New(SourceCred(cfg.Agents.SourceCred, cfg.Timeouts), runner, logger),
		New(Assess(cfg.Agents.Assess, cfg.Timeouts), runner, logger),
	}
}

// Register mounts the gateways on r
func Register(r gin.IRouter, gateways ...*Gateway) {
	for _, g := range gateways {
		r.POST(g.Path(), g.Handle)
	}
}
