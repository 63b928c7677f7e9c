package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/claimcheck/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize generates a summary of the session with strict evidence mode
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)
}

// SummarizeRequest contains the input for LLM summarization
type SummarizeRequest struct {
	Session *model.Session

	// EvidenceURLs is the allowlist of URLs the summary may cite
	EvidenceURLs []string

	// Prompt overrides the default prompt when set
	Prompt string

	Model     string
	MaxTokens int
}

// SummarizeResponse contains the LLM's summary output
type SummarizeResponse struct {
	Summary    string
	CitedURLs  []string // For verification against the allowlist
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	Model   string
	APIKey  string
	BaseURL string // OpenAI-compatible endpoint (OpenAI, Ollama, vLLM, ...)
	Timeout time.Duration

	// StrictEvidence rejects summaries citing URLs outside the allowlist
	StrictEvidence bool

	MaxTokens int
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(c model.LLMConfig) Config {
	return Config{
		Model:          c.Model,
		APIKey:         c.APIKey,
		BaseURL:        c.BaseURL,
		Timeout:        c.Timeout,
		StrictEvidence: c.StrictEvidence,
		MaxTokens:      c.MaxTokens,
	}
}

// BuildPrompt constructs the default summarization prompt
func BuildPrompt(sess *model.Session, evidenceURLs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are summarizing the results of an automated fact check. The verdicts below come from verification agents; do not re-judge the claims.

CRITICAL RULES:
1. You MUST ONLY cite URLs from this allowed list:
%s

2. DO NOT infer, speculate, or cite external sources beyond this list.
3. If a claim has no verdict yet, or its verdict is "error", say it was not checked.
4. Report verdicts exactly as given.

Input (%s):
%s

Claims:
`, joinURLs(evidenceURLs), sess.InputType, truncate(sess.Input, 500))

	for _, c := range sess.Claims {
		fmt.Fprintf(&b, "- [%d] %s\n", c.ID, c.ShortClaim)
		if r := c.EvidenceResult; r != nil {
			fmt.Fprintf(&b, "  Verdict: %s (confidence %d%%)\n", r.Verdict, r.Confidence)
			if r.Explanation != "" {
				fmt.Fprintf(&b, "  Explanation: %s\n", truncate(r.Explanation, 400))
			}
		} else {
			b.WriteString("  Verdict: not checked\n")
		}
		if len(c.Sources) > 0 {
			domains := make([]string, 0, len(c.Sources))
			for _, s := range c.Sources {
				domains = append(domains, fmt.Sprintf("%s (%.2f)", s.Domain, s.DomainCredScore))
			}
			fmt.Fprintf(&b, "  Sources: %s\n", strings.Join(domains, ", "))
		}
	}

	b.WriteString("\nProvide a 3-4 sentence summary of what was checked and what the verdicts were.")
	return b.String()
}

func joinURLs(urls []string) string {
	if len(urls) == 0 {
		return "(No evidence URLs available)"
	}
	var b strings.Builder
	for i, url := range urls {
		if i >= 20 { // Limit to first 20 to avoid token bloat
			fmt.Fprintf(&b, "\n... and %d more URLs", len(urls)-20)
			break
		}
		fmt.Fprintf(&b, "\n- %s", url)
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
