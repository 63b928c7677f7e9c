// Package orchestrate runs the per-claim evidence sequence
// verify -> source credibility -> assess against the gateways.
package orchestrate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ppiankov/claimcheck/internal/jsonx"
	"github.com/ppiankov/claimcheck/internal/metrics"
	"github.com/ppiankov/claimcheck/internal/model"
)

// Sink receives partial and final results for a claim. fn runs against the
// current stored claim, so concurrent updates to other claims are kept.
type Sink interface {
	MergeClaim(ctx context.Context, id int, fn func(*model.ProcessedClaim)) error
}

// Options tune the orchestration
type Options struct {
	// TolerateSourceCredFailure keeps the current sources and continues when
	// the source-credibility call fails, instead of ending the run.
	TolerateSourceCredFailure bool
}

// Orchestrator drives the evidence sequence for one claim at a time
type Orchestrator struct {
	client GatewayClient
	opts   Options
	logger *slog.Logger
}

// New creates an orchestrator
func New(client GatewayClient, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{client: client, opts: opts, logger: logger}
}

// Run executes the sequence for claim and stores the outcome through sink.
// Any failed step ends the run; the stored evidence result then has verdict
// "error", confidence 0 and the failure message as explanation. The returned
// error is that failure.
func (o *Orchestrator) Run(ctx context.Context, claim model.ProcessedClaim, sink Sink) (*model.EvidenceResult, error) {
	logger := o.logger.With("claim_id", claim.ID)

	result, err := o.run(ctx, claim, sink, logger)
	if err != nil {
		logger.Warn("evidence check failed", "error", err)
		metrics.Orchestrations.WithLabelValues("error").Inc()

		result = model.NewErrorEvidenceResult(claim.ShortClaim, err)
		if serr := sink.MergeClaim(ctx, claim.ID, func(c *model.ProcessedClaim) {
			c.EvidenceResult = result
		}); serr != nil {
			return result, errors.Join(err, serr)
		}
		return result, err
	}

	metrics.Orchestrations.WithLabelValues("success").Inc()
	logger.Info("evidence check finished", "verdict", result.Verdict, "confidence", result.Confidence)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, claim model.ProcessedClaim, sink Sink, logger *slog.Logger) (*model.EvidenceResult, error) {
	// 1) verify
	verifyResp, err := o.client.Verify(ctx, VerifyRequest{
		ClaimID:  claim.ID,
		Claim:    claim.ShortClaim,
		Snippets: snippetsFromSources(claim.Sources),
	})
	if err != nil {
		return nil, err
	}
	verify := jsonx.Object(verifyResp)

	checks := jsonx.Object(verify["claim_checks"])
	if checks != nil {
		if err := sink.MergeClaim(ctx, claim.ID, func(c *model.ProcessedClaim) {
			mergeChecks(c, checks)
		}); err != nil {
			return nil, err
		}
	}
	snippetChecks, _ := jsonx.Array(verify["snippet_checks"])

	// 2) source credibility
	domains := Domains(claim.Sources, snippetChecks)
	var credSources []model.SourceCredibility
	if len(domains) > 0 {
		credResp, err := o.client.SourceCredibility(ctx, SourceCredRequest{ClaimID: claim.ID, Domains: domains})
		switch {
		case err != nil && !o.opts.TolerateSourceCredFailure:
			return nil, err
		case err != nil:
			logger.Warn("source credibility failed, keeping current sources", "error", err)
		default:
			if list, ok := jsonx.Array(jsonx.Object(credResp)["sources"]); ok {
				credSources = parseSources(list)
				if err := sink.MergeClaim(ctx, claim.ID, func(c *model.ProcessedClaim) {
					c.Sources = credSources
				}); err != nil {
					return nil, err
				}
			}
		}
	} else {
		logger.Debug("no domains, skipping source credibility")
	}

	// 3) assess
	assessResp, err := o.client.Assess(ctx, AssessRequest{
		ClaimID: claim.ID,
		Query:   "Verify claim: " + claim.ShortClaim,
	})
	if err != nil {
		return nil, err
	}
	result := evidenceResult(jsonx.Object(assessResp), verify, claim.ShortClaim)

	err = sink.MergeClaim(ctx, claim.ID, func(c *model.ProcessedClaim) {
		if checks != nil {
			mergeChecks(c, checks)
		}
		c.EvidenceResult = result
		if c.Sources == nil {
			c.Sources = credSources
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Domains returns the union of the non-empty domains of sources and snippet
// checks, in first-seen order with sources first.
func Domains(sources []model.SourceCredibility, snippetChecks []any) []string {
	seen := make(map[string]bool)
	var domains []string
	add := func(d string) {
		if d != "" && !seen[d] {
			seen[d] = true
			domains = append(domains, d)
		}
	}
	for _, s := range sources {
		add(s.Domain)
	}
	for _, sc := range snippetChecks {
		if d := jsonx.Object(sc)["domain"]; jsonx.Truthy(d) {
			add(jsonx.String(d))
		}
	}
	return domains
}

func snippetsFromSources(sources []model.SourceCredibility) []Snippet {
	snippets := make([]Snippet, 0, len(sources))
	for _, s := range sources {
		title := s.Title
		if title == "" {
			title = s.Domain
		}
		snippet := s.Rationale
		if snippet == "" {
			snippet = s.Snippet
		}
		snippets = append(snippets, Snippet{
			Title:   title,
			URL:     s.URL,
			Domain:  s.Domain,
			Snippet: snippet,
		})
	}
	return snippets
}

func mergeChecks(c *model.ProcessedClaim, raw map[string]any) {
	if c.ClaimChecks == nil {
		c.ClaimChecks = &model.ClaimCheck{}
	}
	c.ClaimChecks.Merge(raw)
}

func parseSources(list []any) []model.SourceCredibility {
	sources := make([]model.SourceCredibility, 0, len(list))
	for _, e := range list {
		obj := jsonx.Object(e)
		if obj == nil {
			continue
		}
		score, _ := jsonx.Number(obj["domain_cred_score"])
		sources = append(sources, model.SourceCredibility{
			Domain:          jsonx.String(obj["domain"]),
			DomainCredScore: score,
			TrustLabels:     jsonx.Strings(obj["trust_labels"]),
			Rationale:       jsonx.String(obj["rationale"]),
			Title:           jsonx.String(obj["title"]),
			URL:             jsonx.String(obj["url"]),
			Snippet:         jsonx.String(obj["snippet"]),
		})
	}
	return sources
}

func evidenceResult(assess, verify map[string]any, shortClaim string) *model.EvidenceResult {
	return &model.EvidenceResult{
		Claim:              stringOr(assess["claim"], shortClaim),
		Verdict:            stringOr(assess["verdict"], model.VerdictInsufficientEvidence),
		Confidence:         Confidence(assess["confidence"]),
		SupportingEvidence: evidenceItems(assess["supporting_evidence"]),
		RefutingEvidence:   evidenceItems(assess["refuting_evidence"]),
		Explanation:        stringOr(assess["explanation"], stringOr(verify["explanation"], "")),
	}
}

func evidenceItems(v any) []model.EvidenceItem {
	list, _ := jsonx.Array(v)
	items := make([]model.EvidenceItem, 0, len(list))
	for _, e := range list {
		obj := jsonx.Object(e)
		if obj == nil {
			obj = map[string]any{}
		}
		items = append(items, model.EvidenceItem{
			Title:   stringOr(obj["title"], stringOr(obj["domain"], "")),
			URL:     stringOr(obj["url"], ""),
			Snippet: stringOr(obj["snippet"], stringOr(obj["rationale"], "")),
		})
	}
	return items
}

// stringOr stringifies v unless it is null or absent
func stringOr(v any, fallback string) string {
	if v == nil {
		return fallback
	}
	return jsonx.String(v)
}
