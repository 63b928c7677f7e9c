package model

// ExtractedClaim represents a factual assertion returned by the extraction agent
type ExtractedClaim struct {
	ID                  int      `json:"id"`                    // Unique within a session, display order
	ShortClaim          string   `json:"short_claim"`           // Canonical claim statement (never empty)
	Entities            []string `json:"entities"`              // Named entities mentioned
	PossibleDates       []string `json:"possible_dates"`        // Date-like strings, unvalidated
	ClaimType           string   `json:"claim_type"`            // Free-form tag, "unknown" by default
	OriginalTextExcerpt string   `json:"original_text_excerpt"` // Best-effort excerpt of the input
}

// ClaimTypeUnknown is the default claim classification
const ClaimTypeUnknown = "unknown"

// ClaimCheck is the logic/tonality pass for a claim
type ClaimCheck struct {
	LogicalScore  float64  `json:"logical_score"`
	LogicalIssue  string   `json:"logical_issue"`
	TonalityScore float64  `json:"tonality_score"` // Higher = more emotionally loaded
	TonalityFlags []string `json:"tonality_flags"`
	ShortReason   string   `json:"short_reason"`
}

// Merge overlays the fields present in raw onto c. Fields missing from raw keep
// their current value.
func (c *ClaimCheck) Merge(raw map[string]any) {
	if v, ok := raw["logical_score"].(float64); ok {
		c.LogicalScore = v
	}
	if v, ok := raw["logical_issue"].(string); ok {
		c.LogicalIssue = v
	}
	if v, ok := raw["tonality_score"].(float64); ok {
		c.TonalityScore = v
	}
	if v, ok := raw["tonality_flags"].([]any); ok {
		flags := make([]string, 0, len(v))
		for _, f := range v {
			if s, ok := f.(string); ok {
				flags = append(flags, s)
			}
		}
		c.TonalityFlags = flags
	}
	if v, ok := raw["short_reason"].(string); ok {
		c.ShortReason = v
	}
}

// ProcessedClaim is an extracted claim enriched by the evidence orchestration
type ProcessedClaim struct {
	ExtractedClaim
	Sources        []SourceCredibility `json:"sources,omitempty"`
	ClaimChecks    *ClaimCheck         `json:"claim_checks,omitempty"`
	EvidenceResult *EvidenceResult     `json:"evidence_result,omitempty"`
}
