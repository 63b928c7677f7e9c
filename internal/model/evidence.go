package model

import "strings"

// SourceCredibility describes one domain referenced by a claim's evidence
type SourceCredibility struct {
	Domain          string   `json:"domain"`            // Hostname, dedup key
	DomainCredScore float64  `json:"domain_cred_score"` // 0..1
	TrustLabels     []string `json:"trust_labels"`      // e.g. "reliable", "satire"
	Rationale       string   `json:"rationale"`

	// Optional fields some agents attach to a source
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// EvidenceItem is one supporting or refuting passage
type EvidenceItem struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// EvidenceResult is the terminal output of the evidence orchestration for a claim
type EvidenceResult struct {
	Claim              string         `json:"claim"`   // Claim as restated by the agent
	Verdict            string         `json:"verdict"` // Opaque, see VerdictClass
	Confidence         int            `json:"confidence"`
	SupportingEvidence []EvidenceItem `json:"supporting_evidence"`
	RefutingEvidence   []EvidenceItem `json:"refuting_evidence"`
	Explanation        string         `json:"explanation"`
}

const (
	VerdictInsufficientEvidence = "Insufficient evidence"
	VerdictError                = "error"

	// DefaultConfidence is used when the agent omits a numeric confidence
	DefaultConfidence = 30
)

// NewEmptyEvidenceResult returns a result with no evidence attached
func NewEmptyEvidenceResult(claim, explanation, verdict string, confidence int) *EvidenceResult {
	return &EvidenceResult{
		Claim:              claim,
		Verdict:            verdict,
		Confidence:         confidence,
		SupportingEvidence: []EvidenceItem{},
		RefutingEvidence:   []EvidenceItem{},
		Explanation:        explanation,
	}
}

// NewErrorEvidenceResult returns the record stored when an orchestration fails
func NewErrorEvidenceResult(claim string, err error) *EvidenceResult {
	msg := "Unknown error"
	if err != nil {
		msg = err.Error()
	}
	return NewEmptyEvidenceResult(claim, msg, VerdictError, 0)
}

// DisplayClass is the small taxonomy verdicts and scores are rendered with
type DisplayClass string

const (
	ClassSuccess     DisplayClass = "success"
	ClassDestructive DisplayClass = "destructive"
	ClassWarning     DisplayClass = "warning"
	ClassSecondary   DisplayClass = "secondary"
)

// VerdictClass maps an opaque verdict string onto the display taxonomy
func VerdictClass(verdict string) DisplayClass {
	switch strings.ToLower(verdict) {
	case "true", "mostly true":
		return ClassSuccess
	case "false", "likely false", "mostly false":
		return ClassDestructive
	case "mixed", "unverified", "insufficient evidence":
		return ClassWarning
	default:
		return ClassSecondary
	}
}

// CredibilityClass maps a domain credibility score onto the display taxonomy
func CredibilityClass(score float64) DisplayClass {
	if score >= 0.8 {
		return ClassSuccess
	}
	if score >= 0.5 {
		return ClassWarning
	}
	return ClassDestructive
}
