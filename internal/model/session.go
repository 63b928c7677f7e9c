package model

import (
	"regexp"
	"strings"
	"time"
)

// RunStatus is the orchestration state of one claim
type RunStatus string

const (
	StatusIdle    RunStatus = "idle"
	StatusRunning RunStatus = "running"
	StatusDone    RunStatus = "done"
	StatusFailed  RunStatus = "failed"
)

// InputType tells whether the submitted input was a URL or free text
type InputType string

const (
	InputText InputType = "text"
	InputURL  InputType = "url"
)

// PlaceholderOverallScore is shown until real aggregate scoring exists
const PlaceholderOverallScore = 72

var urlPattern = regexp.MustCompile(`(?i)^https?://.+`)

// DetectInputType classifies the user input
func DetectInputType(input string) InputType {
	if urlPattern.MatchString(strings.TrimSpace(input)) {
		return InputURL
	}
	return InputText
}

// Session is the state of one fact-check interaction
type Session struct {
	ID           string            `json:"id"`
	Input        string            `json:"input"`
	InputType    InputType         `json:"input_type"`
	SourceURL    string            `json:"source_url,omitempty"` // Set when URL input was resolved to page text
	Claims       []ProcessedClaim  `json:"claims"`
	OverallScore *int              `json:"overall_score,omitempty"`
	Status       map[int]RunStatus `json:"status"`
	Extracting   bool              `json:"extracting"`
	Analyzing    bool              `json:"analyzing"`
	Summary      string            `json:"summary,omitempty"` // Optional LLM summary (never affects verdicts)
	Generation   int               `json:"generation"`        // Bumped by every submission
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// NewSession creates an empty session
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		Claims:    []ProcessedClaim{},
		Status:    make(map[int]RunStatus),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Reset clears the results of a previous submission and starts a new
// generation, so work begun for the old input can tell it is stale
func (s *Session) Reset(input string) {
	s.Generation++
	s.Input = input
	s.InputType = DetectInputType(input)
	s.SourceURL = ""
	s.Claims = []ProcessedClaim{}
	s.OverallScore = nil
	s.Status = make(map[int]RunStatus)
	s.Extracting = false
	s.Analyzing = false
	s.Summary = ""
}

// Claim returns the claim with the given id
func (s *Session) Claim(id int) (*ProcessedClaim, bool) {
	for i := range s.Claims {
		if s.Claims[i].ID == id {
			return &s.Claims[i], true
		}
	}
	return nil, false
}

// ClaimStatus returns the run status of a claim, idle when unknown
func (s *Session) ClaimStatus(id int) RunStatus {
	if st, ok := s.Status[id]; ok {
		return st
	}
	return StatusIdle
}

// SetStatus records the run status of a claim
func (s *Session) SetStatus(id int, st RunStatus) {
	if s.Status == nil {
		s.Status = make(map[int]RunStatus)
	}
	s.Status[id] = st
}

// EvidenceURLs returns the distinct evidence URLs referenced by the session
func (s *Session) EvidenceURLs() []string {
	seen := make(map[string]bool)
	var urls []string
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	for _, c := range s.Claims {
		for _, src := range c.Sources {
			add(src.URL)
		}
		if c.EvidenceResult == nil {
			continue
		}
		for _, e := range c.EvidenceResult.SupportingEvidence {
			add(e.URL)
		}
		for _, e := range c.EvidenceResult.RefutingEvidence {
			add(e.URL)
		}
	}
	return urls
}
