// Package llm writes optional prose summaries of finished fact-check
// sessions. Summaries never change verdicts.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/claimcheck/internal/model"
)

// ErrDisabled is returned by a summarizer without a provider
var ErrDisabled = errors.New("llm summaries disabled")

// Summarizer produces session summaries through a Provider
type Summarizer struct {
	provider Provider
	config   Config
}

// NewSummarizer creates a summarizer. A disabled config yields a summarizer
// whose IsEnabled is false.
func NewSummarizer(cfg model.LLMConfig) (*Summarizer, error) {
	config := ConfigFromModel(cfg)
	if !cfg.Enabled {
		return &Summarizer{config: config}, nil
	}

	provider, err := NewOpenAIProvider(config)
	if err != nil {
		return nil, fmt.Errorf("create llm provider: %w", err)
	}
	return &Summarizer{provider: provider, config: config}, nil
}

// NewSummarizerWithProvider wraps an existing provider
func NewSummarizerWithProvider(provider Provider, config Config) *Summarizer {
	return &Summarizer{provider: provider, config: config}
}

// IsEnabled reports whether a provider is configured
func (s *Summarizer) IsEnabled() bool {
	return s.provider != nil
}

// ProviderName returns the provider name, or "" when disabled
func (s *Summarizer) ProviderName() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// Summarize returns a summary of sess citing only its evidence URLs
func (s *Summarizer) Summarize(ctx context.Context, sess *model.Session) (string, error) {
	if s.provider == nil {
		return "", ErrDisabled
	}

	resp, err := s.provider.Summarize(ctx, SummarizeRequest{
		Session:      sess,
		EvidenceURLs: sess.EvidenceURLs(),
		Model:        s.config.Model,
		MaxTokens:    s.config.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Summary, nil
}
