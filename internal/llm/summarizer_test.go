package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/claimcheck/internal/model"
)

// MockProvider implements the Provider interface for testing
type MockProvider struct {
	name     string
	response *SummarizeResponse
	err      error
	last     SummarizeRequest
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error) {
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func TestNewSummarizer_Disabled(t *testing.T) {
	summarizer, err := NewSummarizer(model.LLMConfig{Enabled: false})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if summarizer.IsEnabled() {
		t.Error("Expected summarizer to be disabled")
	}
	if summarizer.ProviderName() != "" {
		t.Error("Expected empty provider name when disabled")
	}

	_, err = summarizer.Summarize(context.Background(), testSession())
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Expected ErrDisabled, got %v", err)
	}
}

func TestNewSummarizer_EnabledWithoutKey(t *testing.T) {
	if _, err := NewSummarizer(model.LLMConfig{Enabled: true}); err == nil {
		t.Error("Expected error for enabled summarizer without API key")
	}
}

func TestNewSummarizer_Enabled(t *testing.T) {
	summarizer, err := NewSummarizer(model.LLMConfig{Enabled: true, APIKey: "k"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !summarizer.IsEnabled() || summarizer.ProviderName() != "openai" {
		t.Errorf("Expected enabled openai summarizer, got %q", summarizer.ProviderName())
	}
}

func TestSummarizer_Summarize_PassesEvidenceURLs(t *testing.T) {
	mock := &MockProvider{name: "mock", response: &SummarizeResponse{Summary: "done"}}
	summarizer := NewSummarizerWithProvider(mock, Config{Model: "m", MaxTokens: 50})

	got, err := summarizer.Summarize(context.Background(), testSession())
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if got != "done" {
		t.Errorf("Expected summary 'done', got %q", got)
	}
	if len(mock.last.EvidenceURLs) != 1 || mock.last.EvidenceURLs[0] != "https://example.com/1" {
		t.Errorf("Unexpected evidence URLs: %v", mock.last.EvidenceURLs)
	}
	if mock.last.Model != "m" || mock.last.MaxTokens != 50 {
		t.Errorf("Config not forwarded: %+v", mock.last)
	}
}

func TestSummarizer_Summarize_ProviderError(t *testing.T) {
	mock := &MockProvider{name: "mock", err: errors.New("rate limited")}
	summarizer := NewSummarizerWithProvider(mock, Config{})

	if _, err := summarizer.Summarize(context.Background(), testSession()); err == nil {
		t.Error("Expected provider error")
	}
}

func TestBuildPrompt(t *testing.T) {
	sess := testSession()
	prompt := BuildPrompt(sess, sess.EvidenceURLs())

	for _, want := range []string{
		"- https://example.com/1",
		"[1] Water boils at 100C",
		"Verdict: True (confidence 92%)",
		"Standard pressure boiling point.",
		"nist.gov (0.95)",
		"[2] The sun is cold",
		"Verdict: not checked",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}
}

func TestBuildPrompt_NoEvidence(t *testing.T) {
	sess := model.NewSession("s")
	if !strings.Contains(BuildPrompt(sess, nil), "(No evidence URLs available)") {
		t.Error("Expected placeholder for empty allowlist")
	}
}
