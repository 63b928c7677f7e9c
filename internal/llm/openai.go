package llm

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// ErrCitationLeak is returned when a summary cites a URL outside the allowlist
type ErrCitationLeak struct {
	URL string
}

func (e *ErrCitationLeak) Error() string {
	return fmt.Sprintf("citation leak: summary cited disallowed URL %s", e.URL)
}

// OpenAIProvider implements the Provider interface for OpenAI-compatible APIs
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Summarize generates a summary using the Chat Completions API
func (p *OpenAIProvider) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error) {
	prompt := req.Prompt
	if prompt == "" {
		prompt = BuildPrompt(req.Session, req.EvidenceURLs)
	}

	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = 1000
	}

	timeout := p.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You summarize fact-check results with strict adherence to evidence constraints.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	citedURLs := extractURLs(summary)

	if p.config.StrictEvidence {
		for _, citedURL := range citedURLs {
			if !slices.Contains(req.EvidenceURLs, citedURL) {
				return nil, &ErrCitationLeak{URL: citedURL}
			}
		}
	}

	return &SummarizeResponse{
		Summary:    summary,
		CitedURLs:  citedURLs,
		Model:      model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

var urlPattern = regexp.MustCompile(`https?://[^\s\)\]>"]+`)

// extractURLs returns the distinct URLs in text
func extractURLs(text string) []string {
	seen := make(map[string]bool)
	var unique []string
	for _, url := range urlPattern.FindAllString(text, -1) {
		url = strings.TrimRight(url, ".,;:!?")
		if !seen[url] {
			seen[url] = true
			unique = append(unique, url)
		}
	}
	return unique
}
