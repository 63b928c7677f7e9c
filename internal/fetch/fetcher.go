// Package fetch resolves URL input to readable page text before claim
// extraction.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/claimcheck/internal/jsonx"
	"github.com/ppiankov/claimcheck/internal/model"
)

// ErrDisallowed is returned when robots.txt forbids fetching a page
var ErrDisallowed = errors.New("disallowed by robots.txt")

const maxRedirects = 3

// Fetcher fetches pages and extracts their text
type Fetcher struct {
	httpClient   *http.Client
	robots       *RobotsChecker
	userAgent    string
	maxBytes     int64
	maxTextChars int
}

// NewFetcher creates a Fetcher from the input configuration
func NewFetcher(cfg model.InputConfig) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)

	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	f := &Fetcher{
		httpClient:   httpClient,
		userAgent:    cfg.UserAgent,
		maxBytes:     cfg.MaxBodyBytes,
		maxTextChars: cfg.MaxTextChars,
	}
	if cfg.RespectRobots {
		f.robots = NewRobotsChecker(cfg.UserAgent, httpClient)
	}
	return f
}

// Page is a fetched document
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Title       string
	Text        string
	FetchedAt   time.Time
}

// Fetch retrieves rawURL and extracts its readable text
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if f.robots != nil {
		allowed, err := f.robots.Allowed(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	page := &Page{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FetchedAt:   time.Now().UTC(),
	}

	if strings.HasPrefix(page.ContentType, "text/plain") {
		page.Text = collapseSpace(string(data))
	} else {
		page.Title, page.Text, err = ExtractText(string(data))
		if err != nil {
			return nil, err
		}
	}

	if f.maxTextChars > 0 {
		page.Text = jsonx.Truncate(page.Text, f.maxTextChars)
	}
	return page, nil
}

// ResolveText fetches rawURL and returns the text to extract claims from,
// prefixed with the page title when there is one
func (f *Fetcher) ResolveText(ctx context.Context, rawURL string) (string, error) {
	page, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(page.Text) == "" {
		return "", fmt.Errorf("%s: no readable text", rawURL)
	}
	if page.Title != "" && !strings.HasPrefix(page.Text, page.Title) {
		return page.Title + "\n\n" + page.Text, nil
	}
	return page.Text, nil
}
