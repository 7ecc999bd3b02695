package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"assistbot/internal/domain"
)

const (
	searchTimeout   = 15 * time.Second
	userAgentString = "Assistbot/0.1"
	defaultEndpoint = "https://api.duckduckgo.com"
)

// WebSearch implements domain.SearchService: raw results from the DuckDuckGo
// Instant Answer API (optionally the rendered HTML results page as fallback),
// summarized by the language model.
type WebSearch struct {
	endpoint string
	client   *http.Client
	lm       *OpenAI
	browser  *BrowserSearch
	system   string
	logger   *slog.Logger
}

type WebSearchConfig struct {
	Endpoint     string // override for tests
	LM           *OpenAI
	Browser      *BrowserSearch // nil disables the fallback
	SystemPrompt string
	Logger       *slog.Logger
}

func NewWebSearch(cfg WebSearchConfig) *WebSearch {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	return &WebSearch{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: searchTimeout},
		lm:       cfg.LM,
		browser:  cfg.Browser,
		system:   cfg.SystemPrompt,
		logger:   cfg.Logger,
	}
}

type ddgResponse struct {
	Heading       string `json:"Heading"`
	Abstract      string `json:"Abstract"`
	AbstractURL   string `json:"AbstractURL"`
	Answer        string `json:"Answer"`
	RelatedTopics []struct {
		Text string `json:"Text"`
	} `json:"RelatedTopics"`
}

func (s *WebSearch) Search(ctx context.Context, query string) (*domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query: %w", domain.ErrValidation)
	}

	raw, err := s.instantAnswers(ctx, query)
	if err != nil {
		return nil, err
	}

	if len(raw) == 0 && s.browser != nil {
		raw, err = s.browser.Results(ctx, query)
		if err != nil {
			s.logger.Warn("browser search fallback failed", "query", query, "err", err)
		}
	}

	summary, err := s.lm.Complete(ctx, s.system, searchPrompt(query, raw))
	if err != nil {
		return nil, err
	}

	return &domain.SearchResult{Raw: raw, Summary: summary}, nil
}

func (s *WebSearch) instantAnswers(ctx context.Context, query string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/?q=%s&format=json&no_html=1&skip_disambig=1",
		s.endpoint, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgentString)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %v: %w", err, domain.ErrServiceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("search API: %w", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned %d: %w", resp.StatusCode, domain.ErrServiceUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var ddg ddgResponse
	if err := json.Unmarshal(body, &ddg); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	var results []string
	if ddg.Abstract != "" {
		results = append(results, fmt.Sprintf("%s: %s (%s)", ddg.Heading, ddg.Abstract, ddg.AbstractURL))
	}
	if ddg.Answer != "" {
		results = append(results, "Answer: "+ddg.Answer)
	}
	for i, topic := range ddg.RelatedTopics {
		if i >= 5 {
			break
		}
		if topic.Text != "" {
			results = append(results, topic.Text)
		}
	}
	return results, nil
}

func searchPrompt(query string, raw []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Please provide a comprehensive and informative response about: %q\n\n", query)
	b.WriteString("Include:\n1. Key information and facts\n2. Current context and relevance\n" +
		"3. Multiple perspectives if applicable\n4. Helpful resources or suggestions\n")
	if len(raw) > 0 {
		b.WriteString("\nSearch results to draw from:\n")
		for _, r := range raw {
			b.WriteString("- " + r + "\n")
		}
	}
	return b.String()
}
