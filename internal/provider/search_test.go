package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"assistbot/internal/domain"
)

const ddgFixture = `{
	"Heading": "Go (programming language)",
	"Abstract": "Go is a statically typed language.",
	"AbstractURL": "https://example.org/go",
	"Answer": "",
	"RelatedTopics": [
		{"Text": "Goroutines are lightweight threads."},
		{"Text": ""}
	]
}`

func TestSearch_SummarizesInstantAnswers(t *testing.T) {
	ddg := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "" {
			rw.WriteHeader(http.StatusBadRequest)
			return
		}
		rw.Write([]byte(ddgFixture))
	}))
	t.Cleanup(ddg.Close)
	lmSrv := newFakeOpenAI(t, "go is a language, in summary")

	s := NewWebSearch(WebSearchConfig{
		Endpoint:     ddg.URL,
		LM:           NewOpenAI(OpenAIConfig{APIBase: lmSrv.URL, Logger: testLogger()}),
		SystemPrompt: "summarize",
		Logger:       testLogger(),
	})

	result, err := s.Search(context.Background(), "golang")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Summary != "go is a language, in summary" {
		t.Errorf("unexpected summary: %q", result.Summary)
	}
	if len(result.Raw) != 2 {
		t.Fatalf("expected abstract + one topic, got %d: %v", len(result.Raw), result.Raw)
	}
	if !strings.Contains(result.Raw[0], "statically typed") {
		t.Errorf("abstract missing from raw results: %v", result.Raw)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	s := NewWebSearch(WebSearchConfig{Logger: testLogger()})
	_, err := s.Search(context.Background(), "   ")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSearch_UpstreamRateLimited(t *testing.T) {
	ddg := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(ddg.Close)

	s := NewWebSearch(WebSearchConfig{Endpoint: ddg.URL, Logger: testLogger()})
	_, err := s.Search(context.Background(), "golang")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestSearchPrompt_IncludesRawResults(t *testing.T) {
	prompt := searchPrompt("golang", []string{"result one", "result two"})
	if !strings.Contains(prompt, `"golang"`) {
		t.Error("query missing from prompt")
	}
	if !strings.Contains(prompt, "result one") || !strings.Contains(prompt, "result two") {
		t.Error("raw results missing from prompt")
	}
}

func TestAnalyzer_DegradesForPDF(t *testing.T) {
	a := NewAnalyzer(AnalyzerConfig{Logger: testLogger()})
	got, err := a.Analyze(context.Background(), []byte("%PDF-1.4 ..."), "application/pdf")
	if err != nil {
		t.Fatalf("pdf analysis must not fail: %v", err)
	}
	if !strings.Contains(got, "application/pdf") {
		t.Errorf("description should name the media kind: %q", got)
	}
}

func TestAnalyzer_EmptyFile(t *testing.T) {
	a := NewAnalyzer(AnalyzerConfig{Logger: testLogger()})
	_, err := a.Analyze(context.Background(), nil, "image/png")
	if !errors.Is(err, domain.ErrAnalysisFailed) {
		t.Fatalf("expected ErrAnalysisFailed, got %v", err)
	}
}
