package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"assistbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newFakeOpenAI(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(rw, r)
			return
		}
		var req oaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			rw.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(rw).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": reply}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete_HappyPath(t *testing.T) {
	srv := newFakeOpenAI(t, "the answer")
	lm := NewOpenAI(OpenAIConfig{APIBase: srv.URL, APIKey: "test", Logger: testLogger()})

	got, err := lm.Complete(context.Background(), "be helpful", "what is up")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "the answer" {
		t.Errorf("unexpected reply: %q", got)
	}
}

func TestComplete_NonOKStatusMapsToServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	lm := NewOpenAI(OpenAIConfig{APIBase: srv.URL, Logger: testLogger()})
	_, err := lm.Complete(context.Background(), "s", "p")
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		json.NewEncoder(rw).Encode(map[string]any{"choices": []any{}})
	}))
	t.Cleanup(srv.Close)

	lm := NewOpenAI(OpenAIConfig{APIBase: srv.URL, Logger: testLogger()})
	_, err := lm.Complete(context.Background(), "s", "p")
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestClassify_RateLimit(t *testing.T) {
	err := fmt.Errorf("server error after 3 retries: %w",
		&httpStatusError{statusCode: http.StatusTooManyRequests, body: "slow down"})
	if !errors.Is(classify(err), domain.ErrRateLimited) {
		t.Fatal("429 must classify as ErrRateLimited")
	}

	err = fmt.Errorf("server error after 3 retries: %w",
		&httpStatusError{statusCode: http.StatusInternalServerError, body: "boom"})
	if !errors.Is(classify(err), domain.ErrServiceUnavailable) {
		t.Fatal("5xx must classify as ErrServiceUnavailable")
	}
}
