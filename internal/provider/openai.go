package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"assistbot/internal/domain"
)

const defaultHTTPTimeout = 120 * time.Second

// OpenAI implements domain.LanguageModel against OpenAI-compatible chat
// completion APIs.
type OpenAI struct {
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

type OpenAIConfig struct {
	APIKey  string
	APIBase string
	Model   string
	Client  *http.Client
	Logger  *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Client == nil {
		cfg.Client = SharedHTTPClient(defaultHTTPTimeout)
	}
	return &OpenAI{
		apiKey:  cfg.APIKey,
		apiBase: cfg.APIBase,
		model:   cfg.Model,
		client:  cfg.Client,
		logger:  cfg.Logger,
	}
}

type oaiRequest struct {
	Model    string       `json:"model"`
	Messages []oaiMessage `json:"messages"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// oaiContentPart supports vision-style multi-part content.
type oaiContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *oaiImagePart `json:"image_url,omitempty"`
}

type oaiImagePart struct {
	URL string `json:"url"`
}

type oaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends a single-turn completion request. Failures map to
// domain.ErrRateLimited or domain.ErrServiceUnavailable.
func (o *OpenAI) Complete(ctx context.Context, system, prompt string) (string, error) {
	messages := []oaiMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	}
	return o.chat(ctx, messages)
}

// CompleteWithImage sends a vision request with the image inlined as a data
// URL, used by the file analyzer for image uploads.
func (o *OpenAI) CompleteWithImage(ctx context.Context, system, prompt, dataURL string) (string, error) {
	messages := []oaiMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: []oaiContentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &oaiImagePart{URL: dataURL}},
		}},
	}
	return o.chat(ctx, messages)
}

func (o *OpenAI) chat(ctx context.Context, messages []oaiMessage) (string, error) {
	payload, err := json.Marshal(oaiRequest{Model: o.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	resp, err := doWithRetry(ctx, o.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, "POST",
			o.apiBase+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
		return req, nil
	}, o.logger)
	if err != nil {
		return "", classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify(err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", classify(&httpStatusError{statusCode: resp.StatusCode, body: string(body)})
	}

	var parsed oaiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty completion: %w", domain.ErrServiceUnavailable)
	}
	return parsed.Choices[0].Message.Content, nil
}
