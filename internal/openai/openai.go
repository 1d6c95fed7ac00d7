package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ohong/poof/internal/providers"
)

const (
	defaultBaseURL = "https://api.openai.com/v1/chat/completions"
	defaultModel   = "gpt-4o-mini"
)

// OpenAI is a provider for OpenAI chat completions with image input.
type OpenAI struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// Option customizes the provider.
type Option func(*OpenAI)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *OpenAI) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithBaseURL points the provider at another chat completions endpoint.
func WithBaseURL(url string) Option {
	return func(o *OpenAI) { o.baseURL = url }
}

// New returns a new OpenAI provider
func New(apiKey, model string, timeout time.Duration, opts ...Option) *OpenAI {
	o := &OpenAI{
		apiKey:     strings.TrimSpace(apiKey),
		model:      strings.TrimSpace(model),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.model == "" {
		o.model = defaultModel
	}
	return o
}

func (o *OpenAI) Name() string { return "openai" }

// Describe sends the image by URL and returns the first choice's content.
func (o *OpenAI) Describe(ctx context.Context, req providers.Request) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("openai: %w", providers.ErrNotConfigured)
	}

	payload := map[string]interface{}{
		"model": o.model,
		"messages": []map[string]interface{}{
			{
				"role":    "system",
				"content": req.SystemPrompt,
			},
			{
				"role": "user",
				"content": []map[string]interface{}{
					{
						"type": "image_url",
						"image_url": map[string]string{
							"url": req.ImageURL,
						},
					},
					{
						"type": "text",
						"text": req.UserPrompt,
					},
				},
			},
		},
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &providers.StatusError{Provider: o.Name(), StatusCode: resp.StatusCode, Body: string(body)}
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
				Refusal string `json:"refusal"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices: %w", providers.ErrEmptyContent)
	}

	choice := response.Choices[0]
	text := providers.CleanText(choice.Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai (finish_reason=%s refusal=%q): %w", choice.FinishReason, choice.Message.Refusal, providers.ErrEmptyContent)
	}
	return text, nil
}
