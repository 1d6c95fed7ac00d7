package anthropic

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
	defaultBaseURL   = "https://api.anthropic.com/v1/messages"
	defaultModel     = "claude-sonnet-4-20250514"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 256
)

// Anthropic describes images with the Messages API, passing the image by URL.
type Anthropic struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// Option customizes the provider.
type Option func(*Anthropic)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Anthropic) {
		if client != nil {
			a.httpClient = client
		}
	}
}

// WithBaseURL points the provider at another messages endpoint.
func WithBaseURL(url string) Option {
	return func(a *Anthropic) { a.baseURL = url }
}

// New returns a new Anthropic provider
func New(apiKey, model string, timeout time.Duration, opts ...Option) *Anthropic {
	a := &Anthropic{
		apiKey:     strings.TrimSpace(apiKey),
		model:      strings.TrimSpace(model),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.model == "" {
		a.model = defaultModel
	}
	return a
}

func (a *Anthropic) Name() string { return "anthropic" }

type imageSource struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Describe returns the first text block of the model's reply.
func (a *Anthropic) Describe(ctx context.Context, req providers.Request) (string, error) {
	if a.apiKey == "" {
		return "", fmt.Errorf("anthropic: %w", providers.ErrNotConfigured)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body, err := json.Marshal(messagesRequest{
		Model:     a.model,
		MaxTokens: maxTokens,
		System:    req.SystemPrompt,
		Messages: []message{{
			Role: "user",
			Content: []contentBlock{
				{Type: "image", Source: &imageSource{Type: "url", URL: req.ImageURL}},
				{Type: "text", Text: req.UserPrompt},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &providers.StatusError{Provider: a.Name(), StatusCode: resp.StatusCode, Body: string(b)}
	}

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	for _, block := range out.Content {
		if block.Type == "text" {
			if text := providers.CleanText(block.Text); text != "" {
				return text, nil
			}
		}
	}
	return "", fmt.Errorf("anthropic (stop_reason=%s): %w", out.StopReason, providers.ErrEmptyContent)
}
