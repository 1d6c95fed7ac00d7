package gemini

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/generative-ai-go/genai"
	"github.com/ohong/poof/internal/providers"
	"google.golang.org/api/option"
)

const (
	defaultModel   = "gemini-1.5-flash"
	maxImageBytes  = 20 << 20
	defaultTimeout = 30 * time.Second
)

// Gemini is a provider for Google Gemini. Gemini cannot fetch arbitrary URLs,
// so the image is downloaded and sent inline.
type Gemini struct {
	apiKey        string
	model         string
	httpClient    *http.Client
	clientOptions []option.ClientOption
}

// Option customizes the provider.
type Option func(*Gemini)

// WithHTTPClient overrides the client used to download images.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gemini) {
		if client != nil {
			g.httpClient = client
		}
	}
}

// WithClientOptions appends options for the genai client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(g *Gemini) { g.clientOptions = append(g.clientOptions, opts...) }
}

// New returns a new Gemini provider
func New(apiKey, model string, timeout time.Duration, opts ...Option) *Gemini {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	g := &Gemini{
		apiKey:     strings.TrimSpace(apiKey),
		model:      strings.TrimSpace(model),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.model == "" {
		g.model = defaultModel
	}
	return g
}

func (g *Gemini) Name() string { return "gemini" }

// Describe downloads the image and asks Gemini for a label.
func (g *Gemini) Describe(ctx context.Context, req providers.Request) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("gemini: %w", providers.ErrNotConfigured)
	}

	format, data, err := g.fetchImage(ctx, req.ImageURL)
	if err != nil {
		return "", err
	}

	opts := append([]option.ClientOption{option.WithAPIKey(g.apiKey)}, g.clientOptions...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	if req.SystemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.SystemPrompt))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.ImageData(format, data), genai.Text(req.UserPrompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: no candidates: %w", providers.ErrEmptyContent)
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", fmt.Errorf("gemini (finish_reason=%v): %w", candidate.FinishReason, providers.ErrEmptyContent)
	}
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			if text := providers.CleanText(string(txt)); text != "" {
				return text, nil
			}
		}
	}
	return "", fmt.Errorf("gemini (finish_reason=%v): %w", candidate.FinishReason, providers.ErrEmptyContent)
}

// fetchImage downloads the image and returns its genai format ("jpeg",
// "png", "heic" ...) alongside the bytes.
func (g *Gemini) fetchImage(ctx context.Context, url string) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("gemini: build image request: %w", err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("gemini: fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("gemini: fetch image: http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", nil, fmt.Errorf("gemini: read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return "", nil, fmt.Errorf("gemini: image exceeds %d bytes", maxImageBytes)
	}
	return imageFormat(resp.Header.Get("Content-Type"), data), data, nil
}

func imageFormat(contentType string, data []byte) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	if !strings.HasPrefix(ct, "image/") {
		ct = mimetype.Detect(data).String()
	}
	if format, ok := strings.CutPrefix(ct, "image/"); ok && format != "" {
		return format
	}
	return "jpeg"
}
