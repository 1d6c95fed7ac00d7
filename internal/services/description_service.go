package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ohong/poof/internal/anthropic"
	"github.com/ohong/poof/internal/config"
	"github.com/ohong/poof/internal/gemini"
	"github.com/ohong/poof/internal/models"
	"github.com/ohong/poof/internal/openai"
	"github.com/ohong/poof/internal/prompts"
	"github.com/ohong/poof/internal/providers"
	"golang.org/x/sync/errgroup"
)

const descriptionMaxTokens = 256

// NewDescriptionProvider builds the provider named by DESCRIPTION_PROVIDER.
func NewDescriptionProvider(cfg *config.Config) (providers.Provider, error) {
	switch cfg.DescriptionProvider {
	case "", "anthropic":
		return anthropic.New(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.DescriptionTimeout), nil
	case "openai":
		return openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.DescriptionTimeout), nil
	case "gemini":
		return gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.DescriptionTimeout), nil
	default:
		return nil, fmt.Errorf("unknown description provider %q", cfg.DescriptionProvider)
	}
}

// DescriptionService produces one catalog label per image, one request per
// image. A failed request yields the fallback description for that image only.
type DescriptionService struct {
	provider    providers.Provider
	logger      *slog.Logger
	timeout     time.Duration
	concurrency int
}

func NewDescriptionService(cfg *config.Config, provider providers.Provider, logger *slog.Logger) *DescriptionService {
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.DescriptionConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	return &DescriptionService{
		provider:    provider,
		logger:      logger,
		timeout:     cfg.DescriptionTimeout,
		concurrency: concurrency,
	}
}

// Describe returns the label for one image, or the fallback text.
func (s *DescriptionService) Describe(ctx context.Context, imageURL string) string {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.provider.Describe(ctx, providers.Request{
		ImageURL:     imageURL,
		SystemPrompt: prompts.DescriptionSystem,
		UserPrompt:   prompts.DescriptionUser,
		MaxTokens:    descriptionMaxTokens,
	})
	if err == nil {
		text = providers.CleanText(text)
	}
	if err != nil || text == "" {
		s.logger.Warn("description failed, using fallback",
			"provider", s.provider.Name(), "image_url", imageURL, "error", err)
		return models.FallbackDescription
	}
	return text
}

// DescribeAll describes every URL concurrently. The result is aligned with
// urls and never contains an empty string.
func (s *DescriptionService) DescribeAll(ctx context.Context, urls []string) []string {
	out := make([]string, len(urls))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, url := range urls {
		g.Go(func() error {
			out[i] = s.Describe(ctx, url)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
