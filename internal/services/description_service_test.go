package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ohong/poof/internal/logging"
	"github.com/ohong/poof/internal/models"
	"github.com/ohong/poof/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribeAllFallsBackPerImage(t *testing.T) {
	provider := &fakeProvider{
		answers: map[string]string{
			"https://blobs.test/a.jpg": "Orange Tape: A coil of bright orange paper tape.",
			"https://blobs.test/c.jpg": "  \"Blonde Doll: A small plastic doll.\"  ",
			"https://blobs.test/d.jpg": "   ",
		},
		errs: map[string]error{
			"https://blobs.test/b.jpg": &providers.StatusError{Provider: "fake", StatusCode: 500},
		},
	}
	svc := NewDescriptionService(testConfig(), provider, logging.Discard())

	urls := []string{
		"https://blobs.test/a.jpg",
		"https://blobs.test/b.jpg",
		"https://blobs.test/c.jpg",
		"https://blobs.test/d.jpg",
	}
	got := svc.DescribeAll(context.Background(), urls)

	require.Len(t, got, 4)
	assert.Equal(t, "Orange Tape: A coil of bright orange paper tape.", got[0])
	assert.Equal(t, models.FallbackDescription, got[1])
	assert.Equal(t, "Blonde Doll: A small plastic doll.", got[2])
	assert.Equal(t, models.FallbackDescription, got[3])
	assert.Len(t, provider.calls, 4, "one request per image")
}

func TestDescribeAllEmpty(t *testing.T) {
	svc := NewDescriptionService(testConfig(), &fakeProvider{}, logging.Discard())
	assert.Empty(t, svc.DescribeAll(context.Background(), nil))
}

type blockingProvider struct{}

func (blockingProvider) Name() string { return "blocking" }

func (blockingProvider) Describe(ctx context.Context, req providers.Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestDescribeIsBoundedByTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.DescriptionTimeout = 20 * time.Millisecond
	svc := NewDescriptionService(cfg, blockingProvider{}, logging.Discard())

	start := time.Now()
	got := svc.Describe(context.Background(), "https://blobs.test/a.jpg")
	assert.Equal(t, models.FallbackDescription, got)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDescribeMissingKeyFallsBack(t *testing.T) {
	provider := &fakeProvider{errs: map[string]error{"x": providers.ErrNotConfigured}}
	svc := NewDescriptionService(testConfig(), provider, logging.Discard())
	assert.Equal(t, models.FallbackDescription, svc.Describe(context.Background(), "x"))
}

func TestNewDescriptionProvider(t *testing.T) {
	cfg := testConfig()
	for _, name := range []string{"anthropic", "openai", "gemini", ""} {
		cfg.DescriptionProvider = name
		p, err := NewDescriptionProvider(cfg)
		require.NoError(t, err, name)
		if name == "" {
			assert.Equal(t, "anthropic", p.Name())
		} else {
			assert.Equal(t, name, p.Name())
		}
	}

	cfg.DescriptionProvider = "llama"
	_, err := NewDescriptionProvider(cfg)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, providers.ErrNotConfigured))
}
