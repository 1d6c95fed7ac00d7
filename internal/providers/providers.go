package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Request is one single-image description request.
type Request struct {
	ImageURL     string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
}

// Provider defines the interface for a vision model that describes one image.
type Provider interface {
	Name() string
	Describe(ctx context.Context, req Request) (string, error)
}

var (
	ErrNotConfigured = errors.New("provider API key not configured")
	ErrEmptyContent  = errors.New("provider returned no text")
)

// StatusError is a non-2xx response from a provider API.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, strings.TrimSpace(e.Body))
}

// CleanText strips wrapping quotes, code fences and whitespace from model
// output. An empty result means the model produced nothing usable.
func CleanText(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
			continue
		}
		break
	}
	return s
}
