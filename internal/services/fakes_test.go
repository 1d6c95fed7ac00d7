package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ohong/poof/internal/config"
	"github.com/ohong/poof/internal/providers"
)

const testBlobBase = "https://blobs.test/object-images"

// memBlobStore is an in-memory BlobStore that refuses overwrites.
type memBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	failOn  func(key string) bool
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != nil && m.failOn(key) {
		return "", errors.New("storage unavailable")
	}
	if _, ok := m.objects[key]; ok {
		return "", fmt.Errorf("%s: %w", key, ErrBlobExists)
	}
	m.objects[key] = append([]byte(nil), data...)
	m.types[key] = contentType
	return m.PublicURL(key), nil
}

func (m *memBlobStore) PublicURL(key string) string {
	return joinURL(testBlobBase, key)
}

func (m *memBlobStore) keysWithPrefix(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

// fakeProvider answers per image URL.
type fakeProvider struct {
	mu      sync.Mutex
	answers map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Describe(ctx context.Context, req providers.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.ImageURL)
	if err, ok := f.errs[req.ImageURL]; ok {
		return "", err
	}
	if a, ok := f.answers[req.ImageURL]; ok {
		return a, nil
	}
	return "Plain Object: A plain object resting on a table.", nil
}

// fakeClock advances only when the transform service sleeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                    "test",
		APIUrl:                 "http://localhost:8080",
		BFLAPIKey:              "bfl-test-key",
		TransformPollInterval:  2 * time.Second,
		TransformTimeout:       120 * time.Second,
		DescriptionProvider:    "fake",
		DescriptionTimeout:     5 * time.Second,
		DescriptionConcurrency: 4,
	}
}
