package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ohong/poof/internal/config"
	"github.com/ohong/poof/internal/prompts"
)

const (
	defaultPollInterval     = 2 * time.Second
	defaultTransformTimeout = 120 * time.Second
	defaultTransformHTTP    = 30 * time.Second
	maxTransformResultBytes = 32 << 20

	transformWidth  = 1024
	transformHeight = 1024
)

// JobState is the lifecycle of one transform job.
type JobState string

const (
	JobSubmitted JobState = "submitted"
	JobPending   JobState = "pending"
	JobReady     JobState = "ready"
	JobFailed    JobState = "failed"
	JobTimedOut  JobState = "timed_out"
)

// Terminal reports whether polling stops in this state.
func (s JobState) Terminal() bool {
	return s == JobReady || s == JobFailed || s == JobTimedOut
}

var (
	ErrTransformNotConfigured = errors.New("image transform API key not configured")
	ErrTransformTimeout       = errors.New("image transform timed out")
)

// TransformResult is the outcome of one transform. URL is set only when
// State is JobReady and always points at durable storage.
type TransformResult struct {
	State JobState
	URL   string
	Err   error
}

// OK reports whether a durable transformed image was produced.
func (r TransformResult) OK() bool {
	return r.State == JobReady && r.URL != ""
}

// TransformService drives the asynchronous studio-image API.
type TransformService struct {
	apiKey       string
	apiURL       string
	store        BlobStore
	logger       *slog.Logger
	httpClient   *http.Client
	pollInterval time.Duration
	timeout      time.Duration
	sleep        func(context.Context, time.Duration) error
	now          func() time.Time
}

// TransformOption customizes the service.
type TransformOption func(*TransformService)

// WithTransformHTTPClient overrides the default HTTP client.
func WithTransformHTTPClient(client *http.Client) TransformOption {
	return func(s *TransformService) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithPollInterval overrides the delay between status checks.
func WithPollInterval(d time.Duration) TransformOption {
	return func(s *TransformService) { s.pollInterval = d }
}

// WithTransformTimeout overrides the polling ceiling.
func WithTransformTimeout(d time.Duration) TransformOption {
	return func(s *TransformService) { s.timeout = d }
}

// WithSleeper overrides how poll waits are performed (useful for tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) TransformOption {
	return func(s *TransformService) { s.sleep = sleep }
}

// WithClock overrides the time source used for the polling ceiling.
func WithClock(now func() time.Time) TransformOption {
	return func(s *TransformService) { s.now = now }
}

func NewTransformService(cfg *config.Config, store BlobStore, logger *slog.Logger, opts ...TransformOption) *TransformService {
	s := &TransformService{
		apiKey:       strings.TrimSpace(cfg.BFLAPIKey),
		apiURL:       strings.TrimSpace(cfg.BFLAPIURL),
		store:        store,
		logger:       logger,
		httpClient:   &http.Client{Timeout: defaultTransformHTTP},
		pollInterval: cfg.TransformPollInterval,
		timeout:      cfg.TransformTimeout,
		sleep:        sleepContext,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pollInterval <= 0 {
		s.pollInterval = defaultPollInterval
	}
	if s.timeout <= 0 {
		s.timeout = defaultTransformTimeout
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

type submitResponse struct {
	ID         string `json:"id"`
	PollingURL string `json:"polling_url"`
}

type pollResponse struct {
	Status string `json:"status"`
	Result *struct {
		Sample string `json:"sample"`
	} `json:"result"`
}

// Transform renders sourceURL as a studio product shot and re-hosts the
// result under the owner's transformed/ namespace. It never returns an error;
// failures are reported through the result's State and Err.
func (s *TransformService) Transform(ctx context.Context, ownerID, sourceURL string) TransformResult {
	log := s.logger.With("source_url", sourceURL)

	if s.apiKey == "" {
		log.Warn("transform skipped", "error", ErrTransformNotConfigured)
		return TransformResult{State: JobFailed, Err: ErrTransformNotConfigured}
	}

	job, err := s.submit(ctx, sourceURL)
	if err != nil {
		log.Warn("transform submit failed", "error", err)
		return TransformResult{State: JobFailed, Err: err}
	}
	log = log.With("job_id", job.ID)

	state, sampleURL, err := s.poll(ctx, job.PollingURL)
	if state != JobReady {
		log.Warn("transform did not complete", "state", state, "error", err)
		return TransformResult{State: state, Err: err}
	}

	// The sample URL is short-lived and hosted by the provider; it is
	// downloaded right away and never handed back.
	data, err := s.download(ctx, sampleURL)
	if err != nil {
		log.Warn("transform download failed", "error", err)
		return TransformResult{State: JobFailed, Err: err}
	}

	url, err := s.store.Put(ctx, TransformedKey(ownerID, uuid.New()), data, "image/jpeg")
	if err != nil {
		log.Warn("transform re-upload failed", "error", err)
		return TransformResult{State: JobFailed, Err: err}
	}

	log.Info("transform complete", "url", url)
	return TransformResult{State: JobReady, URL: url}
}

func (s *TransformService) submit(ctx context.Context, sourceURL string) (*submitResponse, error) {
	body, err := json.Marshal(map[string]interface{}{
		"prompt":        prompts.Transform,
		"input_image":   sourceURL,
		"width":         transformWidth,
		"height":        transformHeight,
		"output_format": "jpeg",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal submit body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit transform: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("submit transform: http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode submit response: %w", err)
	}
	if out.PollingURL == "" {
		return nil, errors.New("submit transform: no polling url returned")
	}
	return &out, nil
}

// poll walks the job from submitted to a terminal state. The ceiling is
// measured from the first status check.
func (s *TransformService) poll(ctx context.Context, pollingURL string) (JobState, string, error) {
	deadline := s.now().Add(s.timeout)
	state := JobSubmitted

	for !state.Terminal() {
		status, err := s.checkStatus(ctx, pollingURL)
		if err != nil {
			return JobFailed, "", err
		}

		var sample string
		state, sample, err = nextState(status)
		if state == JobReady {
			return state, sample, nil
		}
		if state.Terminal() {
			return state, "", err
		}

		if !s.now().Before(deadline) {
			return JobTimedOut, "", ErrTransformTimeout
		}
		if err := s.sleep(ctx, s.pollInterval); err != nil {
			return JobFailed, "", err
		}
	}
	return state, "", nil
}

// nextState maps a provider status onto the job lifecycle.
func nextState(status *pollResponse) (JobState, string, error) {
	switch status.Status {
	case "Ready":
		if status.Result == nil || status.Result.Sample == "" {
			return JobFailed, "", errors.New("job ready without a result sample")
		}
		return JobReady, status.Result.Sample, nil
	case "Error", "Failed", "Request Moderated", "Content Moderated", "Task not found":
		return JobFailed, "", fmt.Errorf("job ended with status %q", status.Status)
	default:
		return JobPending, "", nil
	}
}

func (s *TransformService) checkStatus(ctx context.Context, pollingURL string) (*pollResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build poll request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll transform: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("poll transform: http %d", resp.StatusCode)
	}

	var out pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode poll response: %w", err)
	}
	return &out, nil
}

func (s *TransformService) download(ctx context.Context, sampleURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sampleURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download result: http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTransformResultBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	if len(data) > maxTransformResultBytes {
		return nil, errors.New("download result: image too large")
	}
	if len(data) == 0 {
		return nil, errors.New("download result: empty body")
	}
	return data, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
