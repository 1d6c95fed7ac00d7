package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ohong/poof/internal/models"
	"github.com/ohong/poof/pkg/validation"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentTransforms = validation.MaxFilesPerUpload

// ownsReference reports whether rawURL names an object under prefix. Dot
// segments, literal or percent-encoded, could climb out of the prefix once
// resolved, so any such path is refused.
func ownsReference(rawURL, prefix string) bool {
	if !strings.HasPrefix(rawURL, prefix) {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

// Transformer renders one image as a studio shot and re-hosts it.
type Transformer interface {
	Transform(ctx context.Context, ownerID, sourceURL string) TransformResult
}

// Describer labels a batch of images, one label per URL.
type Describer interface {
	DescribeAll(ctx context.Context, urls []string) []string
}

// EntryCreator persists a new catalog entry.
type EntryCreator interface {
	Create(ctx context.Context, entry *models.CatalogEntry) (*models.CatalogEntry, error)
}

// ProcessResult is the outcome of one processing batch.
type ProcessResult struct {
	Objects []models.CatalogEntry `json:"objects"`
	Errors  []string              `json:"errors,omitempty"`
}

// ProcessingService turns stored originals into catalog entries.
type ProcessingService struct {
	transformer Transformer
	describer   Describer
	catalog     EntryCreator
	store       BlobStore
	logger      *slog.Logger
}

func NewProcessingService(transformer Transformer, describer Describer, catalog EntryCreator, store BlobStore, logger *slog.Logger) *ProcessingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessingService{
		transformer: transformer,
		describer:   describer,
		catalog:     catalog,
		store:       store,
		logger:      logger,
	}
}

type processItem struct {
	ref            UploadReference
	transformedURL string
	describeURL    string
	description    string
}

// Process transforms every reference concurrently, describes each item from
// its transformed image when there is one, then stores one entry per item.
// Upstream failures only degrade an item; a failed insert is reported in
// Errors. The call fails only when no entry was created.
//
// The batch runs to completion even if the caller goes away.
func (s *ProcessingService) Process(ctx context.Context, ownerID string, refs []UploadReference) (*ProcessResult, error) {
	if len(refs) == 0 {
		return nil, ErrNoUploads
	}
	// One upload's worth per batch keeps every transform in a single wave.
	if len(refs) > validation.MaxFilesPerUpload {
		return nil, ErrTooManyUploads
	}
	for _, ref := range refs {
		if strings.TrimSpace(ref.ID) == "" || strings.TrimSpace(ref.OriginalURL) == "" {
			return nil, ErrInvalidReference
		}
	}
	ctx = context.WithoutCancel(ctx)
	log := s.logger.With("owner_id", ownerID, "batch_size", len(refs))

	result := &ProcessResult{Objects: []models.CatalogEntry{}}
	prefix := s.store.PublicURL(OriginalPrefix(ownerID))

	items := make([]*processItem, 0, len(refs))
	for _, ref := range refs {
		if !ownsReference(ref.OriginalURL, prefix) {
			log.Warn("rejecting reference outside owner namespace", "upload_id", ref.ID, "url", ref.OriginalURL)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: Invalid upload reference", ref.ID))
			continue
		}
		items = append(items, &processItem{ref: ref})
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentTransforms)
	for _, item := range items {
		g.Go(func() error {
			res := s.transformer.Transform(ctx, ownerID, item.ref.OriginalURL)
			if res.OK() {
				item.transformedURL = res.URL
			}
			return nil
		})
	}
	_ = g.Wait()

	urls := make([]string, len(items))
	for i, item := range items {
		item.describeURL = item.ref.OriginalURL
		if item.transformedURL != "" {
			item.describeURL = item.transformedURL
		}
		urls[i] = item.describeURL
	}
	descriptions := s.describer.DescribeAll(ctx, urls)
	for i, item := range items {
		if i < len(descriptions) {
			item.description = descriptions[i]
		}
		if strings.TrimSpace(item.description) == "" {
			item.description = models.FallbackDescription
		}
	}

	for _, item := range items {
		entry := &models.CatalogEntry{
			OwnerID:          ownerID,
			OriginalImageURL: item.ref.OriginalURL,
			Description:      item.description,
			Status:           models.StatusActive,
		}
		if item.transformedURL != "" {
			u := item.transformedURL
			entry.TransformedImageURL = &u
		}

		created, err := s.catalog.Create(ctx, entry)
		if err != nil {
			log.Error("insert catalog entry failed", "upload_id", item.ref.ID, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: Failed to save object to database", item.ref.ID))
			continue
		}
		result.Objects = append(result.Objects, *created)
	}

	log.Info("batch processed", "created", len(result.Objects), "errors", len(result.Errors))
	if len(result.Objects) == 0 {
		return result, &BatchError{Err: ErrNoEntriesCreated, Details: result.Errors}
	}
	return result, nil
}
