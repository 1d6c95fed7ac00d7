package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"
	"github.com/ohong/poof/internal/config"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSService stores blobs in a Google Cloud Storage bucket.
type GCSService struct {
	bucket    *storage.BucketHandle
	name      string
	publicURL string
}

func NewGCSService(ctx context.Context, cfg *config.Config, opts ...option.ClientOption) (*GCSService, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	publicURL := cfg.StoragePublicURL
	if publicURL == "" {
		publicURL = "https://storage.googleapis.com/" + cfg.GCSBucket
	}
	return &GCSService{
		bucket:    client.Bucket(cfg.GCSBucket),
		name:      cfg.GCSBucket,
		publicURL: publicURL,
	}, nil
}

// Put writes under a DoesNotExist precondition; GCS answers 412 if the object
// is already there.
func (s *GCSService) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	writer := s.bucket.Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return "", s.wrap(key, err)
	}
	if err := writer.Close(); err != nil {
		return "", s.wrap(key, err)
	}
	slog.Debug("blob stored", "driver", "gcs", "bucket", s.name, "key", key, "bytes", len(data))
	return s.PublicURL(key), nil
}

func (s *GCSService) PublicURL(key string) string {
	return joinURL(s.publicURL, key)
}

func (s *GCSService) wrap(key string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == 412 {
		return fmt.Errorf("%s: %w", key, ErrBlobExists)
	}
	return fmt.Errorf("write gcs object %s: %w", key, err)
}
