package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/ohong/poof/internal/config"
)

// ErrBlobExists is returned when a write would overwrite an existing object.
var ErrBlobExists = errors.New("blob already exists")

// BlobStore writes bytes at a key without overwriting and derives the public
// URL for that key.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	PublicURL(key string) string
}

// NewBlobStore picks the driver named by STORAGE_DRIVER.
func NewBlobStore(ctx context.Context, cfg *config.Config) (BlobStore, error) {
	switch cfg.StorageDriver {
	case "", "local":
		return NewLocalStorageService(cfg)
	case "s3":
		return NewS3Service(ctx, cfg)
	case "gcs":
		return NewGCSService(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// OriginalKey is where an uploaded original lives.
func OriginalKey(ownerID string, id uuid.UUID, ext string) string {
	return fmt.Sprintf("%s%s.%s", OriginalPrefix(ownerID), id, ext)
}

// OriginalPrefix is the owner's namespace for uploaded originals.
func OriginalPrefix(ownerID string) string {
	return "originals/" + ownerID + "/"
}

// TransformedKey is where a studio rendering is re-hosted.
func TransformedKey(ownerID string, id uuid.UUID) string {
	return fmt.Sprintf("transformed/%s/%s.jpg", ownerID, id)
}

// escapeKey escapes each path segment but keeps the separators.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + escapeKey(key)
}
