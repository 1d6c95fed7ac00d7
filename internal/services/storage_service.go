package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ohong/poof/internal/config"
)

// LocalStorageService stores blobs on the local filesystem. The router serves
// them under /files when this driver is active.
type LocalStorageService struct {
	root      string
	publicURL string
}

func NewLocalStorageService(cfg *config.Config) (*LocalStorageService, error) {
	if err := os.MkdirAll(cfg.LocalAssetsPath, 0o755); err != nil {
		return nil, fmt.Errorf("create local storage root: %w", err)
	}
	publicURL := cfg.StoragePublicURL
	if publicURL == "" {
		publicURL = strings.TrimRight(cfg.APIUrl, "/") + "/files"
	}
	return &LocalStorageService{root: cfg.LocalAssetsPath, publicURL: publicURL}, nil
}

// Root is the directory blobs are written under.
func (s *LocalStorageService) Root() string { return s.root }

// Put writes data to a temporary file and links it into place, so a reader
// never sees a partial object and an existing object is never replaced.
func (s *LocalStorageService) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	absPath, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(absPath), ".part-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	if err := os.Link(tmp.Name(), absPath); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%s: %w", key, ErrBlobExists)
		}
		return "", err
	}

	sum := sha256.Sum256(data)
	slog.Debug("blob stored", "driver", "local", "key", key, "bytes", len(data),
		"content_type", contentType, "sha256", hex.EncodeToString(sum[:]))
	return s.PublicURL(key), nil
}

func (s *LocalStorageService) PublicURL(key string) string {
	return joinURL(s.publicURL, key)
}

func (s *LocalStorageService) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}
