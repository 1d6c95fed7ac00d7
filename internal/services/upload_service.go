package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/ohong/poof/pkg/validation"
)

// UploadFile is one incoming file as declared by the client.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// UploadReference pairs an upload id with the durable URL of its original.
type UploadReference struct {
	ID          string `json:"id"`
	OriginalURL string `json:"originalUrl"`
}

// UploadResult is the outcome of one intake call.
type UploadResult struct {
	Uploads []UploadReference `json:"uploads"`
	Errors  []string          `json:"errors,omitempty"`
}

// UploadService validates incoming images and stores the originals.
type UploadService struct {
	store  BlobStore
	logger *slog.Logger
}

func NewUploadService(store BlobStore, logger *slog.Logger) *UploadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadService{store: store, logger: logger}
}

// Intake stores every acceptable file under the owner's originals/ prefix.
// Per-file problems are collected in Errors; the call only fails when no
// file was stored, with a *BatchError carrying every reason.
func (s *UploadService) Intake(ctx context.Context, ownerID string, files []UploadFile) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if len(files) > validation.MaxFilesPerUpload {
		return nil, ErrTooManyFiles
	}

	result := &UploadResult{Uploads: []UploadReference{}}
	for _, f := range files {
		ref, reason := s.intakeOne(ctx, ownerID, f)
		if reason != "" {
			result.Errors = append(result.Errors, reason)
			continue
		}
		result.Uploads = append(result.Uploads, *ref)
	}

	if len(result.Uploads) == 0 {
		return result, &BatchError{Err: ErrNoUploadsStored, Details: result.Errors}
	}
	return result, nil
}

func (s *UploadService) intakeOne(ctx context.Context, ownerID string, f UploadFile) (*UploadReference, string) {
	name := validation.SanitizeString(f.Filename)
	log := s.logger.With("owner_id", ownerID, "filename", name)

	format, ok := validation.ClassifyImage(f.ContentType, name)
	// Only a missing or generic declared type earns a look at the bytes.
	if !ok && !validation.IsGenericContentType(f.ContentType) {
		return nil, invalidTypeReason(name)
	}
	if f.Size > validation.MaxUploadBytes {
		return nil, tooLargeReason(name)
	}

	data, err := readUpload(f)
	if err != nil {
		log.Error("read upload failed", "error", err)
		return nil, fmt.Sprintf("%s: Processing failed", name)
	}
	if int64(len(data)) > validation.MaxUploadBytes {
		return nil, tooLargeReason(name)
	}
	if !ok {
		if format, ok = validation.SniffImage(data, name); !ok {
			return nil, invalidTypeReason(name)
		}
	}

	id := uuid.New()
	key := OriginalKey(ownerID, id, format.Extension())
	url, err := s.store.Put(ctx, key, data, validation.NormalizeContentType(f.ContentType, format))
	if err != nil {
		log.Error("store original failed", "key", key, "error", err)
		return nil, fmt.Sprintf("%s: Upload failed", name)
	}

	log.Info("original stored", "upload_id", id, "key", key, "bytes", len(data))
	return &UploadReference{ID: id.String(), OriginalURL: url}, ""
}

func readUpload(f UploadFile) ([]byte, error) {
	if f.Open == nil {
		return nil, fmt.Errorf("no content for %s", f.Filename)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, validation.MaxUploadBytes+1))
}

func invalidTypeReason(name string) string {
	return fmt.Sprintf("%s: Invalid file type. Only JPEG, PNG, and HEIC allowed.", name)
}

func tooLargeReason(name string) string {
	return fmt.Sprintf("%s: File too large. Maximum size is 15MB.", name)
}
