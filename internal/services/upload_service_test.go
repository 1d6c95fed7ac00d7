package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/ohong/poof/internal/logging"
	"github.com/ohong/poof/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
)

func memFile(name, contentType string, data []byte) UploadFile {
	return UploadFile{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func TestIntakeStoresValidFiles(t *testing.T) {
	store := newMemBlobStore()
	svc := NewUploadService(store, logging.Discard())

	res, err := svc.Intake(context.Background(), "user_1", []UploadFile{
		memFile("a.jpg", "image/jpeg", jpegBytes),
		memFile("b.jpg", "image/jpeg", jpegBytes),
		memFile("c.png", "image/png", pngBytes),
	})

	require.NoError(t, err)
	require.Len(t, res.Uploads, 3)
	assert.Empty(t, res.Errors)

	seen := map[string]bool{}
	for _, u := range res.Uploads {
		assert.False(t, seen[u.ID], "ids are unique")
		seen[u.ID] = true
		assert.True(t, strings.HasPrefix(u.OriginalURL, testBlobBase+"/originals/user_1/"+u.ID+"."), u.OriginalURL)
	}
	assert.True(t, strings.HasSuffix(res.Uploads[2].OriginalURL, ".png"))
	assert.Len(t, store.keysWithPrefix("originals/user_1/"), 3)
}

func TestIntakeRejectsInvalidType(t *testing.T) {
	store := newMemBlobStore()
	svc := NewUploadService(store, logging.Discard())

	res, err := svc.Intake(context.Background(), "user_1", []UploadFile{
		memFile("notes.txt", "text/plain", []byte("hello")),
	})

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.ErrorIs(t, err, ErrNoUploadsStored)
	assert.Equal(t, []string{"notes.txt: Invalid file type. Only JPEG, PNG, and HEIC allowed."}, batchErr.Details)
	assert.Empty(t, res.Uploads)
	assert.Empty(t, store.keysWithPrefix(""), "rejected files are never written")
}

func TestIntakePartialSuccess(t *testing.T) {
	store := newMemBlobStore()
	svc := NewUploadService(store, logging.Discard())

	big := memFile("huge.jpg", "image/jpeg", jpegBytes)
	big.Size = validation.MaxUploadBytes + 1

	res, err := svc.Intake(context.Background(), "user_1", []UploadFile{
		memFile("ok.jpg", "image/jpeg", jpegBytes),
		big,
		memFile("anim.gif", "image/gif", []byte("GIF89a")),
	})

	require.NoError(t, err)
	assert.Len(t, res.Uploads, 1)
	assert.Equal(t, []string{
		"huge.jpg: File too large. Maximum size is 15MB.",
		"anim.gif: Invalid file type. Only JPEG, PNG, and HEIC allowed.",
	}, res.Errors)
}

func TestIntakeEnforcesSizeOnActualBytes(t *testing.T) {
	svc := NewUploadService(newMemBlobStore(), logging.Discard())

	data := make([]byte, validation.MaxUploadBytes+10)
	copy(data, jpegBytes)
	f := memFile("liar.jpg", "image/jpeg", data)
	f.Size = 10

	_, err := svc.Intake(context.Background(), "user_1", []UploadFile{f})
	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, []string{"liar.jpg: File too large. Maximum size is 15MB."}, batchErr.Details)
}

func TestIntakeHeicExtensionFallback(t *testing.T) {
	store := newMemBlobStore()
	svc := NewUploadService(store, logging.Discard())

	res, err := svc.Intake(context.Background(), "user_1", []UploadFile{
		memFile("IMG_0420.HEIC", "", []byte("....ftypheic")),
		memFile("IMG_0421.heif", "application/octet-stream", []byte("....ftypmif1")),
	})

	require.NoError(t, err)
	require.Len(t, res.Uploads, 2)
	assert.True(t, strings.HasSuffix(res.Uploads[0].OriginalURL, ".heic"))
	assert.True(t, strings.HasSuffix(res.Uploads[1].OriginalURL, ".heif"))

	for key, ct := range store.types {
		switch {
		case strings.HasSuffix(key, ".heic"):
			assert.Equal(t, "image/heic", ct)
		case strings.HasSuffix(key, ".heif"):
			assert.Equal(t, "image/heif", ct)
		}
	}
}

func TestIntakeSniffsGenericContentType(t *testing.T) {
	store := newMemBlobStore()
	svc := NewUploadService(store, logging.Discard())

	res, err := svc.Intake(context.Background(), "user_1", []UploadFile{
		memFile("blob", "application/octet-stream", pngBytes),
		memFile("mystery", "", []byte("definitely not an image")),
	})

	require.NoError(t, err)
	require.Len(t, res.Uploads, 1)
	assert.True(t, strings.HasSuffix(res.Uploads[0].OriginalURL, ".png"))
	assert.Equal(t, []string{"mystery: Invalid file type. Only JPEG, PNG, and HEIC allowed."}, res.Errors)
}

func TestIntakeStorageFailure(t *testing.T) {
	store := newMemBlobStore()
	store.failOn = func(string) bool { return true }
	svc := NewUploadService(store, logging.Discard())

	_, err := svc.Intake(context.Background(), "user_1", []UploadFile{memFile("a.jpg", "image/jpeg", jpegBytes)})
	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, []string{"a.jpg: Upload failed"}, batchErr.Details)
}

func TestIntakeReadFailure(t *testing.T) {
	svc := NewUploadService(newMemBlobStore(), logging.Discard())
	f := memFile("a.jpg", "image/jpeg", jpegBytes)
	f.Open = func() (io.ReadCloser, error) { return nil, errors.New("disk gone") }

	_, err := svc.Intake(context.Background(), "user_1", []UploadFile{f})
	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, []string{"a.jpg: Processing failed"}, batchErr.Details)
}

func TestIntakeCountLimits(t *testing.T) {
	svc := NewUploadService(newMemBlobStore(), logging.Discard())

	_, err := svc.Intake(context.Background(), "user_1", nil)
	assert.ErrorIs(t, err, ErrNoFiles)

	files := make([]UploadFile, validation.MaxFilesPerUpload+1)
	for i := range files {
		files[i] = memFile("a.jpg", "image/jpeg", jpegBytes)
	}
	_, err = svc.Intake(context.Background(), "user_1", files)
	assert.ErrorIs(t, err, ErrTooManyFiles)
}
