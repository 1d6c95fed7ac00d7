package services

import (
	"errors"
	"strings"
)

var (
	ErrNoFiles          = errors.New("no files provided")
	ErrTooManyFiles     = errors.New("too many files")
	ErrNoUploads        = errors.New("no uploads provided")
	ErrTooManyUploads   = errors.New("too many uploads")
	ErrInvalidReference = errors.New("invalid upload reference")
	ErrNoUploadsStored  = errors.New("all uploads failed")
	ErrNoEntriesCreated = errors.New("no catalog entries created")

	ErrEntryNotFound = errors.New("catalog entry not found")
	ErrNotOwner      = errors.New("catalog entry belongs to another owner")
	ErrInvalidStatus = errors.New("invalid status")
)

// BatchError reports a batch call in which no item succeeded. Details holds
// one human-readable reason per failed item.
type BatchError struct {
	Err     error
	Details []string
}

func (e *BatchError) Error() string {
	if len(e.Details) == 0 {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + strings.Join(e.Details, "; ")
}

func (e *BatchError) Unwrap() error { return e.Err }
