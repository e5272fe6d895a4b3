// Package storage defines the media store contract shared by the filesystem,
// S3 and in-memory backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/fjmerc/reactshare/internal/models"
)

// MaxBatchSize is the largest number of keys a single DeleteBatch call sends to the backend.
const MaxBatchSize = 1000

// ErrUploadFailed is wrapped around every error returned by Upload.
var ErrUploadFailed = errors.New("media upload failed")

// MediaStore stores media objects addressed by opaque keys.
type MediaStore interface {
	// Upload stores data under a freshly generated key.
	// The kind is detected from content; fallback is used when detection is inconclusive.
	Upload(ctx context.Context, data []byte, fallback models.MediaKind) (models.MediaReference, error)

	// Delete removes a single object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteBatch removes up to MaxBatchSize objects and reports the keys it could not remove.
	DeleteBatch(ctx context.Context, keys []string) []DeleteFailure

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Name identifies the backend in logs and health output.
	Name() string
}

// DeleteFailure records one key a batch delete left behind.
type DeleteFailure struct {
	Key string
	Err error
}

// StorageError represents errors from storage operations with additional context.
type StorageError struct {
	Op      string // Operation that failed (e.g., "Upload", "Delete")
	Path    string // Key involved
	Err     error  // Underlying error
	Message string // Human-readable message
}

func (e *StorageError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Path != "" {
		return e.Op + " " + e.Path + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError with the given details.
func NewStorageError(op, path string, err error) *StorageError {
	return &StorageError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// NewStorageErrorWithMessage creates a new StorageError with a custom message.
func NewStorageErrorWithMessage(op, path string, err error, message string) *StorageError {
	return &StorageError{
		Op:      op,
		Path:    path,
		Err:     err,
		Message: message,
	}
}

// UploadError marks a storage error as an upload failure.
// The result matches both ErrUploadFailed and *StorageError.
func UploadError(serr *StorageError) error {
	return fmt.Errorf("%w: %w", ErrUploadFailed, serr)
}

// DetectKind sniffs data and returns its media kind and file extension.
// Content that is neither image nor video gets the fallback kind and ".bin".
func DetectKind(data []byte, fallback models.MediaKind) (models.MediaKind, string) {
	mtype := mimetype.Detect(data)
	ext := mtype.Extension()
	if ext == "" {
		ext = ".bin"
	}

	switch {
	case strings.HasPrefix(mtype.String(), "image/"):
		return models.MediaKindImage, ext
	case strings.HasPrefix(mtype.String(), "video/"):
		return models.MediaKindVideo, ext
	}
	return fallback, ".bin"
}

// NewKey returns a fresh object key of the form "<kind>/<uuid><ext>".
func NewKey(kind models.MediaKind, ext string) string {
	return string(kind) + "/" + uuid.New().String() + ext
}

// PrepareUpload validates a payload and derives its reference.
// Backends call it before writing so all of them reject the same input.
func PrepareUpload(data []byte, fallback models.MediaKind) (models.MediaReference, error) {
	if len(data) == 0 {
		return models.MediaReference{}, UploadError(
			NewStorageErrorWithMessage("Upload", "", errors.New("empty payload"), "media payload is empty"))
	}
	if !fallback.Valid() {
		return models.MediaReference{}, UploadError(
			NewStorageErrorWithMessage("Upload", "", fmt.Errorf("%q", fallback), "unsupported media kind"))
	}

	kind, ext := DetectKind(data, fallback)
	return models.MediaReference{Key: NewKey(kind, ext), Kind: kind}, nil
}
