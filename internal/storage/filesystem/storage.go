// Package filesystem implements the media store on a local directory.
package filesystem

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/storage"
)

// FilesystemStorage implements storage.MediaStore under a base directory.
type FilesystemStorage struct {
	baseDir    string // Base directory for all storage operations
	absBaseDir string // Absolute path of baseDir for path validation
}

// NewFilesystemStorage creates a new FilesystemStorage with the given base directory.
func NewFilesystemStorage(baseDir string) (*FilesystemStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, storage.NewStorageError("NewFilesystemStorage", baseDir, err)
	}

	// Get absolute path for security validation
	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, storage.NewStorageError("NewFilesystemStorage", baseDir, err)
	}

	return &FilesystemStorage{
		baseDir:    baseDir,
		absBaseDir: absBaseDir,
	}, nil
}

// validatePath validates that the key doesn't escape the base directory.
// Returns the safe full path or an error if path traversal is detected.
func (fs *FilesystemStorage) validatePath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty key not allowed")
	}
	if strings.ContainsRune(key, '\x00') {
		return "", fmt.Errorf("null bytes not allowed in key")
	}

	cleanKey := filepath.Clean(filepath.FromSlash(key))

	if filepath.IsAbs(cleanKey) {
		return "", fmt.Errorf("absolute paths not allowed: %s", key)
	}

	if strings.HasPrefix(cleanKey, "..") || strings.Contains(cleanKey, string(filepath.Separator)+"..") {
		return "", fmt.Errorf("path traversal not allowed: %s", key)
	}

	fullPath := filepath.Join(fs.baseDir, cleanKey)

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	// Must start with baseDir + separator; the base directory itself is not an object
	if !strings.HasPrefix(absPath, fs.absBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path escape attempt: %s", key)
	}

	return fullPath, nil
}

// Name implements storage.MediaStore.
func (fs *FilesystemStorage) Name() string {
	return "filesystem"
}

// Upload writes data under a fresh key.
// Uses atomic write pattern (temp file then rename) so readers never see a partial object.
func (fs *FilesystemStorage) Upload(ctx context.Context, data []byte, fallback models.MediaKind) (models.MediaReference, error) {
	ref, err := storage.PrepareUpload(data, fallback)
	if err != nil {
		return models.MediaReference{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.MediaReference{}, storage.UploadError(storage.NewStorageError("Upload", ref.Key, err))
	}

	filePath, err := fs.validatePath(ref.Key)
	if err != nil {
		return models.MediaReference{}, storage.UploadError(
			storage.NewStorageErrorWithMessage("Upload", ref.Key, err, "path validation failed"))
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return models.MediaReference{}, storage.UploadError(storage.NewStorageError("Upload", ref.Key, err))
	}

	tempPath := filePath + ".tmp"
	tempFile, err := os.Create(tempPath)
	if err != nil {
		return models.MediaReference{}, storage.UploadError(storage.NewStorageError("Upload", ref.Key, err))
	}

	var succeeded bool
	defer func() {
		tempFile.Close()
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return models.MediaReference{}, storage.UploadError(storage.NewStorageError("Upload", ref.Key, err))
	}
	if err := tempFile.Sync(); err != nil {
		return models.MediaReference{}, storage.UploadError(storage.NewStorageError("Upload", ref.Key, err))
	}
	if err := tempFile.Close(); err != nil {
		return models.MediaReference{}, storage.UploadError(storage.NewStorageError("Upload", ref.Key, err))
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		return models.MediaReference{}, storage.UploadError(storage.NewStorageError("Upload", ref.Key, err))
	}
	succeeded = true

	slog.Debug("media stored", "key", ref.Key, "kind", ref.Kind, "size", len(data))
	return ref, nil
}

// Delete removes an object from the directory.
func (fs *FilesystemStorage) Delete(ctx context.Context, key string) error {
	filePath, err := fs.validatePath(key)
	if err != nil {
		return storage.NewStorageErrorWithMessage("Delete", key, err, "path validation failed")
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			// Already gone, not an error
			return nil
		}
		return storage.NewStorageError("Delete", key, err)
	}

	slog.Debug("media deleted", "key", key)
	return nil
}

// DeleteBatch removes each key in turn.
func (fs *FilesystemStorage) DeleteBatch(ctx context.Context, keys []string) []storage.DeleteFailure {
	var failures []storage.DeleteFailure
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			failures = append(failures, storage.DeleteFailure{Key: key, Err: storage.NewStorageError("DeleteBatch", key, err)})
			continue
		}
		if err := fs.Delete(ctx, key); err != nil {
			failures = append(failures, storage.DeleteFailure{Key: key, Err: err})
		}
	}
	return failures
}

// HealthCheck verifies the base directory exists and is writable.
func (fs *FilesystemStorage) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(fs.baseDir)
	if err != nil {
		return storage.NewStorageErrorWithMessage("HealthCheck", fs.baseDir, err, "media directory not accessible")
	}
	if !info.IsDir() {
		return storage.NewStorageErrorWithMessage("HealthCheck", fs.baseDir,
			fmt.Errorf("not a directory"), "media directory not accessible")
	}

	probe, err := os.CreateTemp(fs.baseDir, ".healthcheck-*")
	if err != nil {
		return storage.NewStorageErrorWithMessage("HealthCheck", fs.baseDir, err, "media directory not writable")
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}

// GetFilePath returns the on-disk path of a key.
func (fs *FilesystemStorage) GetFilePath(key string) string {
	return filepath.Join(fs.baseDir, filepath.FromSlash(key))
}

var _ storage.MediaStore = (*FilesystemStorage)(nil)
