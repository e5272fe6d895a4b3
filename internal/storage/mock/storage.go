// Package mock provides an in-memory storage.MediaStore for tests.
// It records every call and supports error injection per operation and per key.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/storage"
)

// MediaStore is an in-memory media store.
type MediaStore struct {
	mu sync.RWMutex

	objects map[string][]byte

	uploadCalls int
	deleted     []string
	batchCalls  [][]string

	// Error injection for testing
	UploadError      error
	DeleteError      error
	HealthCheckError error
	// FailKeys makes Delete and DeleteBatch fail for the listed keys only.
	FailKeys map[string]error

	// Custom behavior hooks
	OnUpload func(ctx context.Context, data []byte, fallback models.MediaKind) (models.MediaReference, error)
	OnDelete func(ctx context.Context, key string) error
}

// NewMediaStore creates an empty mock store.
func NewMediaStore() *MediaStore {
	return &MediaStore{
		objects:  make(map[string][]byte),
		FailKeys: make(map[string]error),
	}
}

// Reset clears all objects, recorded calls, errors and hooks.
func (s *MediaStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects = make(map[string][]byte)
	s.uploadCalls = 0
	s.deleted = nil
	s.batchCalls = nil

	s.UploadError = nil
	s.DeleteError = nil
	s.HealthCheckError = nil
	s.FailKeys = make(map[string]error)

	s.OnUpload = nil
	s.OnDelete = nil
}

// AddObject stores content under key directly, for test setup.
func (s *MediaStore) AddObject(key string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = append([]byte(nil), content...)
}

// FailKey makes deletion of key fail with err.
func (s *MediaStore) FailKey(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailKeys[key] = err
}

// Has reports whether key is currently stored.
func (s *MediaStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}

// Keys returns all stored keys, sorted.
func (s *MediaStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UploadCalls returns how many times Upload was called.
func (s *MediaStore) UploadCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uploadCalls
}

// DeletedKeys returns every key a Delete or DeleteBatch call attempted, in call order.
func (s *MediaStore) DeletedKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.deleted...)
}

// BatchCalls returns the key sets passed to DeleteBatch.
func (s *MediaStore) BatchCalls() [][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([][]string, len(s.batchCalls))
	for i, b := range s.batchCalls {
		out[i] = append([]string(nil), b...)
	}
	return out
}

// Name implements storage.MediaStore.
func (s *MediaStore) Name() string {
	return "mock"
}

// Upload implements storage.MediaStore.
func (s *MediaStore) Upload(ctx context.Context, data []byte, fallback models.MediaKind) (models.MediaReference, error) {
	s.mu.Lock()
	s.uploadCalls++
	hook := s.OnUpload
	injected := s.UploadError
	s.mu.Unlock()

	if hook != nil {
		return hook(ctx, data, fallback)
	}
	if injected != nil {
		return models.MediaReference{}, storage.UploadError(storage.NewStorageError("Upload", "", injected))
	}

	ref, err := storage.PrepareUpload(data, fallback)
	if err != nil {
		return models.MediaReference{}, err
	}

	s.mu.Lock()
	s.objects[ref.Key] = append([]byte(nil), data...)
	s.mu.Unlock()
	return ref, nil
}

// Delete implements storage.MediaStore.
func (s *MediaStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	s.deleted = append(s.deleted, key)
	hook := s.OnDelete
	s.mu.Unlock()

	if hook != nil {
		return hook(ctx, key)
	}
	return s.remove("Delete", key)
}

// DeleteBatch implements storage.MediaStore.
func (s *MediaStore) DeleteBatch(ctx context.Context, keys []string) []storage.DeleteFailure {
	s.mu.Lock()
	s.batchCalls = append(s.batchCalls, append([]string(nil), keys...))
	s.deleted = append(s.deleted, keys...)
	s.mu.Unlock()

	if len(keys) > storage.MaxBatchSize {
		err := fmt.Errorf("batch of %d exceeds %d keys", len(keys), storage.MaxBatchSize)
		failures := make([]storage.DeleteFailure, len(keys))
		for i, key := range keys {
			failures[i] = storage.DeleteFailure{Key: key, Err: storage.NewStorageError("DeleteBatch", key, err)}
		}
		return failures
	}

	var failures []storage.DeleteFailure
	for _, key := range keys {
		if err := s.remove("DeleteBatch", key); err != nil {
			failures = append(failures, storage.DeleteFailure{Key: key, Err: err})
		}
	}
	return failures
}

func (s *MediaStore) remove(op, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.FailKeys[key]; ok {
		return storage.NewStorageError(op, key, err)
	}
	if s.DeleteError != nil {
		return storage.NewStorageError(op, key, s.DeleteError)
	}
	delete(s.objects, key)
	return nil
}

// HealthCheck implements storage.MediaStore.
func (s *MediaStore) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.HealthCheckError != nil {
		return storage.NewStorageError("HealthCheck", "", s.HealthCheckError)
	}
	return nil
}

var _ storage.MediaStore = (*MediaStore)(nil)
