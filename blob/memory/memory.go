// Package memory provides an in-memory blob store used by tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/picstream/picstream/blob"
)

// Backend is an in-memory implementation of blob.Store.
type Backend struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New creates a new in-memory backend.
func New() *Backend {
	return &Backend{objects: make(map[string][]byte)}
}

// Put stores a payload under key.
func (b *Backend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = append([]byte(nil), data...)
	return nil
}

// Delete removes the object under key. Mirrors S3 semantics: deleting a
// missing object succeeds.
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, key)
	return nil
}

// PresignPut returns a synthetic URL; nothing is served behind it.
func (b *Backend) PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("memory://%s?expires=%d", key, int64(expiry.Seconds())), nil
}

// Object returns the stored payload for key, if present.
func (b *Backend) Object(key string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.objects[key]
	return data, ok
}

// Len returns the number of stored objects.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.objects)
}

var _ blob.Store = (*Backend)(nil)
