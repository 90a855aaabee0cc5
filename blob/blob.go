// Package blob defines the object store boundary used by the post lifecycle.
//
// The blob store is not part of any table store transaction; callers that
// write to both must order the writes and compensate on failure.
package blob

import (
	"context"
	"time"
)

// Store is the interface for object storage backends.
type Store interface {
	// Put stores an opaque payload under key.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Delete removes the object under key. Deleting a missing object is
	// not an error.
	Delete(ctx context.Context, key string) error

	// PresignPut returns a time-limited signed URL that allows uploading
	// directly to key without going through this service.
	PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error)
}
