// Package blob abstracts the backing content store for file bytes.
//
// Two production backends are provided: a local filesystem store for
// single-node deployments, and a Backblaze B2 store for cloud deployments.
// A memory store exists for tests. Records in MongoDB hold only the blob key
// (StoragePath); all byte traffic goes through a Store.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a key has no stored content.
var ErrNotFound = errors.New("blob: not found")

// Store is the backing content store.
type Store interface {
	// Put stores the content read from r under key, overwriting any
	// previous content.
	Put(ctx context.Context, key string, r io.Reader, contentType string) error

	// Get opens the content stored under key. The caller must close the
	// returned reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the content stored under key. Deleting a missing key
	// is not an error.
	Delete(ctx context.Context, key string) error

	// SignedURL returns a URL that grants read access to key until ttl
	// elapses, without further authentication.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
