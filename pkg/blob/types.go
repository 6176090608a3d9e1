package blob

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("blob not found")

	// ErrInvalidKey is returned for keys that would resolve outside the store.
	ErrInvalidKey = errors.New("invalid blob key")
)

// BlobStore is the scratch storage the disk workload writes through.
type BlobStore interface {
	Put(ctx context.Context, key string, reader io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}
