package storage

import (
	"context"
	"io"
	"time"
)

// FileInfo contains metadata about a stored object.
type FileInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// Storage defines the destination operations used by the output sink.
// Paths are slash-separated and relative to the backend root.
type Storage interface {
	// Upload writes data from reader to the given path, creating any
	// intermediate directories the backend needs.
	Upload(ctx context.Context, path string, reader io.Reader) error

	// Download returns a reader for the object at the given path.
	// The caller is responsible for closing the returned ReadCloser.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the object at the given path.
	// Returns nil if the object does not exist.
	Delete(ctx context.Context, path string) error

	// Exists checks whether an object exists at the given path.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns metadata for all objects whose path starts with prefix,
	// sorted by path.
	List(ctx context.Context, prefix string) ([]FileInfo, error)

	// Ping verifies that the backend root is reachable and writable. A
	// failing Ping means every write would fail, not just one.
	Ping(ctx context.Context) error
}
