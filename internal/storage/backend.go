// Package storage defines the Backend interface for image content storage
// and a config-driven factory over its implementations.
package storage

import (
	"context"
	"io"
)

// Backend is the interface for content storage backends.
// Implementations handle raw object I/O (S3, local filesystem, SMB mounts).
// Objects are keyed by opaque refs; the namespace tree never leaks into keys.
type Backend interface {
	// GetObject retrieves an object by key, returning the content and its size.
	GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error)

	// PutObject uploads content to the given key.
	PutObject(ctx context.Context, key string, body io.Reader, size int64) error

	// DeleteObject removes an object by key.
	DeleteObject(ctx context.Context, key string) error

	// ObjectExists checks if an object exists at the given key.
	ObjectExists(ctx context.Context, key string) (bool, error)

	// Type returns the backend type identifier ("s3", "local", "smb").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}
