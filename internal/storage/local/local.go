// Package local provides a local filesystem storage backend.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Kamii-Samaa/Product-Images/internal/metrics"
)

// Config holds local filesystem backend settings.
type Config struct {
	RootPath   string
	CreateDirs bool
}

// Backend implements storage.Backend using the local filesystem.
type Backend struct {
	rootPath   string
	createDirs bool
}

// New creates a local filesystem backend rooted at cfg.RootPath.
func New(cfg Config) (*Backend, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("root path is required")
	}

	info, err := os.Stat(cfg.RootPath)
	if err != nil {
		if os.IsNotExist(err) && cfg.CreateDirs {
			if mkErr := os.MkdirAll(cfg.RootPath, 0755); mkErr != nil {
				return nil, fmt.Errorf("create root path %s: %w", cfg.RootPath, mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat root path %s: %w", cfg.RootPath, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", cfg.RootPath)
	}

	return &Backend{
		rootPath:   cfg.RootPath,
		createDirs: cfg.CreateDirs,
	}, nil
}

func (b *Backend) fullPath(key string) string {
	return filepath.Join(b.rootPath, filepath.FromSlash(key))
}

// GetObject opens a stored object and reports its size.
func (b *Backend) GetObject(_ context.Context, key string) (io.ReadCloser, int64, error) {
	start := time.Now()

	f, err := os.Open(b.fullPath(key))
	if err != nil {
		metrics.RecordStorageOp("local", "get_object", time.Since(start), false)
		return nil, 0, fmt.Errorf("open %s: %w", key, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		metrics.RecordStorageOp("local", "get_object", time.Since(start), false)
		return nil, 0, fmt.Errorf("stat %s: %w", key, err)
	}

	metrics.RecordStorageOp("local", "get_object", time.Since(start), true)
	return f, info.Size(), nil
}

// PutObject writes content to the filesystem atomically via temp + rename.
func (b *Backend) PutObject(_ context.Context, key string, body io.Reader, size int64) error {
	start := time.Now()

	path := b.fullPath(key)
	dir := filepath.Dir(path)

	if b.createDirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			metrics.RecordStorageOp("local", "put_object", time.Since(start), false)
			return fmt.Errorf("create dirs for %s: %w", key, err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".productimages-*.tmp")
	if err != nil {
		metrics.RecordStorageOp("local", "put_object", time.Since(start), false)
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		metrics.RecordStorageOp("local", "put_object", time.Since(start), false)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		metrics.RecordStorageOp("local", "put_object", time.Since(start), false)
		return fmt.Errorf("close temp for %s: %w", key, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		metrics.RecordStorageOp("local", "put_object", time.Since(start), false)
		return fmt.Errorf("rename temp to %s: %w", key, err)
	}

	metrics.RecordStorageOp("local", "put_object", time.Since(start), true)
	return nil
}

// DeleteObject removes an object. Deleting a missing object is not an error;
// cleanup runs after metadata commits and may retry keys that never existed.
func (b *Backend) DeleteObject(_ context.Context, key string) error {
	start := time.Now()

	err := os.Remove(b.fullPath(key))
	if err != nil && !os.IsNotExist(err) {
		metrics.RecordStorageOp("local", "delete_object", time.Since(start), false)
		return fmt.Errorf("delete %s: %w", key, err)
	}

	metrics.RecordStorageOp("local", "delete_object", time.Since(start), true)
	return nil
}

// ObjectExists checks if an object exists on the filesystem.
func (b *Backend) ObjectExists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(b.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	return true, nil
}

// Type returns "local".
func (b *Backend) Type() string { return "local" }

// Close is a no-op for local backends.
func (b *Backend) Close() error { return nil }
