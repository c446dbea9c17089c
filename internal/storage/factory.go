package storage

import (
	"context"
	"fmt"

	"github.com/Kamii-Samaa/Product-Images/internal/storage/local"
	s3backend "github.com/Kamii-Samaa/Product-Images/internal/storage/s3"
	"github.com/Kamii-Samaa/Product-Images/internal/storage/smb"
)

// Config selects a backend implementation and carries its settings.
// Only the fields for the selected backend are consulted.
type Config struct {
	Backend string // "local", "s3" or "smb"

	// local
	LocalPath string

	// smb
	SMBServer string
	SMBMount  string

	// s3
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
}

// New creates a Backend from the given config.
func New(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "s3":
		return s3backend.New(ctx, s3backend.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
		})
	case "local":
		return local.New(local.Config{
			RootPath:   cfg.LocalPath,
			CreateDirs: true,
		})
	case "smb":
		return smb.New(smb.Config{
			Server:    cfg.SMBServer,
			MountPath: cfg.SMBMount,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
