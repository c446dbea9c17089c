// Package smb provides an SMB/CIFS network share storage backend.
// The share must be pre-mounted on the OS (via mount.cifs or fstab); this
// backend delegates all I/O to the local filesystem backend at the mount
// path, so storage metrics for it record under the local backend.
package smb

import (
	"fmt"

	"github.com/Kamii-Samaa/Product-Images/internal/storage/local"
)

// Config holds SMB backend settings. Only MountPath drives I/O; Server is
// kept for operator reference in logs and diagnostics.
type Config struct {
	Server    string // UNC path of the share (e.g. //server/images)
	MountPath string // local mount point where the share is mounted
}

// Backend wraps a local backend at the SMB mount point.
type Backend struct {
	*local.Backend
	config Config
}

// New creates an SMB backend over the pre-mounted share at cfg.MountPath.
func New(cfg Config) (*Backend, error) {
	if cfg.MountPath == "" {
		return nil, fmt.Errorf("mount path is required")
	}

	lb, err := local.New(local.Config{
		RootPath:   cfg.MountPath,
		CreateDirs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("smb backend at %s: %w", cfg.MountPath, err)
	}

	return &Backend{
		Backend: lb,
		config:  cfg,
	}, nil
}

// Type returns "smb".
func (b *Backend) Type() string { return "smb" }
