// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Database. Empty runs the server in demo mode: in-memory metadata
	// store, in-memory users, nothing survives a restart.
	DatabaseURL string

	// Storage backend ("local", "s3" or "smb", default: "local")
	StorageBackend   string
	LocalStoragePath string

	// S3 storage
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string

	// SMB storage
	SMBServer string
	SMBMount  string

	// TLS (optional; if both set, server uses HTTPS)
	TLSCertFile string
	TLSKeyFile  string

	// Auth
	JWTSecret string

	// Uploads
	MaxUploadSize int64

	// Media pipeline
	MediaWorkers int
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:       envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:      envOr("METRICS_ADDR", ":9090"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogFormat:        envOr("LOG_FORMAT", "json"),
		DatabaseURL:      envOr("DATABASE_URL", ""),
		StorageBackend:   envOr("STORAGE_BACKEND", "local"),
		LocalStoragePath: envOr("LOCAL_STORAGE_PATH", "/data/storage"),
		S3Endpoint:       envOr("S3_ENDPOINT", ""),
		S3Bucket:         envOr("S3_BUCKET", "productimages"),
		S3AccessKey:      envOr("S3_ACCESS_KEY", ""),
		S3SecretKey:      envOr("S3_SECRET_KEY", ""),
		S3Region:         envOr("S3_REGION", "us-east-1"),
		SMBServer:        envOr("SMB_SERVER", ""),
		SMBMount:         envOr("SMB_MOUNT", ""),
		TLSCertFile:      envOr("TLS_CERT_FILE", ""),
		TLSKeyFile:       envOr("TLS_KEY_FILE", ""),
		JWTSecret:        envOr("JWT_SECRET", ""),
		MaxUploadSize:    envInt64("MAX_UPLOAD_SIZE", 100*1024*1024), // 100MB default
		MediaWorkers:     envInt("MEDIA_WORKERS", 2),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	switch cfg.StorageBackend {
	case "local", "s3", "smb":
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be local, s3 or smb, got %q", cfg.StorageBackend)
	}
	if cfg.StorageBackend == "s3" && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required for the s3 backend")
	}
	if cfg.StorageBackend == "smb" && cfg.SMBMount == "" {
		return nil, fmt.Errorf("SMB_MOUNT is required for the smb backend")
	}

	return cfg, nil
}

// DemoMode reports whether the server runs without a database.
func (c *Config) DemoMode() bool { return c.DatabaseURL == "" }

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}
