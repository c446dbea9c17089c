// Product-Images Server
//
// Features:
// - Hierarchical image namespace (folders + registered image leaves)
// - Batch move/delete with all-or-nothing validation
// - Prometheus metrics & structured logging (zap)
// - SSE real-time change feed
// - Background thumbnailing & EXIF dimension extraction
// - Multi-backend content storage (S3, local, SMB)
package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Kamii-Samaa/Product-Images/internal/api"
	"github.com/Kamii-Samaa/Product-Images/internal/auth"
	"github.com/Kamii-Samaa/Product-Images/internal/config"
	"github.com/Kamii-Samaa/Product-Images/internal/events"
	"github.com/Kamii-Samaa/Product-Images/internal/logging"
	"github.com/Kamii-Samaa/Product-Images/internal/media"
	"github.com/Kamii-Samaa/Product-Images/internal/metadata"
	"github.com/Kamii-Samaa/Product-Images/internal/metadata/postgres"
	"github.com/Kamii-Samaa/Product-Images/internal/metrics"
	"github.com/Kamii-Samaa/Product-Images/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("Product-Images Server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the metadata store
	var store metadata.Store
	var pgStore *postgres.Store
	if cfg.DemoMode() {
		logging.Warn("DATABASE_URL not set, running in demo mode (in-memory metadata)")
		store = metadata.NewMemoryStore()
	} else {
		logging.Info("connecting to PostgreSQL...")
		pg, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			logging.Fatal("database connection failed", zap.Error(err))
		}
		defer pg.Close()

		// Run migrations
		if dir := findMigrationsDir(); dir != "" {
			logging.Info("running migrations...", zap.String("dir", dir))
			if err := pg.Migrate(dir); err != nil {
				logging.Fatal("migration failed", zap.Error(err))
			}
		}
		store = pg
		pgStore = pg
	}

	// Initialize auth; without a database it keeps users in memory
	var db *sql.DB
	if pgStore != nil {
		db = pgStore.DB()
	}
	authHandler := auth.New(db, cfg.JWTSecret)
	if err := authHandler.EnsureDefaultAdmin(ctx); err != nil {
		logging.Error("failed to ensure default admin", zap.Error(err))
	}

	// Initialize SSE broadcaster
	broadcaster := events.NewBroadcaster()

	// Initialize content storage
	objects, err := storage.New(ctx, storage.Config{
		Backend:     cfg.StorageBackend,
		LocalPath:   cfg.LocalStoragePath,
		SMBServer:   cfg.SMBServer,
		SMBMount:    cfg.SMBMount,
		S3Endpoint:  cfg.S3Endpoint,
		S3Bucket:    cfg.S3Bucket,
		S3AccessKey: cfg.S3AccessKey,
		S3SecretKey: cfg.S3SecretKey,
		S3Region:    cfg.S3Region,
	})
	if err != nil {
		logging.Fatal("storage backend init failed", zap.Error(err))
	}
	defer objects.Close()
	logging.Info("content storage initialized", zap.String("backend", objects.Type()))

	// Create API server
	srv := api.NewServer(store, objects, authHandler, broadcaster, cfg.MaxUploadSize)
	if err := srv.Init(ctx); err != nil {
		logging.Fatal("server init failed", zap.Error(err))
	}

	// Start the media pipeline; the server records the extracted dimensions
	processor := media.NewProcessor(objects, srv, broadcaster, cfg.MediaWorkers)
	srv.AttachProcessor(processor)
	processor.Start(ctx)
	defer processor.Stop()

	// Backfill: thumbnail/measure any leaves registered before this start
	go func() {
		rows, err := store.SelectAll(ctx)
		if err != nil {
			logging.Error("media backfill scan failed", zap.Error(err))
			return
		}
		processor.ProcessExisting(rows)
	}()

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	// Start HTTP(S) server
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	useTLS := cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""
	if useTLS {
		httpServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()
		httpServer.Close()
		metricsServer.Close()
	}()

	// Start periodic metrics update
	if pgStore != nil {
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					pgStore.UpdateConnectionMetrics()
				}
			}
		}()
	}

	if useTLS {
		logging.Info("server listening (TLS 1.3)",
			zap.String("addr", cfg.ListenAddr),
			zap.String("cert", cfg.TLSCertFile))
		if err := httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	} else {
		logging.Info("server listening (HTTP)", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	}
}

func findMigrationsDir() string {
	candidates := []string{
		"migrations",
		"../migrations",
	}

	exe, _ := os.Executable()
	if exe != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "migrations"))
	}

	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}
