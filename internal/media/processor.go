package media

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Kamii-Samaa/Product-Images/internal/events"
	"github.com/Kamii-Samaa/Product-Images/internal/logging"
	"github.com/Kamii-Samaa/Product-Images/internal/metrics"
	"github.com/Kamii-Samaa/Product-Images/internal/storage"
	"github.com/Kamii-Samaa/Product-Images/pkg/models"
)

// imageExtensions are leaf name extensions treated as images.
var imageExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff", ".tif",
	".heic", ".heif", ".avif",
	// RAW formats
	".cr2", ".cr3", ".nef", ".arw", ".dng", ".orf", ".rw2", ".pef", ".srw", ".raf",
}

// IsImageLeaf checks if a leaf name has an image extension.
func IsImageLeaf(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range imageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// CanThumbnail reports whether the pipeline can decode the format. RAW and
// HEIC leaves are registered but pass through without thumbnails.
func CanThumbnail(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}

// Job identifies one uploaded leaf to process.
type Job struct {
	NodeID     string
	Path       string
	Name       string
	ContentRef string
}

// Sink receives pipeline results. The API server implements it, committing
// dimensions to the metadata store and the live tree under its lock.
type Sink interface {
	ApplyDimensions(ctx context.Context, nodeID string, width, height int) error
}

// Processor is the background worker pool that extracts EXIF data and
// generates thumbnails for uploaded images.
type Processor struct {
	objects     storage.Backend
	sink        Sink
	broadcaster *events.Broadcaster
	queue       chan Job
	wg          sync.WaitGroup
	cancel      context.CancelFunc
	workers     int
}

// NewProcessor creates an image processor with the given worker count.
func NewProcessor(objects storage.Backend, sink Sink, broadcaster *events.Broadcaster, workers int) *Processor {
	if workers <= 0 {
		workers = 2
	}
	return &Processor{
		objects:     objects,
		sink:        sink,
		broadcaster: broadcaster,
		queue:       make(chan Job, 1000),
		workers:     workers,
	}
}

// Start launches the worker goroutines.
func (p *Processor) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	logging.Info("media processor started", zap.Int("workers", p.workers))
}

// Stop signals workers to stop and waits for them to finish. No Enqueue may
// run concurrently with or after Stop.
func (p *Processor) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	close(p.queue)
	p.wg.Wait()
	logging.Info("media processor stopped")
}

// Enqueue schedules a leaf for processing. Non-image leaves are skipped;
// a full queue drops the job rather than blocking the upload path.
func (p *Processor) Enqueue(job Job) {
	if !IsImageLeaf(job.Name) || job.ContentRef == "" {
		return
	}

	select {
	case p.queue <- job:
		metrics.SetMediaQueueDepth(int64(len(p.queue)))
	default:
		logging.Warn("media queue full, dropping", zap.String("path", job.Path))
	}
}

// ProcessExisting enqueues leaves that never got dimensions recorded,
// typically after a restart interrupted the pipeline.
func (p *Processor) ProcessExisting(nodes []*models.Node) {
	count := 0
	for _, n := range nodes {
		if !n.IsLeaf() || n.Width > 0 {
			continue
		}
		if !IsImageLeaf(n.Name) || n.ContentRef == "" {
			continue
		}
		p.Enqueue(Job{NodeID: n.ID, Path: n.Path, Name: n.Name, ContentRef: n.ContentRef})
		count++
	}
	if count > 0 {
		logging.Info("media: enqueued existing leaves for processing", zap.Int("count", count))
	}
}

func (p *Processor) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(ctx, job)
			metrics.SetMediaQueueDepth(int64(len(p.queue)))
		}
	}
}

func (p *Processor) process(ctx context.Context, job Job) {
	reader, _, err := p.objects.GetObject(ctx, job.ContentRef)
	if err != nil {
		logging.Warn("media: failed to read content", zap.String("path", job.Path), zap.Error(err))
		metrics.RecordMediaProcessed("failed")
		return
	}
	content, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		logging.Warn("media: failed to read content", zap.String("path", job.Path), zap.Error(err))
		metrics.RecordMediaProcessed("failed")
		return
	}

	exifData := ExtractExif(bytes.NewReader(content))
	width, height := exifData.Width, exifData.Height

	hasThumb := false
	if CanThumbnail(job.Name) {
		thumbBytes, tw, th, err := GenerateThumbnail(bytes.NewReader(content), exifData.Orientation)
		if err != nil {
			logging.Warn("media: thumbnail generation failed", zap.String("path", job.Path), zap.Error(err))
		} else {
			thumbKey := storage.ThumbKey(job.NodeID)
			if err := p.objects.PutObject(ctx, thumbKey, bytes.NewReader(thumbBytes), int64(len(thumbBytes))); err != nil {
				logging.Warn("media: failed to store thumbnail", zap.String("path", job.Path), zap.Error(err))
			} else {
				hasThumb = true
				logging.Debug("media: stored thumbnail",
					zap.String("key", thumbKey), zap.Int("width", tw), zap.Int("height", th))
			}
		}

		if width == 0 || height == 0 {
			if w, h, err := ImageDimensions(bytes.NewReader(content)); err == nil {
				width, height = w, h
				if exifData.Orientation >= 5 {
					width, height = height, width
				}
			}
		}
	}

	if width > 0 && height > 0 {
		if err := p.sink.ApplyDimensions(ctx, job.NodeID, width, height); err != nil {
			logging.Warn("media: failed to record dimensions", zap.String("path", job.Path), zap.Error(err))
			metrics.RecordMediaProcessed("failed")
			return
		}
	}

	if !hasThumb && width == 0 {
		metrics.RecordMediaProcessed("skipped")
	} else {
		metrics.RecordMediaProcessed("done")
	}

	if p.broadcaster != nil {
		p.broadcaster.Publish(events.Event{
			Type: events.EventProcessed,
			Path: job.Path,
			Kind: string(models.KindLeaf),
		})
	}

	fields := []zap.Field{
		zap.String("path", job.Path),
		zap.Bool("thumbnail", hasThumb),
		zap.Int("width", width),
		zap.Int("height", height),
	}
	if exifData.DateTaken != nil {
		fields = append(fields, zap.Time("taken", *exifData.DateTaken))
	}
	logging.Debug("media: processed image", fields...)
}
