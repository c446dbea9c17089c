package media

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Kamii-Samaa/Product-Images/internal/events"
	"github.com/Kamii-Samaa/Product-Images/internal/logging"
	"github.com/Kamii-Samaa/Product-Images/internal/storage"
	"github.com/Kamii-Samaa/Product-Images/pkg/models"
)

func TestMain(m *testing.M) {
	logging.Init(logging.Config{Level: "error", Format: "console"})
	m.Run()
}

// memBackend is an in-memory storage.Backend for pipeline tests.
type memBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBackend() *memBackend {
	return &memBackend{objects: make(map[string][]byte)}
}

func (m *memBackend) GetObject(_ context.Context, key string) (io.ReadCloser, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, 0, fmt.Errorf("no such object: %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (m *memBackend) PutObject(_ context.Context, key string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return nil
}

func (m *memBackend) DeleteObject(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *memBackend) ObjectExists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memBackend) Type() string { return "mem" }
func (m *memBackend) Close() error { return nil }

// recordSink captures dimension writebacks.
type recordSink struct {
	mu     sync.Mutex
	nodeID string
	width  int
	height int
	calls  int
	notify chan struct{}
}

func (s *recordSink) ApplyDimensions(_ context.Context, nodeID string, width, height int) error {
	s.mu.Lock()
	s.nodeID = nodeID
	s.width = width
	s.height = height
	s.calls++
	s.mu.Unlock()
	if s.notify != nil {
		s.notify <- struct{}{}
	}
	return nil
}

func TestProcessRecordsDimensionsAndThumbnail(t *testing.T) {
	objects := newMemBackend()
	sink := &recordSink{}
	broadcaster := events.NewBroadcaster()
	p := NewProcessor(objects, sink, broadcaster, 1)

	src := pngImage(t, 800, 600)
	ref := "node-1/camera.png"
	if err := objects.PutObject(context.Background(), ref, bytes.NewReader(src), int64(len(src))); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	ch := broadcaster.Subscribe()
	defer broadcaster.Unsubscribe(ch)

	p.process(context.Background(), Job{
		NodeID:     "node-1",
		Path:       "/Products/camera.png",
		Name:       "camera.png",
		ContentRef: ref,
	})

	if sink.calls != 1 || sink.nodeID != "node-1" {
		t.Fatalf("sink calls = %d (node %q), want 1 call for node-1", sink.calls, sink.nodeID)
	}
	if sink.width != 800 || sink.height != 600 {
		t.Errorf("dimensions = %dx%d, want 800x600", sink.width, sink.height)
	}

	thumbKey := storage.ThumbKey("node-1")
	rc, _, err := objects.GetObject(context.Background(), thumbKey)
	if err != nil {
		t.Fatalf("thumbnail not stored at %s: %v", thumbKey, err)
	}
	defer rc.Close()
	img, err := jpeg.Decode(rc)
	if err != nil {
		t.Fatalf("thumbnail is not a JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 300 {
		t.Errorf("thumbnail is %dx%d, want 400x300", b.Dx(), b.Dy())
	}

	select {
	case ev := <-ch:
		if ev.Type != events.EventProcessed || ev.Path != "/Products/camera.png" {
			t.Errorf("event = %+v, want processed /Products/camera.png", ev)
		}
	default:
		t.Error("no processed event published")
	}
}

func TestProcessMissingContentSkipsSink(t *testing.T) {
	p := NewProcessor(newMemBackend(), &recordSink{}, nil, 1)

	p.process(context.Background(), Job{
		NodeID:     "node-2",
		Path:       "/gone.jpg",
		Name:       "gone.jpg",
		ContentRef: "node-2/gone.jpg",
	})

	sink := p.sink.(*recordSink)
	if sink.calls != 0 {
		t.Errorf("sink called %d times for missing content", sink.calls)
	}
}

func TestProcessUndecodableImage(t *testing.T) {
	objects := newMemBackend()
	sink := &recordSink{}
	p := NewProcessor(objects, sink, nil, 1)

	ref := "node-3/fake.jpg"
	objects.PutObject(context.Background(), ref, bytes.NewReader([]byte("not a jpeg")), 10)

	p.process(context.Background(), Job{NodeID: "node-3", Path: "/fake.jpg", Name: "fake.jpg", ContentRef: ref})

	if sink.calls != 0 {
		t.Errorf("sink called for undecodable image")
	}
	if ok, _ := objects.ObjectExists(context.Background(), storage.ThumbKey("node-3")); ok {
		t.Error("thumbnail stored for undecodable image")
	}
}

func TestEnqueueSkipsNonImages(t *testing.T) {
	p := NewProcessor(newMemBackend(), &recordSink{}, nil, 1)

	p.Enqueue(Job{NodeID: "a", Name: "manual.pdf", ContentRef: "a/manual.pdf"})
	p.Enqueue(Job{NodeID: "b", Name: "photo.jpg", ContentRef: ""})

	if len(p.queue) != 0 {
		t.Errorf("queue depth = %d, want 0", len(p.queue))
	}

	p.Enqueue(Job{NodeID: "c", Name: "photo.jpg", ContentRef: "c/photo.jpg"})
	if len(p.queue) != 1 {
		t.Errorf("queue depth = %d, want 1", len(p.queue))
	}
}

func TestProcessExistingEnqueuesDimensionlessLeaves(t *testing.T) {
	p := NewProcessor(newMemBackend(), &recordSink{}, nil, 1)

	nodes := []*models.Node{
		{ID: "f1", Name: "Products", Kind: models.KindFolder, Path: "/Products"},
		{ID: "l1", Name: "raw.jpg", Kind: models.KindLeaf, Path: "/Products/raw.jpg", ContentRef: "l1/raw.jpg"},
		{ID: "l2", Name: "done.jpg", Kind: models.KindLeaf, Path: "/Products/done.jpg", ContentRef: "l2/done.jpg", Width: 640, Height: 480},
		{ID: "l3", Name: "notes.txt", Kind: models.KindLeaf, Path: "/Products/notes.txt", ContentRef: "l3/notes.txt"},
	}

	p.ProcessExisting(nodes)

	if len(p.queue) != 1 {
		t.Fatalf("queue depth = %d, want 1", len(p.queue))
	}
	job := <-p.queue
	if job.NodeID != "l1" {
		t.Errorf("enqueued %q, want l1", job.NodeID)
	}
}

func TestWorkersDrainQueue(t *testing.T) {
	objects := newMemBackend()
	sink := &recordSink{notify: make(chan struct{}, 8)}
	p := NewProcessor(objects, sink, nil, 2)

	src := pngImage(t, 64, 48)
	for i := 0; i < 4; i++ {
		ref := fmt.Sprintf("n%d/img.png", i)
		objects.PutObject(context.Background(), ref, bytes.NewReader(src), int64(len(src)))
		p.Enqueue(Job{NodeID: fmt.Sprintf("n%d", i), Path: "/img.png", Name: "img.png", ContentRef: ref})
	}

	p.Start(context.Background())
	for i := 0; i < 4; i++ {
		select {
		case <-sink.notify:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for job %d", i)
		}
	}
	p.Stop()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.calls != 4 {
		t.Errorf("processed %d jobs, want 4", sink.calls)
	}
}

func TestIsImageLeaf(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"photo.jpg", true},
		{"photo.JPEG", true},
		{"scan.tiff", true},
		{"shot.CR2", true},
		{"doc.pdf", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := IsImageLeaf(tt.name); got != tt.want {
			t.Errorf("IsImageLeaf(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCanThumbnail(t *testing.T) {
	if !CanThumbnail("a.png") || !CanThumbnail("b.JPG") {
		t.Error("decodable formats rejected")
	}
	if CanThumbnail("c.cr2") || CanThumbnail("d.heic") {
		t.Error("RAW/HEIC reported decodable")
	}
}
