package local

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(Config{RootPath: t.TempDir(), CreateDirs: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestPutGetRoundTrip(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	content := []byte("jpeg bytes go here")

	// Nested key exercises directory creation.
	key := "node-1/laptop.jpg"
	if err := b.PutObject(ctx, key, bytes.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	rc, size, err := b.GetObject(ctx, key)
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	defer rc.Close()

	if size != int64(len(content)) {
		t.Errorf("size = %d, want %d", size, len(content))
	}
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("content mismatch: got %q, want %q", got, content)
	}
}

func TestPutObjectOverwrites(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	key := "node-2/banner.png"
	first := strings.NewReader("first version")
	if err := b.PutObject(ctx, key, first, 13); err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	second := strings.NewReader("v2")
	if err := b.PutObject(ctx, key, second, 2); err != nil {
		t.Fatalf("PutObject overwrite: %v", err)
	}

	rc, size, err := b.GetObject(ctx, key)
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "v2" || size != 2 {
		t.Errorf("got %q (size %d), want \"v2\" (size 2)", got, size)
	}
}

func TestPutObjectLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	b, err := New(Config{RootPath: dir, CreateDirs: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := b.PutObject(context.Background(), "a/b.jpg", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "a"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestDeleteObject(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	key := "node-3/photo.jpg"
	if err := b.PutObject(ctx, key, strings.NewReader("data"), 4); err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	if err := b.DeleteObject(ctx, key); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}

	exists, err := b.ObjectExists(ctx, key)
	if err != nil {
		t.Fatalf("ObjectExists: %v", err)
	}
	if exists {
		t.Error("object still exists after delete")
	}
}

func TestDeleteMissingObjectIsNotAnError(t *testing.T) {
	b := newTestBackend(t)
	// Thumbnail keys are deleted on cascade even when the thumbnail was
	// never generated.
	if err := b.DeleteObject(context.Background(), "thumbs/never-made.jpg"); err != nil {
		t.Errorf("DeleteObject on missing key: %v", err)
	}
}

func TestObjectExists(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	exists, err := b.ObjectExists(ctx, "nope/missing.jpg")
	if err != nil {
		t.Fatalf("ObjectExists: %v", err)
	}
	if exists {
		t.Error("reported existing for missing key")
	}

	if err := b.PutObject(ctx, "yes/here.jpg", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	exists, err = b.ObjectExists(ctx, "yes/here.jpg")
	if err != nil {
		t.Fatalf("ObjectExists: %v", err)
	}
	if !exists {
		t.Error("reported missing for stored key")
	}
}

func TestNewRejectsNonDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := New(Config{RootPath: file}); err == nil {
		t.Error("New accepted a plain file as root path")
	}
}

func TestNewCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "store")
	if _, err := New(Config{RootPath: root, CreateDirs: true}); err != nil {
		t.Fatalf("New: %v", err)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		t.Errorf("root not created: %v", err)
	}
}
