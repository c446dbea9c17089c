package api

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kamii-Samaa/Product-Images/internal/engine"
	"github.com/Kamii-Samaa/Product-Images/internal/logging"
	"github.com/Kamii-Samaa/Product-Images/internal/media"
	"github.com/Kamii-Samaa/Product-Images/internal/metrics"
	"github.com/Kamii-Samaa/Product-Images/internal/storage"
	"github.com/Kamii-Samaa/Product-Images/internal/tree"
	"github.com/Kamii-Samaa/Product-Images/pkg/protocol"
)

// ─── Download ───────────────────────────────────────────────────────────────

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	pathParam := r.PathValue("path")
	if pathParam == "" {
		s.sendError(w, http.StatusBadRequest, "leaf path required")
		return
	}

	leafPath := tree.NormalizePath("/" + pathParam)
	node := s.lookupLeaf(leafPath)
	if node == nil {
		s.sendError(w, http.StatusNotFound, "leaf not found: "+leafPath)
		return
	}
	if node.ContentRef == "" {
		s.sendError(w, http.StatusNotFound, "no content stored for: "+leafPath)
		return
	}

	reader, size, err := s.objects.GetObject(r.Context(), node.ContentRef)
	if err != nil {
		metrics.RecordContentDownload(0, false)
		s.sendError(w, http.StatusInternalServerError, "content unavailable: "+err.Error())
		return
	}
	defer reader.Close()

	// Set Content-Type based on file extension
	ct := mime.TypeByExtension(path.Ext(node.Name))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	if !node.ModTime.IsZero() {
		w.Header().Set("Last-Modified", node.ModTime.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, reader)
	if err != nil {
		logging.Warn("content transfer error", zap.String("path", leafPath), zap.Error(err))
	}
	metrics.RecordContentDownload(n, err == nil)
}

func (s *Server) handleThumb(w http.ResponseWriter, r *http.Request) {
	pathParam := r.PathValue("path")
	if pathParam == "" {
		s.sendError(w, http.StatusBadRequest, "leaf path required")
		return
	}

	leafPath := tree.NormalizePath("/" + pathParam)
	node := s.lookupLeaf(leafPath)
	if node == nil {
		s.sendError(w, http.StatusNotFound, "leaf not found: "+leafPath)
		return
	}

	// Thumbnails are generated in the background; absent means not ready
	// or not thumbnailable.
	reader, size, err := s.objects.GetObject(r.Context(), storage.ThumbKey(node.ID))
	if err != nil {
		s.sendError(w, http.StatusNotFound, "thumbnail not available")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	io.Copy(w, reader)
}

// ─── Upload ─────────────────────────────────────────────────────────────────

// handleUpload stores the request body in the object backend and registers
// the leaf in the namespace. The blob is written first so a metadata failure
// never leaves a registered leaf without content; on engine rejection the
// orphaned blob is deleted again.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	pathParam := r.PathValue("path")
	if pathParam == "" {
		s.sendError(w, http.StatusBadRequest, "leaf path required")
		return
	}

	leafPath := tree.NormalizePath("/" + pathParam)
	name := path.Base(leafPath)
	parentPath := path.Dir(leafPath)

	// Check content length
	if r.ContentLength > s.maxUploadSize {
		s.sendError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("content too large: max %d bytes", s.maxUploadSize))
		return
	}

	content, err := io.ReadAll(io.LimitReader(r.Body, s.maxUploadSize+1))
	if err != nil {
		metrics.RecordContentUpload(0, false)
		s.sendError(w, http.StatusInternalServerError, "failed to read content")
		return
	}
	if int64(len(content)) > s.maxUploadSize {
		metrics.RecordContentUpload(0, false)
		s.sendError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("content too large: max %d bytes", s.maxUploadSize))
		return
	}

	// The node id is assigned up front so the content key can carry it.
	id := uuid.NewString()
	key := storage.ContentKey(id, name)

	if err := s.objects.PutObject(r.Context(), key, bytes.NewReader(content), int64(len(content))); err != nil {
		metrics.RecordContentUpload(0, false)
		logging.Error("upload: content store failed", zap.String("key", key), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to store content")
		return
	}

	s.mu.Lock()
	node, err := s.engine.RegisterLeaf(r.Context(), s.tree, engine.LeafSpec{
		ID:         id,
		Name:       name,
		ParentPath: parentPath,
		Size:       int64(len(content)),
		ContentRef: key,
	})
	s.mu.Unlock()
	if err != nil {
		// Roll back the blob written above.
		if delErr := s.objects.DeleteObject(r.Context(), key); delErr != nil {
			logging.Warn("upload: failed to remove orphaned content",
				zap.String("key", key), zap.Error(delErr))
		}
		metrics.RecordContentUpload(0, false)
		writeJSON(w, statusForKind(engine.KindOf(err)), protocol.UploadResponse{Result: failure(err)})
		return
	}

	metrics.RecordContentUpload(int64(len(content)), true)
	metrics.SetTreeSize(int64(s.treeLen()))

	if s.processor != nil {
		s.processor.Enqueue(media.Job{
			NodeID:     node.ID,
			Path:       node.Path,
			Name:       node.Name,
			ContentRef: key,
		})
	}

	writeJSON(w, http.StatusCreated, protocol.UploadResponse{Result: okResult(), Node: node})
}

func (s *Server) treeLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}
