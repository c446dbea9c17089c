// Package api provides the HTTP server and handlers.
package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Kamii-Samaa/Product-Images/internal/auth"
	"github.com/Kamii-Samaa/Product-Images/internal/engine"
	"github.com/Kamii-Samaa/Product-Images/internal/events"
	"github.com/Kamii-Samaa/Product-Images/internal/logging"
	"github.com/Kamii-Samaa/Product-Images/internal/media"
	"github.com/Kamii-Samaa/Product-Images/internal/metadata"
	"github.com/Kamii-Samaa/Product-Images/internal/metrics"
	"github.com/Kamii-Samaa/Product-Images/internal/storage"
	"github.com/Kamii-Samaa/Product-Images/internal/tree"
	"github.com/Kamii-Samaa/Product-Images/pkg/models"
	"github.com/Kamii-Samaa/Product-Images/pkg/protocol"
)

// Pool gzip writers to reduce allocations on the tree endpoint.
var gzipPool = sync.Pool{
	New: func() any { return gzip.NewWriter(nil) },
}

// Server is the HTTP server. The in-memory tree is shared between request
// handlers and the media pipeline: reads take mu.RLock, every mutation takes
// mu.Lock for the whole engine call so validation and apply stay atomic.
type Server struct {
	mu   sync.RWMutex
	tree *tree.Tree

	store   metadata.Store
	engine  *engine.Engine
	objects storage.Backend
	auth    *auth.Auth

	broadcaster *events.Broadcaster
	processor   *media.Processor

	maxUploadSize int64
}

// NewServer creates a new server. The engine is built from the same store,
// object backend and broadcaster the server uses. The tree starts empty;
// Init replaces it with the store's contents.
func NewServer(store metadata.Store, objects storage.Backend, authHandler *auth.Auth, broadcaster *events.Broadcaster, maxUploadSize int64) *Server {
	return &Server{
		tree:          tree.New(),
		store:         store,
		engine:        engine.New(store, objects, broadcaster),
		objects:       objects,
		auth:          authHandler,
		broadcaster:   broadcaster,
		maxUploadSize: maxUploadSize,
	}
}

// AttachProcessor wires the background media pipeline into the server.
// Call before Handler starts serving traffic.
func (s *Server) AttachProcessor(p *media.Processor) {
	s.processor = p
}

// Init hydrates the in-memory tree from the metadata store.
func (s *Server) Init(ctx context.Context) error {
	logging.Info("building namespace tree from metadata...")
	start := time.Now()
	rows, err := s.store.SelectAll(ctx)
	if err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}
	t := tree.Build(rows)
	s.mu.Lock()
	s.tree = t
	s.mu.Unlock()
	metrics.SetTreeSize(int64(t.Len()))
	metrics.RecordTreeRefresh(time.Since(start))
	logging.Info("namespace tree built",
		zap.Int("nodes", t.Len()),
		zap.Duration("took", time.Since(start)))
	return nil
}

// ApplyDimensions records pixel dimensions extracted by the media pipeline.
// Implements media.Sink.
func (s *Server) ApplyDimensions(ctx context.Context, nodeID string, width, height int) error {
	if err := s.store.SetDimensions(ctx, nodeID, width, height); err != nil {
		return err
	}
	s.mu.Lock()
	s.tree.SetDimensions(nodeID, width, height)
	s.mu.Unlock()
	return nil
}

// Handler returns the HTTP handler with auth, logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/token", s.auth.HandleLogin)

	// Protected endpoints
	protected := http.NewServeMux()

	// Read endpoints
	protected.HandleFunc("GET /api/v1/tree", s.handleTree)
	protected.HandleFunc("GET /api/v1/list", s.handleList)
	protected.HandleFunc("GET /api/v1/list/{path...}", s.handleList)
	protected.HandleFunc("GET /api/v1/folders", s.handleFolderPaths)
	protected.HandleFunc("GET /api/v1/search", s.handleSearch)
	protected.HandleFunc("GET /api/v1/stats", s.handleStats)
	protected.HandleFunc("GET /api/v1/content/{path...}", s.handleContent)
	protected.HandleFunc("GET /api/v1/thumb/{path...}", s.handleThumb)

	// SSE endpoint
	protected.HandleFunc("GET /api/v1/events", s.handleEvents)

	// Mutation endpoints additionally require the editor role
	editor := func(h http.HandlerFunc) http.Handler { return s.auth.RequireEditor(h) }
	protected.Handle("POST /api/v1/folders", editor(s.handleCreateFolder))
	protected.Handle("POST /api/v1/upload/{path...}", editor(s.handleUpload))
	protected.Handle("POST /api/v1/rename", editor(s.handleRename))
	protected.Handle("POST /api/v1/move", editor(s.handleMove))
	protected.Handle("POST /api/v1/delete", editor(s.handleDelete))

	mux.Handle("/api/v1/", s.auth.Middleware(protected))

	// Apply logging and metrics middleware
	return metrics.Middleware(logging.Middleware(mux))
}

// ─── Health ─────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": "1.0"})
}

// ─── SSE Events ─────────────────────────────────────────────────────────────

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

// ─── Tree reads ─────────────────────────────────────────────────────────────

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	root := s.tree.Subtree("/")
	s.mu.RUnlock()

	resp := protocol.TreeResponse{Root: root}

	if acceptsGzip(r) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "gzip")
		gw := gzipPool.Get().(*gzip.Writer)
		gw.Reset(w)
		json.NewEncoder(gw).Encode(resp)
		gw.Close()
		gzipPool.Put(gw)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	dirPath := tree.NormalizePath("/" + r.PathValue("path"))

	sortBy := r.URL.Query().Get("sort")
	if sortBy == "" {
		sortBy = models.SortByName
	}
	order := r.URL.Query().Get("order")
	if order == "" {
		order = models.OrderAsc
	}

	s.mu.RLock()
	n, ok := s.tree.FindByPath(dirPath)
	if !ok || !n.IsFolder() {
		s.mu.RUnlock()
		s.sendError(w, http.StatusNotFound, "folder not found: "+dirPath)
		return
	}
	children := s.tree.ChildrenOf(dirPath)
	items := make([]*models.Node, 0, len(children))
	for _, child := range children {
		items = append(items, child.Clone())
	}
	s.mu.RUnlock()

	items = models.SortNodes(items, sortBy, order)

	writeJSON(w, http.StatusOK, protocol.ListResponse{
		Path:   dirPath,
		SortBy: sortBy,
		Order:  order,
		Items:  items,
	})
}

// handleFolderPaths returns every folder path, for destination pickers.
func (s *Server) handleFolderPaths(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	folders := s.tree.FolderPaths()
	paths := make([]string, 0, len(folders))
	for _, n := range folders {
		paths = append(paths, n.Path)
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, protocol.FolderPathsResponse{Paths: paths})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.sendError(w, http.StatusBadRequest, "query parameter q required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		fmt.Sscanf(raw, "%d", &limit)
	}

	results, err := s.store.Search(r.Context(), query, limit)
	if err != nil {
		logging.Error("search failed", zap.String("query", query), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "search failed")
		return
	}

	writeJSON(w, http.StatusOK, protocol.SearchResponse{Query: query, Results: results})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		logging.Error("stats query failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}

	writeJSON(w, http.StatusOK, protocol.StatsResponse{
		Folders:    stats.Folders,
		Leaves:     stats.Leaves,
		TotalBytes: stats.TotalBytes,
	})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// lookupLeaf resolves a namespace path to a leaf node copy, or nil.
func (s *Server) lookupLeaf(path string) *models.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.tree.FindByPath(path)
	if !ok || !n.IsLeaf() {
		return nil
	}
	return n.Clone()
}

// statusForKind maps the engine error taxonomy onto HTTP status codes.
func statusForKind(kind string) int {
	switch kind {
	case engine.KindNotFound:
		return http.StatusNotFound
	case engine.KindDuplicatePath, engine.KindCircularMove:
		return http.StatusConflict
	case engine.KindInvalidName:
		return http.StatusBadRequest
	case engine.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func okResult() protocol.Result {
	return protocol.Result{OK: true}
}

// failure wraps an engine error into the mutation result envelope.
func failure(err error) protocol.Result {
	return protocol.Result{
		OK:        false,
		ErrorKind: engine.KindOf(err),
		Message:   err.Error(),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func acceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}
