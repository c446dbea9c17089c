package api

import (
	"encoding/json"
	"net/http"

	"github.com/Kamii-Samaa/Product-Images/internal/engine"
	"github.com/Kamii-Samaa/Product-Images/internal/metrics"
	"github.com/Kamii-Samaa/Product-Images/pkg/protocol"
)

// Mutation handlers decode the request, run a single engine call under the
// write lock and wrap the outcome in the result envelope. Engine rejections
// are responses, not transport errors: the taxonomy kind picks the status
// code and the envelope carries the detail.

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req protocol.CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ParentPath == "" {
		req.ParentPath = "/"
	}

	s.mu.Lock()
	node, err := s.engine.CreateFolder(r.Context(), s.tree, req.Name, req.ParentPath)
	s.mu.Unlock()
	if err != nil {
		writeJSON(w, statusForKind(engine.KindOf(err)), protocol.CreateFolderResponse{Result: failure(err)})
		return
	}

	metrics.SetTreeSize(int64(s.treeLen()))
	writeJSON(w, http.StatusCreated, protocol.CreateFolderResponse{Result: okResult(), Node: node})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req protocol.RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		s.sendError(w, http.StatusBadRequest, "id required")
		return
	}

	s.mu.Lock()
	node, err := s.engine.Rename(r.Context(), s.tree, req.ID, req.NewName)
	s.mu.Unlock()
	if err != nil {
		writeJSON(w, statusForKind(engine.KindOf(err)), protocol.RenameResponse{Result: failure(err)})
		return
	}

	writeJSON(w, http.StatusOK, protocol.RenameResponse{Result: okResult(), Node: node})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req protocol.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		s.sendError(w, http.StatusBadRequest, "ids required")
		return
	}
	if req.Destination == "" {
		s.sendError(w, http.StatusBadRequest, "destination required")
		return
	}

	s.mu.Lock()
	moved, err := s.engine.Move(r.Context(), s.tree, req.IDs, req.Destination)
	s.mu.Unlock()
	if err != nil {
		writeJSON(w, statusForKind(engine.KindOf(err)), protocol.MoveResponse{Result: failure(err)})
		return
	}

	writeJSON(w, http.StatusOK, protocol.MoveResponse{Result: okResult(), Moved: moved})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req protocol.DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		s.sendError(w, http.StatusBadRequest, "ids required")
		return
	}

	s.mu.Lock()
	deleted, err := s.engine.Delete(r.Context(), s.tree, req.IDs)
	s.mu.Unlock()
	if err != nil {
		writeJSON(w, statusForKind(engine.KindOf(err)), protocol.DeleteResponse{Result: failure(err)})
		return
	}

	metrics.SetTreeSize(int64(s.treeLen()))
	writeJSON(w, http.StatusOK, protocol.DeleteResponse{Result: okResult(), Deleted: deleted})
}
