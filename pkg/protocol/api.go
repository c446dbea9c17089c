// Package protocol defines the API request/response types.
package protocol

import (
	"github.com/Kamii-Samaa/Product-Images/pkg/models"
)

// Result is the outcome envelope embedded in every mutation response.
// ErrorKind carries the engine taxonomy ("not_found", "duplicate_path",
// "circular_move", "invalid_name", "forbidden", "persistence_failure").
type Result struct {
	OK        bool   `json:"ok"`
	ErrorKind string `json:"error_kind,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ErrorResponse is returned on transport-level errors (bad request bodies,
// authentication failures) outside the mutation envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details string `json:"details,omitempty"`
}

// TreeResponse is returned by GET /api/v1/tree.
type TreeResponse struct {
	Root *models.Node `json:"root"`
}

// ListResponse is returned by GET /api/v1/list/{path...}. Items carry the
// folders-first presentation order requested via ?sort= and ?order=.
type ListResponse struct {
	Path   string         `json:"path"`
	SortBy string         `json:"sort_by"`
	Order  string         `json:"order"`
	Items  []*models.Node `json:"items"`
}

// FolderPathsResponse is returned by GET /api/v1/folders: every folder
// path usable as a create or move destination, root first.
type FolderPathsResponse struct {
	Paths []string `json:"paths"`
}

// SearchResponse is returned by GET /api/v1/search.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []*models.Node `json:"results"`
}

// StatsResponse is returned by GET /api/v1/stats.
type StatsResponse struct {
	Folders    int64 `json:"folders"`
	Leaves     int64 `json:"leaves"`
	TotalBytes int64 `json:"total_bytes"`
}

// ─── Mutations ───────────────────────────────────────────────────────────────

// CreateFolderRequest is the body for POST /api/v1/folders.
type CreateFolderRequest struct {
	Name       string `json:"name"`
	ParentPath string `json:"parent_path"`
}

// CreateFolderResponse is the response for POST /api/v1/folders.
type CreateFolderResponse struct {
	Result
	Node *models.Node `json:"node,omitempty"`
}

// UploadResponse is the response for POST /api/v1/upload/{path...}.
type UploadResponse struct {
	Result
	Node *models.Node `json:"node,omitempty"`
}

// RenameRequest is the body for POST /api/v1/rename.
type RenameRequest struct {
	ID      string `json:"id"`
	NewName string `json:"new_name"`
}

// RenameResponse is the response for POST /api/v1/rename.
type RenameResponse struct {
	Result
	Node *models.Node `json:"node,omitempty"`
}

// MoveRequest is the body for POST /api/v1/move. IDs may name one node or
// a whole multi-selection; the batch succeeds or fails as a unit.
type MoveRequest struct {
	IDs         []string `json:"ids"`
	Destination string   `json:"destination"`
}

// MoveResponse is the response for POST /api/v1/move.
type MoveResponse struct {
	Result
	Moved int `json:"moved"`
}

// DeleteRequest is the body for POST /api/v1/delete.
type DeleteRequest struct {
	IDs []string `json:"ids"`
}

// DeleteResponse is the response for POST /api/v1/delete. Deleted counts
// every removed node, descendants included.
type DeleteResponse struct {
	Result
	Deleted int64 `json:"deleted"`
}

// ─── Events ──────────────────────────────────────────────────────────────────

// SSEEvent represents a server-sent event for live namespace updates.
type SSEEvent struct {
	Type      string `json:"type"`
	Path      string `json:"path"`
	OldPath   string `json:"old_path,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Size      int64  `json:"size,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
