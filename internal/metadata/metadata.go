// Package metadata defines the persistent row store contract for namespace
// nodes. The store is a mirror of the in-memory tree: the mutation engine
// writes rows first and applies the same change to the tree only after the
// write commits, so hierarchy queries answered via parent_id equality and
// via path-prefix matching always agree.
package metadata

import (
	"context"

	"github.com/Kamii-Samaa/Product-Images/pkg/models"
)

// Move describes one target of a move batch as a row-level change: the
// target row gets a new parent reference and path, and every row under
// OldPath gets the same prefix swapped in.
type Move struct {
	ID          string
	NewParentID string // "" reparents to the root
	OldPath     string
	NewPath     string
}

// Stats summarizes the stored namespace.
type Stats struct {
	Folders    int64 `json:"folders"`
	Leaves     int64 `json:"leaves"`
	TotalBytes int64 `json:"total_bytes"`
}

// Store is the persistent mirror of the namespace tree. Compound
// operations (rename, move, subtree delete) apply their whole row-change
// set atomically or not at all.
type Store interface {
	// InsertNode adds one validated node row.
	InsertNode(ctx context.Context, n *models.Node) error

	// RenameNode updates the target row's name and path and prefix-rewrites
	// the paths of every row under oldPath, in one transaction.
	RenameNode(ctx context.Context, id, newName, oldPath, newPath string) error

	// MoveNodes applies a validated move batch in one transaction.
	MoveNodes(ctx context.Context, moves []Move) error

	// DeleteSubtrees removes the rows at the given paths and everything
	// under them in one transaction, returning the number of rows removed.
	DeleteSubtrees(ctx context.Context, paths []string) (int64, error)

	// SetDimensions records decoded pixel dimensions on a leaf row. A
	// vanished row is not an error; the caller treats it as a no-op.
	SetDimensions(ctx context.Context, id string, width, height int) error

	// SelectAll returns every row for tree hydration.
	SelectAll(ctx context.Context) ([]*models.Node, error)

	// SelectByPath resolves a single row by its normalized path, or nil.
	SelectByPath(ctx context.Context, path string) (*models.Node, error)

	// Search returns leaf and folder rows whose name matches the query.
	Search(ctx context.Context, query string, limit int) ([]*models.Node, error)

	// Stats summarizes stored node counts and total leaf bytes.
	Stats(ctx context.Context) (Stats, error)

	// Close releases the underlying connection.
	Close() error
}
