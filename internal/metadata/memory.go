package metadata

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Kamii-Samaa/Product-Images/pkg/models"
)

// MemoryStore is a mutex-guarded, map-backed Store. It backs demo mode
// (no DATABASE_URL configured) and hermetic tests. Rows are cloned on the
// way in and out so callers never share pointers with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]*models.Node // id -> row
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*models.Node)}
}

// InsertNode adds one node row.
func (s *MemoryStore) InsertNode(ctx context.Context, n *models.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[n.ID] = n.Clone()
	return nil
}

// RenameNode updates the target's name and path and prefix-rewrites every
// row under oldPath.
func (s *MemoryStore) RenameNode(ctx context.Context, id, newName, oldPath, newPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.rows[id]; ok {
		row.Name = newName
		row.Path = newPath
	}
	s.rewritePrefixLocked(oldPath, newPath)
	return nil
}

// MoveNodes applies a move batch.
func (s *MemoryStore) MoveNodes(ctx context.Context, moves []Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range moves {
		if row, ok := s.rows[m.ID]; ok {
			row.ParentID = m.NewParentID
			row.Path = m.NewPath
		}
		s.rewritePrefixLocked(m.OldPath, m.NewPath)
	}
	return nil
}

// rewritePrefixLocked swaps oldPath for newPath at the front of every row
// strictly below oldPath. Callers hold the write lock.
func (s *MemoryStore) rewritePrefixLocked(oldPath, newPath string) {
	prefix := oldPath + "/"
	for _, row := range s.rows {
		if strings.HasPrefix(row.Path, prefix) {
			row.Path = newPath + row.Path[len(oldPath):]
		}
	}
}

// DeleteSubtrees removes the rows at the given paths and everything under
// them, returning the number of rows removed.
func (s *MemoryStore) DeleteSubtrees(ctx context.Context, paths []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for _, p := range paths {
		prefix := p + "/"
		for id, row := range s.rows {
			if row.Path == p || strings.HasPrefix(row.Path, prefix) {
				delete(s.rows, id)
				removed++
			}
		}
	}
	return removed, nil
}

// SetDimensions records decoded pixel dimensions on a leaf row.
func (s *MemoryStore) SetDimensions(ctx context.Context, id string, width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.rows[id]; ok {
		row.Width = width
		row.Height = height
	}
	return nil
}

// SelectAll returns every row ordered by path.
func (s *MemoryStore) SelectAll(ctx context.Context) ([]*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Node, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// SelectByPath resolves a single row by path, or nil when absent.
func (s *MemoryStore) SelectByPath(ctx context.Context, path string) (*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, row := range s.rows {
		if row.Path == path {
			return row.Clone(), nil
		}
	}
	return nil, nil
}

// Search returns rows whose name contains the query, case-insensitively.
func (s *MemoryStore) Search(ctx context.Context, query string, limit int) ([]*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > 200 {
		limit = 200
	}

	q := strings.ToLower(query)
	var out []*models.Node
	for _, row := range s.rows {
		if strings.Contains(strings.ToLower(row.Name), q) {
			out = append(out, row.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats summarizes stored node counts and total leaf bytes.
func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	for _, row := range s.rows {
		if row.IsFolder() {
			st.Folders++
		} else {
			st.Leaves++
			st.TotalBytes += row.Size
		}
	}
	return st, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }
