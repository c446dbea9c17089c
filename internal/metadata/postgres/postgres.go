// Package postgres provides a PostgreSQL-backed metadata store with metrics.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/Kamii-Samaa/Product-Images/internal/logging"
	"github.com/Kamii-Samaa/Product-Images/internal/metadata"
	"github.com/Kamii-Samaa/Product-Images/internal/metrics"
	"github.com/Kamii-Samaa/Product-Images/pkg/models"
	"go.uber.org/zap"
)

// Store is a PostgreSQL metadata store. It expects canonical paths from
// its callers; the mutation engine is the only writer.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL metadata store.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for use by other packages.
func (s *Store) DB() *sql.DB {
	return s.db
}

// UpdateConnectionMetrics updates the database connection metrics.
func (s *Store) UpdateConnectionMetrics() {
	stats := s.db.Stats()
	metrics.SetDBConnectionsOpen(stats.OpenConnections)
}

// Migrate runs SQL migration files.
func (s *Store) Migrate(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}

	for _, f := range files {
		logging.Info("running migration", zap.String("file", filepath.Base(f)))
		content, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}

	return nil
}

// ─── Reads ───────────────────────────────────────────────────────────────────

// SelectAll returns every node row ordered by path. It is the tree
// hydration query, so refresh metrics are recorded here.
func (s *Store) SelectAll(ctx context.Context) ([]*models.Node, error) {
	start := time.Now()
	defer func() {
		metrics.RecordDBQuery("select_all", time.Since(start))
		metrics.RecordTreeRefresh(time.Since(start))
	}()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, kind, path, parent_id, size, width, height, content_ref, mod_time
		 FROM nodes ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var out []*models.Node
	for rows.Next() {
		var n models.Node
		if err := rows.Scan(&n.ID, &n.Name, &n.Kind, &n.Path, &n.ParentID,
			&n.Size, &n.Width, &n.Height, &n.ContentRef, &n.ModTime); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	metrics.SetTreeSize(int64(len(out)))
	logging.Debug("loaded node rows", zap.Int("nodes", len(out)))
	return out, nil
}

// SelectByPath resolves a single row by path, or nil when absent.
func (s *Store) SelectByPath(ctx context.Context, path string) (*models.Node, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select_by_path", time.Since(start)) }()

	var n models.Node
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, kind, path, parent_id, size, width, height, content_ref, mod_time
		 FROM nodes WHERE path = $1`, path).
		Scan(&n.ID, &n.Name, &n.Kind, &n.Path, &n.ParentID,
			&n.Size, &n.Width, &n.Height, &n.ContentRef, &n.ModTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return &n, nil
}

// Search returns rows whose name contains the query, case-insensitively.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]*models.Node, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("search", time.Since(start)) }()

	if limit <= 0 || limit > 200 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, kind, path, parent_id, size, width, height, content_ref, mod_time
		 FROM nodes WHERE name ILIKE '%' || $1 || '%' ESCAPE '\'
		 ORDER BY path LIMIT $2`, escapeLike(query), limit)
	if err != nil {
		return nil, fmt.Errorf("search nodes: %w", err)
	}
	defer rows.Close()

	var out []*models.Node
	for rows.Next() {
		var n models.Node
		if err := rows.Scan(&n.ID, &n.Name, &n.Kind, &n.Path, &n.ParentID,
			&n.Size, &n.Width, &n.Height, &n.ContentRef, &n.ModTime); err != nil {
			return nil, fmt.Errorf("scan search: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// Stats summarizes stored node counts and total leaf bytes.
func (s *Store) Stats(ctx context.Context) (metadata.Stats, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("stats", time.Since(start)) }()

	var st metadata.Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FILTER (WHERE kind = 'folder'),
		        COUNT(*) FILTER (WHERE kind = 'leaf'),
		        COALESCE(SUM(size) FILTER (WHERE kind = 'leaf'), 0)
		 FROM nodes`).
		Scan(&st.Folders, &st.Leaves, &st.TotalBytes)
	if err != nil {
		return metadata.Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return st, nil
}

// ─── Mutations ───────────────────────────────────────────────────────────────

// InsertNode adds one node row. Path uniqueness is validated upstream;
// the UNIQUE constraint is the backstop.
func (s *Store) InsertNode(ctx context.Context, n *models.Node) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert_node", time.Since(start)) }()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nodes (id, name, kind, path, parent_id, size, width, height, content_ref, mod_time, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`,
		n.ID, n.Name, n.Kind, n.Path, n.ParentID, n.Size, n.Width, n.Height, n.ContentRef, n.ModTime)
	if err != nil {
		return fmt.Errorf("insert node: %w", err)
	}

	logging.Debug("inserted node",
		zap.String("path", n.Path),
		zap.String("kind", string(n.Kind)),
		zap.Int64("size", n.Size))
	return nil
}

// RenameNode updates the target's name and path and prefix-rewrites every
// row under oldPath, in one transaction. Parent ids are untouched: the
// hierarchy is unchanged by a rename.
func (s *Store) RenameNode(ctx context.Context, id, newName, oldPath, newPath string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("rename_node", time.Since(start)) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE nodes SET name = $1, path = $2, updated_at = NOW() WHERE id = $3`,
		newName, newPath, id)
	if err != nil {
		return fmt.Errorf("rename node: %w", err)
	}

	if err := rewriteDescendants(ctx, tx, oldPath, newPath); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	logging.Debug("renamed node", zap.String("from", oldPath), zap.String("to", newPath))
	return nil
}

// MoveNodes applies a move batch in one transaction. A failure anywhere
// rolls back the whole batch.
func (s *Store) MoveNodes(ctx context.Context, moves []metadata.Move) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("move_nodes", time.Since(start)) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, m := range moves {
		_, err = tx.ExecContext(ctx,
			`UPDATE nodes SET parent_id = $1, path = $2, updated_at = NOW() WHERE id = $3`,
			m.NewParentID, m.NewPath, m.ID)
		if err != nil {
			return fmt.Errorf("move node %s: %w", m.OldPath, err)
		}
		if err := rewriteDescendants(ctx, tx, m.OldPath, m.NewPath); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	logging.Debug("moved nodes", zap.Int("count", len(moves)))
	return nil
}

// likeEscaper backslash-escapes LIKE metacharacters. '%' and '_' are legal
// in node names, so patterns built from paths or queries must match them
// literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// rewriteDescendants swaps oldPath for newPath at the front of every row
// strictly below oldPath. Descendant parent ids stay valid on their own.
// The LIKE pattern is escaped; the substring offset uses the raw oldPath,
// whose length is the prefix actually stored in each row.
func rewriteDescendants(ctx context.Context, tx *sql.Tx, oldPath, newPath string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE nodes SET
		   path = $1 || substring(path from length($2) + 1),
		   updated_at = NOW()
		 WHERE path LIKE $3 ESCAPE '\'`,
		newPath, oldPath, escapeLike(oldPath)+`/%`)
	if err != nil {
		return fmt.Errorf("rewrite descendants: %w", err)
	}
	return nil
}

// DeleteSubtrees removes the rows at the given paths and everything under
// them, returning the number of rows removed.
func (s *Store) DeleteSubtrees(ctx context.Context, paths []string) (int64, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("delete_subtrees", time.Since(start)) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var removed int64
	for _, p := range paths {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM nodes WHERE path = $1 OR path LIKE $2 ESCAPE '\'`,
			p, escapeLike(p)+`/%`)
		if err != nil {
			return 0, fmt.Errorf("delete subtree %s: %w", p, err)
		}
		rows, _ := result.RowsAffected()
		removed += rows
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	logging.Debug("deleted subtrees", zap.Int("roots", len(paths)), zap.Int64("rows", removed))
	return removed, nil
}

// SetDimensions records decoded pixel dimensions on a leaf row.
func (s *Store) SetDimensions(ctx context.Context, id string, width, height int) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("set_dimensions", time.Since(start)) }()

	_, err := s.db.ExecContext(ctx,
		`UPDATE nodes SET width = $1, height = $2, updated_at = NOW() WHERE id = $3`,
		width, height, id)
	if err != nil {
		return fmt.Errorf("set dimensions: %w", err)
	}
	return nil
}
