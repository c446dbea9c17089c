package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kamii-Samaa/Product-Images/internal/events"
	"github.com/Kamii-Samaa/Product-Images/internal/logging"
	"github.com/Kamii-Samaa/Product-Images/internal/metadata"
	"github.com/Kamii-Samaa/Product-Images/internal/metrics"
	"github.com/Kamii-Samaa/Product-Images/internal/storage"
	"github.com/Kamii-Samaa/Product-Images/internal/tree"
	"github.com/Kamii-Samaa/Product-Images/pkg/models"
)

// Engine applies namespace mutations against an explicitly passed tree.
// It is the tree's only writer. Operations are not safe for concurrent use
// on the same tree; callers serialize (the API server holds one RWMutex).
type Engine struct {
	store       metadata.Store
	objects     storage.Backend     // optional; content cleanup on delete
	broadcaster *events.Broadcaster // optional
	now         func() time.Time
}

// New creates an engine. objects and broadcaster may be nil.
func New(store metadata.Store, objects storage.Backend, broadcaster *events.Broadcaster) *Engine {
	return &Engine{store: store, objects: objects, broadcaster: broadcaster, now: time.Now}
}

// LeafSpec describes an image leaf to register. The caller stores the bytes
// at ContentRef before registering and deletes them again if registration
// fails. ID may be pre-assigned so the content key can carry it; when empty
// the engine generates one.
type LeafSpec struct {
	ID         string
	Name       string
	ParentPath string
	Size       int64
	ContentRef string
	ModTime    time.Time
	Width      int
	Height     int
}

// CreateFolder creates an empty folder under parentPath.
func (e *Engine) CreateFolder(ctx context.Context, t *tree.Tree, name, parentPath string) (node *models.Node, err error) {
	defer func() { record("create_folder", err) }()

	if err = validateName(name); err != nil {
		return nil, err
	}
	parent, err := resolveFolder(t, tree.NormalizePath(parentPath))
	if err != nil {
		return nil, err
	}
	newPath := tree.JoinPath(parent.Path, name)
	if _, exists := t.FindByPath(newPath); exists {
		return nil, duplicatePath(newPath)
	}

	n := &models.Node{
		ID:       uuid.NewString(),
		Name:     name,
		Kind:     models.KindFolder,
		Path:     newPath,
		ParentID: parentRef(parent),
		ModTime:  e.now(),
	}
	if err = e.store.InsertNode(ctx, n); err != nil {
		return nil, persistence(newPath, err)
	}
	t.Insert(n)

	logging.Info("folder created", zap.String("path", newPath))
	e.publish(events.EventCreated, n, "")
	return n.Clone(), nil
}

// RegisterLeaf records an uploaded image leaf under spec.ParentPath.
// A leaf whose path is already taken is rejected, never overwritten.
func (e *Engine) RegisterLeaf(ctx context.Context, t *tree.Tree, spec LeafSpec) (node *models.Node, err error) {
	defer func() { record("register_leaf", err) }()

	if err = validateName(spec.Name); err != nil {
		return nil, err
	}
	parent, err := resolveFolder(t, tree.NormalizePath(spec.ParentPath))
	if err != nil {
		return nil, err
	}
	newPath := tree.JoinPath(parent.Path, spec.Name)
	if _, exists := t.FindByPath(newPath); exists {
		return nil, duplicatePath(newPath)
	}

	mod := spec.ModTime
	if mod.IsZero() {
		mod = e.now()
	}
	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}
	n := &models.Node{
		ID:         id,
		Name:       spec.Name,
		Kind:       models.KindLeaf,
		Path:       newPath,
		ParentID:   parentRef(parent),
		Size:       spec.Size,
		Width:      spec.Width,
		Height:     spec.Height,
		ContentRef: spec.ContentRef,
		ModTime:    mod,
	}
	if err = e.store.InsertNode(ctx, n); err != nil {
		return nil, persistence(newPath, err)
	}
	t.Insert(n)

	logging.Info("leaf registered", zap.String("path", newPath), zap.Int64("size", spec.Size))
	e.publish(events.EventCreated, n, "")
	return n.Clone(), nil
}

// Rename changes a node's name in place and rewrites the path of everything
// under it. Renaming a node to its current name succeeds without touching
// anything.
func (e *Engine) Rename(ctx context.Context, t *tree.Tree, id, newName string) (node *models.Node, err error) {
	defer func() { record("rename", err) }()

	target, ok := t.FindByID(id)
	if !ok || id == tree.RootID {
		return nil, notFound(id)
	}
	if err = validateName(newName); err != nil {
		return nil, err
	}
	if newName == target.Name {
		return target.Clone(), nil
	}

	oldPath := target.Path
	newPath := tree.JoinPath(parentPathOf(t, target), newName)
	if _, exists := t.FindByPath(newPath); exists {
		return nil, duplicatePath(newPath)
	}

	descendants := t.Descendants(oldPath)
	if err = e.store.RenameNode(ctx, id, newName, oldPath, newPath); err != nil {
		return nil, persistence(oldPath, err)
	}

	t.SetName(id, newName)
	t.SetPath(id, newPath)
	for _, d := range descendants {
		t.SetPath(d.ID, newPath+d.Path[len(oldPath):])
	}

	logging.Info("node renamed", zap.String("from", oldPath), zap.String("to", newPath))
	e.publish(events.EventRenamed, target, oldPath)
	return target.Clone(), nil
}

// Move relocates a batch of nodes under destPath. The whole batch is
// validated against the pre-move snapshot; any failure rejects the batch
// with nothing applied. A target nested inside another target travels with
// its ancestor and is dropped from the batch. Returns the number of nodes
// actually reparented.
func (e *Engine) Move(ctx context.Context, t *tree.Tree, ids []string, destPath string) (moved int, err error) {
	defer func() { record("move", err) }()

	targets, err := resolveTargets(t, ids)
	if err != nil {
		return 0, err
	}
	if len(targets) == 0 {
		return 0, nil
	}
	targets = dropNested(targets)

	destPath = tree.NormalizePath(destPath)
	for _, n := range targets {
		if destPath == n.Path || strings.HasPrefix(destPath, n.Path+"/") {
			return 0, circularMove(n.Path)
		}
	}
	dest, err := resolveFolder(t, destPath)
	if err != nil {
		return 0, err
	}

	taken := make(map[string]struct{}, len(targets))
	moves := make([]metadata.Move, 0, len(targets))
	descendants := make(map[string][]*models.Node, len(targets))
	for _, n := range targets {
		newPath := tree.JoinPath(dest.Path, n.Name)
		if occupant, exists := t.FindByPath(newPath); exists && occupant.ID != n.ID {
			return 0, duplicatePath(newPath)
		}
		if _, clash := taken[newPath]; clash {
			return 0, duplicatePath(newPath)
		}
		taken[newPath] = struct{}{}
		moves = append(moves, metadata.Move{
			ID:          n.ID,
			NewParentID: parentRef(dest),
			OldPath:     n.Path,
			NewPath:     newPath,
		})
		descendants[n.ID] = t.Descendants(n.Path)
	}

	if err = e.store.MoveNodes(ctx, moves); err != nil {
		return 0, persistence(destPath, err)
	}

	for _, m := range moves {
		t.SetParent(m.ID, m.NewParentID)
		t.SetPath(m.ID, m.NewPath)
		for _, d := range descendants[m.ID] {
			t.SetPath(d.ID, m.NewPath+d.Path[len(m.OldPath):])
		}
	}

	for _, m := range moves {
		if n, ok := t.FindByID(m.ID); ok {
			logging.Info("node moved", zap.String("from", m.OldPath), zap.String("to", m.NewPath))
			e.publish(events.EventMoved, n, m.OldPath)
		}
	}
	return len(moves), nil
}

// Delete removes a batch of nodes, each with its entire subtree. Rows go
// first in one transaction, then the tree, then best-effort content
// cleanup. Returns the number of nodes removed.
func (e *Engine) Delete(ctx context.Context, t *tree.Tree, ids []string) (removed int64, err error) {
	defer func() { record("delete", err) }()

	targets, err := resolveTargets(t, ids)
	if err != nil {
		return 0, err
	}
	if len(targets) == 0 {
		return 0, nil
	}
	targets = dropNested(targets)

	paths := make([]string, 0, len(targets))
	doomed := make([]*models.Node, 0, len(targets))
	for _, n := range targets {
		paths = append(paths, n.Path)
		doomed = append(doomed, n)
		doomed = append(doomed, t.Descendants(n.Path)...)
	}

	removed, err = e.store.DeleteSubtrees(ctx, paths)
	if err != nil {
		return 0, persistence(paths[0], err)
	}
	if removed != int64(len(doomed)) {
		logging.Warn("delete count mismatch",
			zap.Int64("rows", removed),
			zap.Int("tree_nodes", len(doomed)))
	}

	refs := make([]string, 0, len(doomed)*2)
	for _, n := range doomed {
		if n.IsLeaf() {
			if n.ContentRef != "" {
				refs = append(refs, n.ContentRef)
			}
			refs = append(refs, storage.ThumbKey(n.ID))
		}
		t.Remove(n.ID)
	}
	e.cleanupObjects(ctx, refs)

	for _, n := range targets {
		logging.Info("subtree deleted", zap.String("path", n.Path))
		e.publish(events.EventDeleted, n, "")
	}
	return removed, nil
}

// resolveTargets maps batch ids to live nodes, skipping exact duplicates.
// The virtual root is never a valid target.
func resolveTargets(t *tree.Tree, ids []string) ([]*models.Node, error) {
	targets := make([]*models.Node, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		n, ok := t.FindByID(id)
		if !ok || id == tree.RootID {
			return nil, notFound(id)
		}
		targets = append(targets, n)
	}
	return targets, nil
}

// dropNested removes targets that sit inside another target's subtree;
// moving or deleting the ancestor already carries them.
func dropNested(targets []*models.Node) []*models.Node {
	out := make([]*models.Node, 0, len(targets))
	for _, n := range targets {
		nested := false
		for _, m := range targets {
			if m != n && strings.HasPrefix(n.Path, m.Path+"/") {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, n)
		}
	}
	return out
}

// validateName rejects names that are empty, dot navigation, or carry path
// separators of either flavor, so a name can never change its node's depth.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return invalidName(name)
	}
	if strings.ContainsAny(name, "/\\") {
		return invalidName(name)
	}
	return nil
}

// resolveFolder resolves a path to the root or an existing folder node.
func resolveFolder(t *tree.Tree, path string) (*models.Node, error) {
	n, ok := t.FindByPath(path)
	if !ok || !n.IsFolder() {
		return nil, notFound(path)
	}
	return n, nil
}

// parentRef maps a folder node to the ParentID its children carry. Children
// of the virtual root carry an empty id.
func parentRef(folder *models.Node) string {
	if folder.ID == tree.RootID {
		return ""
	}
	return folder.ID
}

func parentPathOf(t *tree.Tree, n *models.Node) string {
	if n.ParentID == "" {
		return "/"
	}
	if p, ok := t.FindByID(n.ParentID); ok {
		return p.Path
	}
	return "/"
}

// cleanupObjects deletes stored content for removed leaves. The row store
// is authoritative; failures here are logged, never surfaced.
func (e *Engine) cleanupObjects(ctx context.Context, refs []string) {
	if e.objects == nil {
		return
	}
	for _, ref := range refs {
		if err := e.objects.DeleteObject(ctx, ref); err != nil {
			logging.Warn("content cleanup failed", zap.String("ref", ref), zap.Error(err))
		}
	}
}

func (e *Engine) publish(eventType string, n *models.Node, oldPath string) {
	if e.broadcaster == nil {
		return
	}
	e.broadcaster.Publish(events.Event{
		Type:    eventType,
		Path:    n.Path,
		OldPath: oldPath,
		Kind:    string(n.Kind),
		Size:    n.Size,
	})
}

func record(op string, err error) {
	if err != nil {
		metrics.RecordEngineOp(op, KindOf(err))
		return
	}
	metrics.RecordEngineOp(op, "ok")
}
