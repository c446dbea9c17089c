// Package tree holds the in-memory namespace snapshot: a flat, id-keyed
// arena of nodes with ParentID back-references plus a path index. All
// hierarchy queries derive from ParentID; Path strings are a maintained
// cache over it. The tree is an explicitly owned value — callers pass it
// to the mutation engine, which is the only writer.
package tree

import (
	"sort"
	"strings"

	"github.com/Kamii-Samaa/Product-Images/pkg/models"
)

// RootID identifies the virtual root container. The root is never stored
// and never mutated; its children are the nodes with an empty ParentID.
const RootID = "root"

// Tree is the namespace snapshot. Not safe for concurrent mutation;
// callers serialize writes externally.
type Tree struct {
	byID   map[string]*models.Node
	byPath map[string]string // path -> id
}

// New returns an empty tree containing only the virtual root.
func New() *Tree {
	t := &Tree{
		byID:   make(map[string]*models.Node),
		byPath: make(map[string]string),
	}
	root := &models.Node{ID: RootID, Name: "root", Path: "/", Kind: models.KindFolder}
	t.byID[RootID] = root
	t.byPath["/"] = RootID
	return t
}

// Build hydrates a tree from a row scan. Rows carry their own IDs, paths
// and parent references; the arena indexes them as-is.
func Build(rows []*models.Node) *Tree {
	t := New()
	for _, row := range rows {
		t.Insert(row)
	}
	return t
}

// Root returns the virtual root node.
func (t *Tree) Root() *models.Node {
	return t.byID[RootID]
}

// Len returns the number of nodes, the virtual root excluded.
func (t *Tree) Len() int {
	return len(t.byID) - 1
}

// FindByPath resolves a normalized path; "/" resolves to the virtual root.
func (t *Tree) FindByPath(path string) (*models.Node, bool) {
	id, ok := t.byPath[NormalizePath(path)]
	if !ok {
		return nil, false
	}
	return t.byID[id], true
}

// FindByID resolves a node id; RootID resolves to the virtual root.
func (t *Tree) FindByID(id string) (*models.Node, bool) {
	n, ok := t.byID[id]
	return n, ok
}

// ChildrenOf returns the immediate children of the folder at path, ordered
// by name. For a leaf or an unknown path the result is empty.
func (t *Tree) ChildrenOf(path string) []*models.Node {
	n, ok := t.FindByPath(path)
	if !ok || !n.IsFolder() {
		return nil
	}
	return t.childrenOfID(n.ID)
}

func (t *Tree) childrenOfID(id string) []*models.Node {
	parentID := id
	if id == RootID {
		parentID = ""
	}
	var children []*models.Node
	for _, n := range t.byID {
		if n.ID != RootID && n.ParentID == parentID {
			children = append(children, n)
		}
	}
	sort.Slice(children, func(i, j int) bool {
		return strings.ToLower(children[i].Name) < strings.ToLower(children[j].Name)
	})
	return children
}

// Flatten returns every node in pre-order, the virtual root excluded,
// siblings visited in name order.
func (t *Tree) Flatten() []*models.Node {
	result := make([]*models.Node, 0, t.Len())
	var walk func(id string)
	walk = func(id string) {
		for _, child := range t.childrenOfID(id) {
			result = append(result, child)
			if child.IsFolder() {
				walk(child.ID)
			}
		}
	}
	walk(RootID)
	return result
}

// FolderPaths returns all folder nodes usable as move/create destinations,
// the virtual root always first.
func (t *Tree) FolderPaths() []*models.Node {
	result := []*models.Node{t.Root()}
	for _, n := range t.Flatten() {
		if n.IsFolder() {
			result = append(result, n)
		}
	}
	return result
}

// ComputePath derives a node's canonical path from its name and ParentID
// chain. This is the definition the cached Path field must agree with.
func (t *Tree) ComputePath(n *models.Node) string {
	if n.ID == RootID {
		return "/"
	}
	segments := []string{n.Name}
	cur := n
	for cur.ParentID != "" {
		parent, ok := t.byID[cur.ParentID]
		if !ok {
			break
		}
		segments = append(segments, parent.Name)
		cur = parent
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return "/" + strings.Join(segments, "/")
}

// Descendants returns every node strictly below the given path, matched by
// path prefix over the flat arena.
func (t *Tree) Descendants(path string) []*models.Node {
	prefix := NormalizePath(path)
	if prefix != "/" {
		prefix += "/"
	}
	var result []*models.Node
	for _, n := range t.byID {
		if n.ID != RootID && strings.HasPrefix(n.Path, prefix) {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result
}

// Subtree returns a detached nested copy rooted at path, with Children
// populated folders-first for serialization. Returns nil for unknown paths.
func (t *Tree) Subtree(path string) *models.Node {
	n, ok := t.FindByPath(path)
	if !ok {
		return nil
	}
	return t.copyNested(n)
}

func (t *Tree) copyNested(n *models.Node) *models.Node {
	c := n.Clone()
	if !n.IsFolder() {
		return c
	}
	children := t.childrenOfID(n.ID)
	for _, child := range children {
		c.Children = append(c.Children, t.copyNested(child))
	}
	c.Children = models.SortNodes(c.Children, models.SortByName, models.OrderAsc)
	return c
}

// ─── Index maintenance (engine-only writers) ────────────────────────────────

// Insert adds a validated node to the arena.
func (t *Tree) Insert(n *models.Node) {
	t.byID[n.ID] = n
	t.byPath[n.Path] = n.ID
}

// Remove deletes a single node. Subtree removal is the caller's loop;
// the arena has no implicit cascades.
func (t *Tree) Remove(id string) {
	n, ok := t.byID[id]
	if !ok || id == RootID {
		return
	}
	delete(t.byPath, n.Path)
	delete(t.byID, id)
}

// SetPath rewrites a node's cached path and moves its index entry.
func (t *Tree) SetPath(id, newPath string) {
	n, ok := t.byID[id]
	if !ok {
		return
	}
	delete(t.byPath, n.Path)
	n.Path = newPath
	t.byPath[newPath] = id
}

// SetName updates a node's name; the caller rewrites paths alongside.
func (t *Tree) SetName(id, name string) {
	if n, ok := t.byID[id]; ok {
		n.Name = name
	}
}

// SetParent updates a node's ownership reference ("" reparents to root).
func (t *Tree) SetParent(id, parentID string) {
	if n, ok := t.byID[id]; ok {
		n.ParentID = parentID
	}
}

// SetDimensions records decoded pixel dimensions on a leaf.
func (t *Tree) SetDimensions(id string, width, height int) {
	if n, ok := t.byID[id]; ok {
		n.Width = width
		n.Height = height
	}
}

// ─── Path helpers ───────────────────────────────────────────────────────────

// JoinPath constructs a child path from parent path + name, with the root
// contributing an empty prefix.
func JoinPath(parentPath, name string) string {
	if parentPath == "" || parentPath == "/" {
		return "/" + name
	}
	return parentPath + "/" + name
}

// NormalizePath ensures a leading slash and no trailing slash; the root
// stays "/".
func NormalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}
