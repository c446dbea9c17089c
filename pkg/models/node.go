// Package models contains the namespace node types shared between the
// server and its clients.
package models

import "time"

// Kind distinguishes folders from leaf assets.
type Kind string

const (
	// KindFolder is a container node; only folders may have children.
	KindFolder Kind = "folder"
	// KindLeaf is a terminal asset node (an image).
	KindLeaf Kind = "leaf"
)

// Node represents a folder or image asset in the namespace.
//
// ParentID is the single source of truth for hierarchy ("" means the node
// sits directly under the root). Path is a derived cache and must always
// equal the parent's path joined with Name. Children is populated only on
// serialized subtree views; it is derived from ParentID, never authoritative.
type Node struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Kind       Kind      `json:"kind"`
	Path       string    `json:"path"`
	ParentID   string    `json:"parent_id,omitempty"`
	Size       int64     `json:"size,omitempty"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	ContentRef string    `json:"content_ref,omitempty"`
	ModTime    time.Time `json:"mtime"`
	Children   []*Node   `json:"children,omitempty"`
}

// IsFolder reports whether the node is a folder.
func (n *Node) IsFolder() bool { return n.Kind == KindFolder }

// IsLeaf reports whether the node is a leaf asset.
func (n *Node) IsLeaf() bool { return n.Kind == KindLeaf }

// Clone returns a copy of the node with the Children slice detached.
func (n *Node) Clone() *Node {
	c := *n
	c.Children = nil
	return &c
}
