// Package engine implements the namespace mutations: folder creation, leaf
// registration, rename, batched move, and batched delete. Every operation
// validates against the current tree snapshot, commits to the row store,
// and only then applies to the in-memory tree, so a persistence failure
// leaves the tree exactly as it was.
package engine

import (
	"errors"
	"fmt"
)

// Error kinds as they appear in mutation responses.
const (
	KindNotFound           = "not_found"
	KindDuplicatePath      = "duplicate_path"
	KindCircularMove       = "circular_move"
	KindInvalidName        = "invalid_name"
	KindForbidden          = "forbidden"
	KindPersistenceFailure = "persistence_failure"
)

// Sentinel errors, one per engine-emitted kind. Forbidden belongs to the
// auth layer and is never produced here.
var (
	// ErrNotFound indicates that a target id or path does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrDuplicatePath indicates that the destination path is already taken.
	ErrDuplicatePath = errors.New("path already exists")

	// ErrCircularMove indicates a move of a folder into itself or a descendant.
	ErrCircularMove = errors.New("cannot move a folder into itself or its descendants")

	// ErrInvalidName indicates an empty name or one containing path syntax.
	ErrInvalidName = errors.New("invalid name")

	// ErrPersistenceFailure indicates that the row store rejected the write.
	// The in-memory tree is untouched when this is returned.
	ErrPersistenceFailure = errors.New("persistence failure")
)

// Error is an operation failure tied to the path it is about.
type Error struct {
	Kind string // one of the Kind constants
	Path string // offending path, empty when not applicable
	Err  error  // the matching sentinel, possibly wrapping a cause
}

func (e *Error) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Err.Error())
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf maps an error to its response kind. Anything outside the taxonomy
// is reported as a persistence failure.
func KindOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicatePath):
		return KindDuplicatePath
	case errors.Is(err, ErrCircularMove):
		return KindCircularMove
	case errors.Is(err, ErrInvalidName):
		return KindInvalidName
	}
	return KindPersistenceFailure
}

func notFound(path string) error {
	return &Error{Kind: KindNotFound, Path: path, Err: ErrNotFound}
}

func duplicatePath(path string) error {
	return &Error{Kind: KindDuplicatePath, Path: path, Err: ErrDuplicatePath}
}

func circularMove(path string) error {
	return &Error{Kind: KindCircularMove, Path: path, Err: ErrCircularMove}
}

func invalidName(name string) error {
	return &Error{Kind: KindInvalidName, Err: fmt.Errorf("%w: %q", ErrInvalidName, name)}
}

func persistence(path string, cause error) error {
	return &Error{Kind: KindPersistenceFailure, Path: path, Err: fmt.Errorf("%w: %v", ErrPersistenceFailure, cause)}
}
