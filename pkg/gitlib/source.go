package gitlib

import (
	"context"
	"errors"
)

// Sentinel errors shared by every ObjectSource implementation.
var (
	// ErrCommitNotFound is returned when a commit id is absent from the store.
	ErrCommitNotFound = errors.New("commit not found")
	// ErrObjectNotFound is returned when a tree or blob referenced by a tree is missing.
	ErrObjectNotFound = errors.New("object not found")
	// ErrNotATree is returned when an id expected to name a tree names something else.
	ErrNotATree = errors.New("object is not a tree")
	// ErrRepositoryOpen is returned when a content store cannot be opened.
	ErrRepositoryOpen = errors.New("open repository")
)

// EntryKind classifies a tree entry.
type EntryKind uint8

const (
	// KindOther covers entries the scanner does not descend into (submodules, unknown).
	KindOther EntryKind = iota
	// KindBlob is a file.
	KindBlob
	// KindTree is a subdirectory.
	KindTree
)

// TreeEntry is one decoded entry of a tree object.
type TreeEntry struct {
	Name string
	Hash Hash
	Mode uint16
	Kind EntryKind
}

// ObjectSource is the read-only view of a content store the scanner needs.
// Implementations must return entries in the store's native order so that
// traversal is deterministic for a given tree.
type ObjectSource interface {
	// CommitTree resolves a commit id to its root tree id.
	CommitTree(ctx context.Context, commit Hash) (Hash, error)
	// TreeEntries returns the entries of a tree.
	TreeEntries(ctx context.Context, tree Hash) ([]TreeEntry, error)
	// BlobContents returns the bytes of a blob.
	BlobContents(ctx context.Context, blob Hash) ([]byte, error)
}

// treeEntriesSize estimates the retained memory of decoded tree entries.
func treeEntriesSize(entries []TreeEntry) int64 {
	const entryOverhead = 48

	var size int64

	for i := range entries {
		size += entryOverhead + int64(len(entries[i].Name))
	}

	return size
}
