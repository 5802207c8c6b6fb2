package gitlib

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxDepth bounds tree nesting. Real repositories stay far below it;
// crafted stores can nest arbitrarily deep.
const DefaultMaxDepth = 4096

// ErrTreeTooDeep is returned when a tree nests deeper than WalkOptions.MaxDepth.
var ErrTreeTooDeep = errors.New("tree nesting exceeds maximum depth")

// WalkOptions configures a tree traversal.
type WalkOptions struct {
	// MaxDepth is the deepest directory level visited. Zero means DefaultMaxDepth.
	MaxDepth int
}

func (o WalkOptions) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}

	return o.MaxDepth
}

// File is one (content id, path) pair produced by a tree walk.
type File struct {
	Path string
	Hash Hash
	Mode uint16
	src  ObjectSource
}

// Contents reads the file's blob through the source it was walked from.
func (f File) Contents(ctx context.Context) ([]byte, error) {
	return f.src.BlobContents(ctx, f.Hash)
}

// walkFrame is one directory on the traversal stack.
type walkFrame struct {
	prefix  string
	entries []TreeEntry
	next    int
}

// TreeWalker enumerates every blob reachable from a root tree, depth-first in
// pre-order, following the store's native entry order. Shared subtrees are
// walked once per path that reaches them. A walker cannot be restarted.
type TreeWalker struct {
	ctx      context.Context
	src      ObjectSource
	stack    []walkFrame
	maxDepth int
	err      error
}

// NewTreeWalker loads the root tree and returns a walker positioned before its first file.
func NewTreeWalker(ctx context.Context, src ObjectSource, root Hash, opts WalkOptions) (*TreeWalker, error) {
	entries, err := src.TreeEntries(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("load root tree: %w", err)
	}

	return &TreeWalker{
		ctx:      ctx,
		src:      src,
		stack:    []walkFrame{{entries: entries}},
		maxDepth: opts.maxDepth(),
	}, nil
}

// Next returns the next file. It returns io.EOF once the tree is exhausted;
// any other error is sticky and ends the walk.
func (w *TreeWalker) Next() (File, error) {
	if w.err != nil {
		return File{}, w.err
	}

	for len(w.stack) > 0 {
		ctxErr := w.ctx.Err()
		if ctxErr != nil {
			w.err = ctxErr

			return File{}, ctxErr
		}

		top := &w.stack[len(w.stack)-1]
		if top.next >= len(top.entries) {
			w.stack = w.stack[:len(w.stack)-1]

			continue
		}

		entry := top.entries[top.next]
		top.next++

		path := joinPath(top.prefix, entry.Name)

		switch entry.Kind {
		case KindBlob:
			return File{Path: path, Hash: entry.Hash, Mode: entry.Mode, src: w.src}, nil
		case KindTree:
			pushErr := w.push(path, entry.Hash)
			if pushErr != nil {
				w.err = pushErr

				return File{}, pushErr
			}
		case KindOther:
			// Submodules and unknown entries carry no content in this store.
		}
	}

	w.err = io.EOF

	return File{}, io.EOF
}

// ForEach calls cb for every remaining file. It stops at the first error from cb or the walk.
func (w *TreeWalker) ForEach(cb func(File) error) error {
	for {
		file, err := w.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		cbErr := cb(file)
		if cbErr != nil {
			return cbErr
		}
	}
}

func (w *TreeWalker) push(path string, tree Hash) error {
	if len(w.stack) >= w.maxDepth {
		return fmt.Errorf("%w: %d at %s", ErrTreeTooDeep, w.maxDepth, path)
	}

	entries, err := w.src.TreeEntries(w.ctx, tree)
	if err != nil {
		return fmt.Errorf("load tree %s: %w", path, err)
	}

	w.stack = append(w.stack, walkFrame{prefix: path, entries: entries})

	return nil
}

// CountFiles returns the number of paths a walk from root would yield, without reading any blob.
func CountFiles(ctx context.Context, src ObjectSource, root Hash, opts WalkOptions) (int64, error) {
	walker, err := NewTreeWalker(ctx, src, root, opts)
	if err != nil {
		return 0, err
	}

	var count int64

	err = walker.ForEach(func(File) error {
		count++

		return nil
	})
	if err != nil {
		return count, err
	}

	return count, nil
}

// joinPath roots paths at "/": the root tree's entries become "/name".
func joinPath(prefix, name string) string {
	return prefix + "/" + name
}
