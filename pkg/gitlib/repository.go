package gitlib

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	git2go "github.com/libgit2/git2go/v34"

	"github.com/pypi-data/cli/pkg/cache"
)

// DefaultCacheSize is the default per-kind object cache budget (1 GiB).
const DefaultCacheSize = 1 * humanize.GiByte

// CacheConfig sizes the object caches of one repository handle.
// It is scoped to the handle: nothing is configured process-wide.
type CacheConfig struct {
	// TreeCacheSize bounds the decoded tree entries kept in memory, in bytes.
	TreeCacheSize int64
	// BlobCacheSize bounds the blob contents kept in memory, in bytes.
	BlobCacheSize int64
}

// DefaultCacheConfig returns the default cache budgets.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TreeCacheSize: DefaultCacheSize,
		BlobCacheSize: DefaultCacheSize,
	}
}

// CacheStats reports the state of both object caches of a handle.
type CacheStats struct {
	Trees cache.Stats
	Blobs cache.Stats
}

// Repository wraps a libgit2 repository together with its object caches.
// A Repository must only be used by one goroutine at a time.
type Repository struct {
	repo  *git2go.Repository
	trees *cache.LRU[Hash, []TreeEntry]
	blobs *cache.LRU[Hash, []byte]
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string, cfg CacheConfig) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrRepositoryOpen, path, err)
	}

	return &Repository{
		repo:  repo,
		trees: cache.NewLRU[Hash, []TreeEntry](cfg.TreeCacheSize, treeEntriesSize),
		blobs: cache.NewLRU[Hash, []byte](cfg.BlobCacheSize, func(b []byte) int64 { return int64(len(b)) }),
	}, nil
}

// Free releases the repository resources and drops the caches.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}

	r.trees.Clear()
	r.blobs.Clear()
}

// CacheStats returns hit/miss statistics for the tree and blob caches.
func (r *Repository) CacheStats() CacheStats {
	return CacheStats{Trees: r.trees.Stats(), Blobs: r.blobs.Stats()}
}

// CommitTree resolves a commit id to its root tree id.
func (r *Repository) CommitTree(_ context.Context, commit Hash) (Hash, error) {
	c, err := r.repo.LookupCommit(commit.ToOid())
	if err != nil {
		if git2go.IsErrorCode(err, git2go.ErrorCodeNotFound) {
			return Hash{}, fmt.Errorf("%w: %s", ErrCommitNotFound, commit)
		}

		return Hash{}, fmt.Errorf("lookup commit %s: %w", commit, err)
	}
	defer c.Free()

	return HashFromOid(c.TreeId()), nil
}

// TreeEntries returns the entries of a tree in libgit2's native order.
func (r *Repository) TreeEntries(_ context.Context, tree Hash) ([]TreeEntry, error) {
	if entries, ok := r.trees.Get(tree); ok {
		return entries, nil
	}

	t, err := r.repo.LookupTree(tree.ToOid())
	if err != nil {
		if git2go.IsErrorCode(err, git2go.ErrorCodeNotFound) {
			return nil, fmt.Errorf("%w: tree %s", ErrObjectNotFound, tree)
		}

		return nil, fmt.Errorf("lookup tree %s: %w", tree, err)
	}
	defer t.Free()

	count := t.EntryCount()
	entries := make([]TreeEntry, 0, count)

	for i := range count {
		entry := t.EntryByIndex(i)
		if entry == nil {
			continue
		}

		entries = append(entries, TreeEntry{
			Name: entry.Name,
			Hash: HashFromOid(entry.Id),
			Mode: uint16(entry.Filemode), //nolint:gosec // git file modes fit in 16 bits.
			Kind: entryKind(entry.Type),
		})
	}

	r.trees.Put(tree, entries)

	return entries, nil
}

// BlobContents returns the bytes of a blob.
func (r *Repository) BlobContents(_ context.Context, blob Hash) ([]byte, error) {
	if data, ok := r.blobs.Get(blob); ok {
		return data, nil
	}

	b, err := r.repo.LookupBlob(blob.ToOid())
	if err != nil {
		if git2go.IsErrorCode(err, git2go.ErrorCodeNotFound) {
			return nil, fmt.Errorf("%w: blob %s", ErrObjectNotFound, blob)
		}

		return nil, fmt.Errorf("lookup blob %s: %w", blob, err)
	}
	defer b.Free()

	data := b.Contents()
	r.blobs.Put(blob, data)

	return data, nil
}

func entryKind(t git2go.ObjectType) EntryKind {
	switch t {
	case git2go.ObjectBlob:
		return KindBlob
	case git2go.ObjectTree:
		return KindTree
	default:
		return KindOther
	}
}
