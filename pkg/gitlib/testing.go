package gitlib

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // git object ids are SHA-1 by definition.
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
)

// Git file modes used by MemorySource.
const (
	ModeBlob = 0o100644
	ModeTree = 0o040000
)

// MemorySource is an in-memory, content-addressed ObjectSource.
// Object ids are computed exactly as git computes them, so identical content
// always yields the same id. It backs unit tests and tools that need a store
// without touching disk.
type MemorySource struct {
	trees   map[Hash][]TreeEntry
	blobs   map[Hash][]byte
	commits map[Hash]Hash

	treeReads atomic.Int64
	blobReads atomic.Int64
}

// NewMemorySource creates an empty in-memory store.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		trees:   make(map[Hash][]TreeEntry),
		blobs:   make(map[Hash][]byte),
		commits: make(map[Hash]Hash),
	}
}

// AddBlob stores content and returns its id.
func (m *MemorySource) AddBlob(content []byte) Hash {
	id := objectID("blob", content)
	m.blobs[id] = bytes.Clone(content)

	return id
}

// AddTree stores a tree with the given entries, in the given order, and returns its id.
func (m *MemorySource) AddTree(entries []TreeEntry) Hash {
	var buf bytes.Buffer

	for _, entry := range entries {
		buf.WriteString(strconv.FormatUint(uint64(entry.Mode), 8))
		buf.WriteByte(' ')
		buf.WriteString(entry.Name)
		buf.WriteByte(0)
		buf.Write(entry.Hash[:])
	}

	id := objectID("tree", buf.Bytes())
	m.trees[id] = append([]TreeEntry(nil), entries...)

	return id
}

// AddCommit records a commit pointing at tree and returns the commit id.
func (m *MemorySource) AddCommit(tree Hash, message string) Hash {
	id := objectID("commit", []byte("tree "+tree.String()+"\n\n"+message))
	m.commits[id] = tree

	return id
}

// BuildTree stores a tree from slash-separated paths mapped to file contents
// and returns the root tree id. Entries are ordered the way git orders them.
func (m *MemorySource) BuildTree(files map[string]string) Hash {
	type dir struct {
		files map[string]string
		dirs  map[string]map[string]string
	}

	root := dir{files: map[string]string{}, dirs: map[string]map[string]string{}}

	for path, content := range files {
		head, rest, nested := strings.Cut(path, "/")
		if !nested {
			root.files[head] = content

			continue
		}

		if root.dirs[head] == nil {
			root.dirs[head] = map[string]string{}
		}

		root.dirs[head][rest] = content
	}

	entries := make([]TreeEntry, 0, len(root.files)+len(root.dirs))

	for name, content := range root.files {
		entries = append(entries, TreeEntry{Name: name, Hash: m.AddBlob([]byte(content)), Mode: ModeBlob, Kind: KindBlob})
	}

	for name, sub := range root.dirs {
		entries = append(entries, TreeEntry{Name: name, Hash: m.BuildTree(sub), Mode: ModeTree, Kind: KindTree})
	}

	sort.Slice(entries, func(i, j int) bool {
		return gitSortKey(entries[i]) < gitSortKey(entries[j])
	})

	return m.AddTree(entries)
}

// Reads returns how many tree and blob lookups have been served.
func (m *MemorySource) Reads() (trees, blobs int64) {
	return m.treeReads.Load(), m.blobReads.Load()
}

// CommitTree implements ObjectSource.
func (m *MemorySource) CommitTree(_ context.Context, commit Hash) (Hash, error) {
	tree, ok := m.commits[commit]
	if !ok {
		return Hash{}, fmt.Errorf("%w: %s", ErrCommitNotFound, commit)
	}

	return tree, nil
}

// TreeEntries implements ObjectSource.
func (m *MemorySource) TreeEntries(_ context.Context, tree Hash) ([]TreeEntry, error) {
	m.treeReads.Add(1)

	entries, ok := m.trees[tree]
	if !ok {
		if _, isBlob := m.blobs[tree]; isBlob {
			return nil, fmt.Errorf("%w: %s", ErrNotATree, tree)
		}

		return nil, fmt.Errorf("%w: tree %s", ErrObjectNotFound, tree)
	}

	return entries, nil
}

// BlobContents implements ObjectSource.
func (m *MemorySource) BlobContents(_ context.Context, blob Hash) ([]byte, error) {
	m.blobReads.Add(1)

	data, ok := m.blobs[blob]
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", ErrObjectNotFound, blob)
	}

	return data, nil
}

func objectID(kind string, payload []byte) Hash {
	h := sha1.New() //nolint:gosec // git object ids are SHA-1 by definition.
	fmt.Fprintf(h, "%s %d\x00", kind, len(payload))
	h.Write(payload)

	var id Hash
	copy(id[:], h.Sum(nil))

	return id
}

// gitSortKey orders directories as if their names ended in a slash.
func gitSortKey(entry TreeEntry) string {
	if entry.Kind == KindTree {
		return entry.Name + "/"
	}

	return entry.Name
}
