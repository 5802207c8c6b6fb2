package scan_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pypi-data/cli/pkg/gitlib"
	"github.com/pypi-data/cli/pkg/matcher"
	"github.com/pypi-data/cli/pkg/scan"
	"github.com/pypi-data/cli/pkg/source"
)

// memStore adapts a MemorySource to a worker-owned store.
type memStore struct {
	*gitlib.MemorySource

	fleet *fleet
}

func (m memStore) Free() {
	m.fleet.mu.Lock()
	defer m.fleet.mu.Unlock()

	m.fleet.frees++
}

// fleet is a set of in-memory repositories keyed by path.
type fleet struct {
	repos map[string]*gitlib.MemorySource

	mu    sync.Mutex
	opens map[string]int
	frees int
}

func newFleet() *fleet {
	return &fleet{repos: map[string]*gitlib.MemorySource{}, opens: map[string]int{}}
}

// add creates a repository with one commit of files and returns the commit id.
func (f *fleet) add(repo string, files map[string]string) string {
	src, ok := f.repos[repo]
	if !ok {
		src = gitlib.NewMemorySource()
		f.repos[repo] = src
	}

	return src.AddCommit(src.BuildTree(files), repo).String()
}

func (f *fleet) open(path string) (scan.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.opens[path]++

	src, ok := f.repos[path]
	if !ok {
		return nil, fmt.Errorf("%w %s: no such repository", gitlib.ErrRepositoryOpen, path)
	}

	return memStore{MemorySource: src, fleet: f}, nil
}

func (f *fleet) openCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.opens[path]
}

func mustGroup(t *testing.T, spec matcher.Spec) *matcher.Group {
	t.Helper()

	group, err := matcher.NewGroup(spec)
	require.NoError(t, err)

	return group
}

func globs(t *testing.T, patterns ...string) *matcher.Group {
	t.Helper()

	return mustGroup(t, matcher.Spec{Globs: patterns})
}

func newWorker(group *matcher.Group, f *fleet) *scan.Worker {
	return scan.NewWorker(0, scan.WorkerConfig{Group: group, Open: f.open})
}

func job(repo, commit string, index int) source.Job {
	return source.Job{Repo: repo, Commit: commit, Index: index}
}

func pct(v float64) *float64 { return &v }

// cachedStore reports fixed cache statistics.
type cachedStore struct {
	memStore

	stats gitlib.CacheStats
}

func (s cachedStore) CacheStats() gitlib.CacheStats {
	return s.stats
}

// slowStore delays every tree read.
type slowStore struct {
	memStore

	delay time.Duration
}

func (s slowStore) TreeEntries(ctx context.Context, tree gitlib.Hash) ([]gitlib.TreeEntry, error) {
	time.Sleep(s.delay)

	return s.memStore.TreeEntries(ctx, tree)
}
