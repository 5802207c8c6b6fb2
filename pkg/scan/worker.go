package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pypi-data/cli/pkg/gitlib"
	"github.com/pypi-data/cli/pkg/matcher"
	"github.com/pypi-data/cli/pkg/observability"
	"github.com/pypi-data/cli/pkg/progress"
	"github.com/pypi-data/cli/pkg/source"
)

// DefaultProgressInterval is the minimum time between advance events of one worker.
const DefaultProgressInterval = time.Second

// Store is an object source owned by a single worker.
type Store interface {
	gitlib.ObjectSource
	Free()
}

// cacheReporter is implemented by stores that keep object caches.
type cacheReporter interface {
	CacheStats() gitlib.CacheStats
}

// OpenFunc opens the store of a repository directory.
type OpenFunc func(path string) (Store, error)

// RepositoryOpener opens libgit2 repositories with the given cache budget.
func RepositoryOpener(cfg gitlib.CacheConfig) OpenFunc {
	return func(path string) (Store, error) {
		repo, err := gitlib.OpenRepository(path, cfg)
		if err != nil {
			return nil, err
		}

		return repo, nil
	}
}

// WorkerConfig is shared by every worker of a scan. Group is read-only.
type WorkerConfig struct {
	Group *matcher.Group
	Open  OpenFunc
	Walk  gitlib.WalkOptions

	// GateContent makes a path-matched file count as seen only when its
	// content also satisfies the group's content matchers.
	GateContent bool

	Reporter progress.Reporter
	// ProgressInterval spaces advance events. Zero means
	// DefaultProgressInterval; negative reports every file.
	ProgressInterval time.Duration
	Metrics          *observability.ScanMetrics
	Logger           *slog.Logger
}

// Worker scans jobs one at a time. It keeps the store of the last repository
// open so consecutive jobs of one repository share its caches.
// A Worker must only be used from one goroutine.
type Worker struct {
	cfg      WorkerConfig
	slot     int
	throttle *progress.Throttle

	store     Store
	storePath string
}

// NewWorker creates the worker for a progress slot.
func NewWorker(slot int, cfg WorkerConfig) *Worker {
	if cfg.Reporter == nil {
		cfg.Reporter = progress.Nop{}
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	interval := cfg.ProgressInterval
	if interval == 0 {
		interval = DefaultProgressInterval
	}

	return &Worker{
		cfg:      cfg,
		slot:     slot,
		throttle: progress.NewThrottle(interval),
	}
}

// Slot returns the progress slot of the worker.
func (w *Worker) Slot() int {
	return w.slot
}

// Run scans one job. Failures are reported in the result, never returned.
func (w *Worker) Run(ctx context.Context, job source.Job) Result {
	result := Result{Index: job.Index, Path: job.Repo, Commit: job.Commit}

	err := w.scan(ctx, job, &result)
	if err != nil {
		result.fail(err)

		w.cfg.Logger.DebugContext(ctx, "job failed",
			"job", job.String(), "kind", string(result.ErrorKind), "error", err)
	}

	w.cfg.Reporter.Finish(w.slot, job.String(), err)

	return result
}

// Close releases the open store, if any.
func (w *Worker) Close() {
	w.release(context.Background())
}

func (w *Worker) scan(ctx context.Context, job source.Job, result *Result) error {
	commit, err := gitlib.ParseHash(job.Commit)
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidCommitID, job.Commit, err)
	}

	store, err := w.acquire(ctx, job.Repo)
	if err != nil {
		return err
	}

	root, err := store.CommitTree(ctx, commit)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", commit.Short(), err)
	}

	total, err := gitlib.CountFiles(ctx, store, root, w.cfg.Walk)
	if err != nil {
		return fmt.Errorf("count files: %w", err)
	}

	w.cfg.Reporter.Start(w.slot, job.String(), total)
	w.throttle.Reset()

	walker, err := gitlib.NewTreeWalker(ctx, store, root, w.cfg.Walk)
	if err != nil {
		return err
	}

	tally := newTally(w.cfg.GateContent && w.cfg.Group.HasContentMatchers())

	for {
		file, nextErr := walker.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}

		if nextErr != nil {
			return fmt.Errorf("walk: %w", nextErr)
		}

		seen, classifyErr := w.classify(ctx, file, tally)
		if classifyErr != nil {
			return classifyErr
		}

		tally.add(file.Hash, seen)

		if w.throttle.Allow() {
			w.cfg.Reporter.Advance(w.slot, tally.visits())
		}
	}

	tally.fill(result)
	w.cfg.Metrics.RecordVisits(ctx, result.TotalSeen, result.TotalExcluded)

	return nil
}

// classify decides whether a visit counts as seen.
func (w *Worker) classify(ctx context.Context, file gitlib.File, t *tally) (bool, error) {
	if !w.cfg.Group.IsPathMatched([]byte(file.Path)) {
		return false, nil
	}

	if t.verdicts == nil {
		return true, nil
	}

	verdict, ok := t.verdicts[file.Hash]
	if ok {
		return verdict, nil
	}

	content, err := file.Contents(ctx)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", file.Path, err)
	}

	verdict = w.cfg.Group.IsContentMatched(content)
	t.verdicts[file.Hash] = verdict

	return verdict, nil
}

// acquire returns the store for repo, reusing the open one when it matches.
func (w *Worker) acquire(ctx context.Context, repo string) (Store, error) {
	if w.store != nil && w.storePath == repo {
		return w.store, nil
	}

	w.release(ctx)

	store, err := w.cfg.Open(repo)
	if err != nil {
		return nil, err
	}

	w.store, w.storePath = store, repo

	return store, nil
}

func (w *Worker) release(ctx context.Context) {
	if w.store == nil {
		return
	}

	if stats, ok := w.store.(cacheReporter); ok {
		cs := stats.CacheStats()
		w.cfg.Metrics.RecordCache(ctx,
			observability.CacheDelta{Kind: "tree", Hits: cs.Trees.Hits, Misses: cs.Trees.Misses},
			observability.CacheDelta{Kind: "blob", Hits: cs.Blobs.Hits, Misses: cs.Blobs.Misses},
		)

		w.cfg.Logger.DebugContext(ctx, "store released",
			"repo", w.storePath,
			"tree_hit_rate", cs.Trees.HitRate(),
			"blob_hit_rate", cs.Blobs.HitRate(),
			"tree_cache_bytes", cs.Trees.CurrentSize,
			"blob_cache_bytes", cs.Blobs.CurrentSize,
		)
	}

	w.store.Free()
	w.store, w.storePath = nil, ""
}

// discard forgets the open store without freeing it. Used after a panic,
// when the store may be mid-call; the finalizer reclaims it.
func (w *Worker) discard() {
	w.store, w.storePath = nil, ""
}

// tally accumulates the statistics of one job. Distinct objects and path
// visits are counted separately.
type tally struct {
	matched    map[gitlib.Hash]struct{}
	nonMatched map[gitlib.Hash]struct{}
	seen       int64
	excluded   int64

	// verdicts memoizes content decisions per object; nil when content is not consulted.
	verdicts map[gitlib.Hash]bool
}

func newTally(gate bool) *tally {
	t := &tally{
		matched:    make(map[gitlib.Hash]struct{}),
		nonMatched: make(map[gitlib.Hash]struct{}),
	}

	if gate {
		t.verdicts = make(map[gitlib.Hash]bool)
	}

	return t
}

func (t *tally) add(id gitlib.Hash, seen bool) {
	if seen {
		t.matched[id] = struct{}{}
		t.seen++

		return
	}

	t.nonMatched[id] = struct{}{}
	t.excluded++
}

func (t *tally) visits() int64 {
	return t.seen + t.excluded
}

func (t *tally) fill(r *Result) {
	r.Matched = len(t.matched)
	r.NonMatched = len(t.nonMatched)
	r.TotalSeen = t.seen
	r.TotalExcluded = t.excluded
	r.PercentSeen = percent(r.Matched, r.TotalSeen)
	r.PercentExcluded = percent(r.NonMatched, r.TotalExcluded)
}
