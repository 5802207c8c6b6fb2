package scan_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pypi-data/cli/pkg/matcher"
	"github.com/pypi-data/cli/pkg/scan"
	"github.com/pypi-data/cli/pkg/source"
)

func newScheduler(workers int, group *matcher.Group, open scan.OpenFunc) *scan.Scheduler {
	return &scan.Scheduler{
		Workers: workers,
		NewWorker: func(slot int) *scan.Worker {
			return scan.NewWorker(slot, scan.WorkerConfig{Group: group, Open: open})
		},
	}
}

func indexOf(results []scan.Result) map[int]scan.Result {
	byIndex := make(map[int]scan.Result, len(results))
	for _, result := range results {
		byIndex[result.Index] = result
	}

	return byIndex
}

func TestSchedulerRunsEveryJob(t *testing.T) {
	t.Parallel()

	f := newFleet()

	var jobs []source.Job

	for r := range 3 {
		repo := fmt.Sprintf("repo-%d", r)
		for c := range 4 {
			files := map[string]string{"setup.py": "setup()"}
			files[fmt.Sprintf("m%d.py", c)] = "x"
			files[fmt.Sprintf("data/%d.bin", c)] = "y"

			commit := f.add(repo, files)
			jobs = append(jobs, job(repo, commit, len(jobs)))
		}
	}

	results := newScheduler(4, globs(t, "*.py"), f.open).Run(context.Background(), jobs)
	require.Len(t, results, len(jobs))

	byIndex := indexOf(results)
	require.Len(t, byIndex, len(jobs), "each job reported exactly once")

	for _, j := range jobs {
		result := byIndex[j.Index]
		assert.False(t, result.Failed(), result.Error)
		assert.Equal(t, j.Commit, result.Commit)
		assert.Equal(t, int64(2), result.TotalSeen)
		assert.Equal(t, int64(1), result.TotalExcluded)
	}
}

func TestSchedulerMissingCommitDoesNotStopRun(t *testing.T) {
	t.Parallel()

	f := newFleet()
	first := f.add("repo", scenarioFiles)
	second := f.add("repo", map[string]string{"x.txt": "x"})

	jobs := []source.Job{
		job("repo", first, 0),
		job("repo", "ffffffffffffffffffffffffffffffffffffffff", 1),
		job("repo", second, 2),
	}

	results := indexOf(newScheduler(2, globs(t, "*.txt"), f.open).Run(context.Background(), jobs))
	require.Len(t, results, 3)

	assert.Equal(t, scan.KindCommitNotFound, results[1].ErrorKind)
	assert.Contains(t, results[1].Error, "ffffffffffffffffffffffffffffffffffffffff")
	assert.Equal(t, int64(2), results[0].TotalSeen)
	assert.Equal(t, int64(1), results[2].TotalSeen)
}

func TestSchedulerRecoversPanics(t *testing.T) {
	t.Parallel()

	f := newFleet()
	commit := f.add("repo", scenarioFiles)

	open := func(path string) (scan.Store, error) {
		if path == "boom" {
			panic("corrupt handle")
		}

		return f.open(path)
	}

	jobs := []source.Job{
		job("boom", commit, 0),
		job("repo", commit, 1),
		job("boom", commit, 2),
		job("repo", commit, 3),
	}

	results := indexOf(newScheduler(1, globs(t, "*"), open).Run(context.Background(), jobs))
	require.Len(t, results, 4)

	for _, i := range []int{0, 2} {
		assert.Equal(t, scan.KindWorkerPanic, results[i].ErrorKind)
		assert.Contains(t, results[i].Error, "corrupt handle")
	}

	for _, i := range []int{1, 3} {
		assert.False(t, results[i].Failed(), results[i].Error)
	}
}

func TestSchedulerCanceled(t *testing.T) {
	t.Parallel()

	f := newFleet()
	commit := f.add("repo", scenarioFiles)

	jobs := make([]source.Job, 10)
	for i := range jobs {
		jobs[i] = job("repo", commit, i)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := newScheduler(3, globs(t, "*"), f.open).Run(ctx, jobs)
	require.Len(t, results, len(jobs))

	for _, result := range results {
		assert.Equal(t, scan.KindCanceled, result.ErrorKind)
	}
}

func TestSchedulerJobTimeout(t *testing.T) {
	t.Parallel()

	f := newFleet()
	commit := f.add("repo", map[string]string{"a/b/c/d.txt": "x", "a/e.txt": "y"})

	open := func(path string) (scan.Store, error) {
		store, err := f.open(path)
		if err != nil {
			return nil, err
		}

		return slowStore{memStore: store.(memStore), delay: 20 * time.Millisecond}, nil
	}

	scheduler := newScheduler(1, globs(t, "*"), open)
	scheduler.JobTimeout = 5 * time.Millisecond

	results := scheduler.Run(context.Background(), []source.Job{job("repo", commit, 0)})
	require.Len(t, results, 1)
	assert.Equal(t, scan.KindTimeout, results[0].ErrorKind)
}

func TestSchedulerNoJobs(t *testing.T) {
	t.Parallel()

	assert.Empty(t, newScheduler(4, globs(t, "*"), newFleet().open).Run(context.Background(), nil))
}
