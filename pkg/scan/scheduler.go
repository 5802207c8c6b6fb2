package scan

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pypi-data/cli/pkg/observability"
	"github.com/pypi-data/cli/pkg/source"
)

const (
	tracerName  = "pypi-data/scan"
	spanScanJob = "scan.job"
)

// Scheduler runs jobs on a fixed pool of workers.
type Scheduler struct {
	// Workers is the pool size. Zero means one per CPU.
	Workers int
	// NewWorker creates the worker owning a slot.
	NewWorker func(slot int) *Worker
	// JobTimeout bounds each job when positive. It is observed between tree
	// entries; a single blocked object read cannot be interrupted.
	JobTimeout time.Duration

	Tracer  trace.Tracer
	Metrics *observability.ScanMetrics
	Logger  *slog.Logger
}

// Run scans every job and returns one result per job in completion order.
// Canceling ctx stops dispatch; jobs never dispatched come back as canceled.
func (s *Scheduler) Run(ctx context.Context, jobs []source.Job) []Result {
	if len(jobs) == 0 {
		return nil
	}

	workers := s.PoolSize(len(jobs))
	jobCh := make(chan source.Job)
	resultCh := make(chan Result, workers)

	var wg sync.WaitGroup

	for slot := range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			s.runWorker(ctx, slot, jobCh, resultCh)
		}()
	}

	wg.Add(1)

	go func() {
		defer wg.Done()
		defer close(jobCh)

		s.dispatch(ctx, jobs, jobCh, resultCh)
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]Result, 0, len(jobs))
	for result := range resultCh {
		results = append(results, result)
	}

	return results
}

// PoolSize returns the number of workers Run starts for the given job count.
func (s *Scheduler) PoolSize(jobs int) int {
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return min(workers, jobs)
}

func (s *Scheduler) dispatch(ctx context.Context, jobs []source.Job, jobCh chan<- source.Job, resultCh chan<- Result) {
	for i, job := range jobs {
		select {
		case jobCh <- job:
		case <-ctx.Done():
			s.logger().WarnContext(ctx, "scan canceled", "undispatched", len(jobs)-i)

			for _, rest := range jobs[i:] {
				result := Result{Index: rest.Index, Path: rest.Repo, Commit: rest.Commit}
				result.fail(fmt.Errorf("%w: %w", ErrNotDispatched, context.Cause(ctx)))
				resultCh <- result
			}

			return
		}
	}
}

// runWorker owns one worker for the whole scan. libgit2 handles are kept on
// the OS thread that opened them.
func (s *Scheduler) runWorker(ctx context.Context, slot int, jobCh <-chan source.Job, resultCh chan<- Result) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	worker := s.NewWorker(slot)
	defer worker.Close()

	for job := range jobCh {
		resultCh <- s.runJob(ctx, worker, job)
	}
}

func (s *Scheduler) runJob(ctx context.Context, worker *Worker, job source.Job) Result {
	jobCtx := ctx

	if s.JobTimeout > 0 {
		var cancel context.CancelFunc

		jobCtx, cancel = context.WithTimeout(ctx, s.JobTimeout)
		defer cancel()
	}

	jobCtx, span := s.tracer().Start(jobCtx, spanScanJob, trace.WithAttributes(
		attribute.String("scan.repo", job.Repo),
		attribute.String("scan.commit", job.Commit),
		attribute.Int("scan.index", job.Index),
		attribute.Int("scan.slot", worker.Slot()),
	))
	defer span.End()

	doneInflight := s.Metrics.TrackInflight(ctx)
	defer doneInflight()

	start := time.Now()
	result := s.safeRun(jobCtx, worker, job)

	s.Metrics.RecordJob(ctx, string(result.ErrorKind), time.Since(start))

	if result.Failed() {
		span.SetStatus(codes.Error, result.Error)
		span.SetAttributes(attribute.String("error.kind", string(result.ErrorKind)))
	} else {
		span.SetAttributes(
			attribute.Int64("scan.total_seen", result.TotalSeen),
			attribute.Int64("scan.total_excluded", result.TotalExcluded),
		)
	}

	return result
}

// safeRun turns a panic inside a job into a failed result. The worker's
// store is dropped since its state is unknown.
func (s *Scheduler) safeRun(ctx context.Context, worker *Worker, job source.Job) (result Result) {
	if ctx.Err() != nil {
		result = Result{Index: job.Index, Path: job.Repo, Commit: job.Commit}
		result.fail(context.Cause(ctx))

		return result
	}

	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}

		err := fmt.Errorf("%w: %v", ErrWorkerPanic, recovered)

		s.logger().ErrorContext(ctx, "job panicked",
			"job", job.String(), "panic", recovered, "stack", string(debug.Stack()))

		result = Result{Index: job.Index, Path: job.Repo, Commit: job.Commit}
		result.fail(err)

		worker.discard()
		worker.cfg.Reporter.Finish(worker.Slot(), job.String(), err)
	}()

	return worker.Run(ctx, job)
}

func (s *Scheduler) tracer() trace.Tracer {
	if s.Tracer != nil {
		return s.Tracer
	}

	return otel.Tracer(tracerName)
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}

	return slog.Default()
}
