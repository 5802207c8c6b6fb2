package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricJobsTotal    = "pypi_data.scan.jobs"
	metricJobDuration  = "pypi_data.scan.job.duration"
	metricPathVisits   = "pypi_data.scan.path.visits"
	metricCacheHits    = "pypi_data.cache.hits"
	metricCacheMisses  = "pypi_data.cache.misses"
	metricInflightJobs = "pypi_data.scan.inflight"

	attrStatus = "status"
	attrKind   = "kind"
	attrClass  = "class"
	attrCache  = "cache"

	// StatusOK marks a job that produced statistics.
	StatusOK = "ok"
	// StatusFailed marks a job that ended with an error entry.
	StatusFailed = "failed"

	// ClassSeen labels path visits whose path matched.
	ClassSeen = "seen"
	// ClassExcluded labels path visits whose path did not match.
	ClassExcluded = "excluded"
)

// durationBucketBoundaries covers 10ms to 600s: a small repository scans in
// milliseconds, a monorepo commit can take minutes.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// ScanMetrics holds the OTel instruments of a scan run.
// A nil *ScanMetrics records nothing.
type ScanMetrics struct {
	jobsTotal    metric.Int64Counter
	jobDuration  metric.Float64Histogram
	pathVisits   metric.Int64Counter
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
	inflightJobs metric.Int64UpDownCounter
}

// CacheDelta is the cache traffic of one repository handle.
type CacheDelta struct {
	Kind   string
	Hits   int64
	Misses int64
}

// NewScanMetrics creates scan instruments from the given meter.
func NewScanMetrics(mt metric.Meter) (*ScanMetrics, error) {
	jobs, err := mt.Int64Counter(metricJobsTotal,
		metric.WithDescription("Scan jobs completed, by status and error kind"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricJobsTotal, err)
	}

	duration, err := mt.Float64Histogram(metricJobDuration,
		metric.WithDescription("Scan job duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricJobDuration, err)
	}

	visits, err := mt.Int64Counter(metricPathVisits,
		metric.WithDescription("Path visits, by match class"),
		metric.WithUnit("{path}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPathVisits, err)
	}

	hits, err := mt.Int64Counter(metricCacheHits,
		metric.WithDescription("Object cache hits"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheHits, err)
	}

	misses, err := mt.Int64Counter(metricCacheMisses,
		metric.WithDescription("Object cache misses"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheMisses, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricInflightJobs,
		metric.WithDescription("Scan jobs currently running"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricInflightJobs, err)
	}

	return &ScanMetrics{
		jobsTotal:    jobs,
		jobDuration:  duration,
		pathVisits:   visits,
		cacheHits:    hits,
		cacheMisses:  misses,
		inflightJobs: inflight,
	}, nil
}

// RecordJob records a finished job. kind is empty for successful jobs.
func (sm *ScanMetrics) RecordJob(ctx context.Context, kind string, duration time.Duration) {
	if sm == nil {
		return
	}

	status := StatusOK
	if kind != "" {
		status = StatusFailed
	}

	attrs := metric.WithAttributes(
		attribute.String(attrStatus, status),
		attribute.String(attrKind, kind),
	)

	sm.jobsTotal.Add(ctx, 1, attrs)
	sm.jobDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordVisits records the path visits of one job.
func (sm *ScanMetrics) RecordVisits(ctx context.Context, seen, excluded int64) {
	if sm == nil {
		return
	}

	sm.pathVisits.Add(ctx, seen, metric.WithAttributes(attribute.String(attrClass, ClassSeen)))
	sm.pathVisits.Add(ctx, excluded, metric.WithAttributes(attribute.String(attrClass, ClassExcluded)))
}

// RecordCache adds cache traffic.
func (sm *ScanMetrics) RecordCache(ctx context.Context, deltas ...CacheDelta) {
	if sm == nil {
		return
	}

	for _, delta := range deltas {
		attrs := metric.WithAttributes(attribute.String(attrCache, delta.Kind))

		sm.cacheHits.Add(ctx, delta.Hits, attrs)
		sm.cacheMisses.Add(ctx, delta.Misses, attrs)
	}
}

// TrackInflight increments the in-flight gauge and returns a function to decrement it.
func (sm *ScanMetrics) TrackInflight(ctx context.Context) func() {
	if sm == nil {
		return func() {}
	}

	sm.inflightJobs.Add(ctx, 1)

	return func() {
		sm.inflightJobs.Add(ctx, -1)
	}
}
