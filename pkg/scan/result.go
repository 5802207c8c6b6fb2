// Package scan computes per-commit path statistics over a fleet of repositories.
//
// A Worker turns one job into one Result; a Scheduler runs many workers in
// parallel; an Aggregator collects and orders what they produce.
package scan

import (
	"context"
	"errors"

	"github.com/pypi-data/cli/pkg/gitlib"
)

// ErrorKind classifies why a job produced no statistics.
type ErrorKind string

// Error kinds reported in failed results.
const (
	KindInvalidCommitID ErrorKind = "invalid_commit_id"
	KindCommitNotFound  ErrorKind = "commit_not_found"
	KindTreeCorrupt     ErrorKind = "tree_corrupt"
	KindRepositoryOpen  ErrorKind = "repository_open"
	KindWorkerPanic     ErrorKind = "worker_panic"
	KindCanceled        ErrorKind = "canceled"
	KindTimeout         ErrorKind = "timeout"
	KindIO              ErrorKind = "io"
)

var (
	// ErrInvalidCommitID is returned for commit list entries that are not object ids.
	ErrInvalidCommitID = errors.New("invalid commit id")
	// ErrWorkerPanic wraps a panic recovered while running a job.
	ErrWorkerPanic = errors.New("worker panic")
	// ErrNotDispatched marks jobs that never ran because the scan was canceled.
	ErrNotDispatched = errors.New("job not dispatched")
)

// Classify maps a job error to its kind.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrWorkerPanic):
		return KindWorkerPanic
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, ErrNotDispatched):
		return KindCanceled
	case errors.Is(err, ErrInvalidCommitID):
		return KindInvalidCommitID
	case errors.Is(err, gitlib.ErrRepositoryOpen):
		return KindRepositoryOpen
	case errors.Is(err, gitlib.ErrCommitNotFound):
		return KindCommitNotFound
	case errors.Is(err, gitlib.ErrObjectNotFound),
		errors.Is(err, gitlib.ErrNotATree),
		errors.Is(err, gitlib.ErrTreeTooDeep):
		return KindTreeCorrupt
	default:
		return KindIO
	}
}

// Result is the outcome of one job. Percentages are nil when their
// denominator is zero.
type Result struct {
	Index int `json:"-" yaml:"-"`

	Path            string   `json:"path" yaml:"path"`
	Commit          string   `json:"commit" yaml:"commit"`
	Matched         int      `json:"matched" yaml:"matched"`
	TotalSeen       int64    `json:"total_seen" yaml:"total_seen"`
	PercentSeen     *float64 `json:"percent_seen" yaml:"percent_seen"`
	TotalExcluded   int64    `json:"total_excluded" yaml:"total_excluded"`
	NonMatched      int      `json:"non_matched" yaml:"non_matched"`
	PercentExcluded *float64 `json:"percent_excluded" yaml:"percent_excluded"`

	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
}

// Failed reports whether the job ended with an error.
func (r Result) Failed() bool {
	return r.ErrorKind != ""
}

// fail records err on the result and drops any partial statistics.
func (r *Result) fail(err error) {
	r.Matched, r.NonMatched = 0, 0
	r.TotalSeen, r.TotalExcluded = 0, 0
	r.PercentSeen, r.PercentExcluded = nil, nil
	r.Error = err.Error()
	r.ErrorKind = Classify(err)
}

// percent returns part/whole*100, or nil when whole is zero.
func percent(part int, whole int64) *float64 {
	if whole == 0 {
		return nil
	}

	p := float64(part) / float64(whole) * 100

	return &p
}
