// Package source discovers the repositories of a fleet directory and turns
// their recorded commits into scan jobs.
package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/pypi-data/cli/pkg/gitlib"
)

// ErrBaseDirectory is returned when the fleet directory cannot be listed.
var ErrBaseDirectory = errors.New("read base directory")

// Job is one unit of scan work: a commit of one repository.
type Job struct {
	Repo   string
	Commit string
	Index  int
}

func (j Job) String() string {
	return fmt.Sprintf("#%d %s@%s", j.Index, filepath.Base(j.Repo), j.Commit)
}

// SkippedRepo records a repository whose commit list could not be read.
type SkippedRepo struct {
	Repo string
	Err  error
}

// Enumeration is the outcome of listing a fleet directory.
type Enumeration struct {
	Jobs    []Job
	Skipped []SkippedRepo
}

// Enumerator lists repositories under Base and the commits recorded for each.
type Enumerator struct {
	// Base holds one sub-directory per repository.
	Base string
	// CommitsFile is the sidecar file name inside each repository. Defaults to commits.txt.
	CommitsFile string
	Logger      *slog.Logger
}

// Enumerate returns one job per (repository, commit) pair, numbered in
// directory order. Repositories without a readable commit list are skipped
// and reported; only an unreadable base directory is fatal.
func (e *Enumerator) Enumerate(ctx context.Context) (Enumeration, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	commitsFile := e.CommitsFile
	if commitsFile == "" {
		commitsFile = gitlib.CommitsFileName
	}

	dirEntries, err := os.ReadDir(e.Base)
	if err != nil {
		return Enumeration{}, fmt.Errorf("%w %s: %w", ErrBaseDirectory, e.Base, err)
	}

	var result Enumeration

	for _, entry := range dirEntries {
		if !entry.IsDir() {
			continue
		}

		ctxErr := ctx.Err()
		if ctxErr != nil {
			return result, ctxErr
		}

		repo := filepath.Join(e.Base, entry.Name())

		commits, readErr := ReadCommits(filepath.Join(repo, commitsFile))
		if readErr != nil {
			logger.WarnContext(ctx, "skipping repository without commit list",
				"repo", repo, "error", readErr)

			result.Skipped = append(result.Skipped, SkippedRepo{Repo: repo, Err: readErr})

			continue
		}

		for _, commit := range commits {
			result.Jobs = append(result.Jobs, Job{Repo: repo, Commit: commit, Index: len(result.Jobs)})
		}
	}

	logger.DebugContext(ctx, "enumerated repositories",
		"base", e.Base, "jobs", len(result.Jobs), "skipped", len(result.Skipped))

	return result, nil
}

// ReadCommits reads newline-separated commit ids, ignoring blank lines and surrounding space.
func ReadCommits(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open commit list: %w", err)
	}
	defer f.Close()

	var commits []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			commits = append(commits, line)
		}
	}

	err = scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read commit list %s: %w", path, err)
	}

	return commits, nil
}

// Sample draws n jobs uniformly without replacement, in random order.
// A non-positive n, or one at least len(jobs), returns every job shuffled.
// The input slice is not modified.
func Sample(jobs []Job, n int, rng *rand.Rand) []Job {
	pool := append([]Job(nil), jobs...)

	if n <= 0 || n > len(pool) {
		n = len(pool)
	}

	// Partial Fisher-Yates: the first n slots end up holding the sample.
	for i := range n {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}

	return pool[:n]
}
