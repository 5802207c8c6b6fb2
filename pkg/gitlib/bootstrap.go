package gitlib

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// CommitsFileName is the sidecar file listing the commits of interest of a repository.
const CommitsFileName = "commits.txt"

// ErrIncompleteBundle is returned when a stem lacks its pack, index or commit list.
var ErrIncompleteBundle = errors.New("incomplete pack bundle")

// Bundle is one set of raw files sharing a stem: <stem>.pack, <stem>.idx,
// optional <stem>.rev and <stem>.commits.txt.
type Bundle struct {
	Stem    string
	Pack    string
	Index   string
	Rev     string
	Commits string
}

// FindBundles groups the files of dir by stem (the name up to its first dot).
func FindBundles(dir string) ([]Bundle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read bundle directory: %w", err)
	}

	stems := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		stem, _, _ := strings.Cut(entry.Name(), ".")
		stems[stem] = struct{}{}
	}

	bundles := make([]Bundle, 0, len(stems))

	for stem := range stems {
		bundles = append(bundles, Bundle{
			Stem:    stem,
			Pack:    filepath.Join(dir, stem+".pack"),
			Index:   filepath.Join(dir, stem+".idx"),
			Rev:     filepath.Join(dir, stem+".rev"),
			Commits: filepath.Join(dir, stem+"."+CommitsFileName),
		})
	}

	sort.Slice(bundles, func(i, j int) bool { return bundles[i].Stem < bundles[j].Stem })

	return bundles, nil
}

// InitBare creates an empty bare repository at <dir>/.git.
func InitBare(dir string) error {
	repo, err := git2go.InitRepository(filepath.Join(dir, ".git"), true)
	if err != nil {
		return fmt.Errorf("init bare repository %s: %w", dir, err)
	}

	repo.Free()

	return nil
}

// Install materializes a bundle as <output>/<stem>: a bare store holding the
// pack files plus the commit list next to it. An existing target is an error.
func (b Bundle) Install(output string) (string, error) {
	for _, required := range []string{b.Pack, b.Index, b.Commits} {
		_, statErr := os.Stat(required)
		if statErr != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrIncompleteBundle, b.Stem, statErr)
		}
	}

	target := filepath.Join(output, b.Stem)

	err := os.MkdirAll(output, 0o755)
	if err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	err = os.Mkdir(target, 0o755)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", target, err)
	}

	err = InitBare(target)
	if err != nil {
		return "", err
	}

	packDir := filepath.Join(target, ".git", "objects", "pack")

	err = os.MkdirAll(packDir, 0o755)
	if err != nil {
		return "", fmt.Errorf("create pack directory: %w", err)
	}

	copies := [][2]string{
		{b.Index, filepath.Join(packDir, filepath.Base(b.Index))},
		{b.Pack, filepath.Join(packDir, filepath.Base(b.Pack))},
		{b.Commits, filepath.Join(target, CommitsFileName)},
	}

	if _, statErr := os.Stat(b.Rev); statErr == nil {
		copies = append(copies, [2]string{b.Rev, filepath.Join(packDir, filepath.Base(b.Rev))})
	}

	for _, pair := range copies {
		copyErr := copyFile(pair[0], pair[1])
		if copyErr != nil {
			return "", copyErr
		}
	}

	return target, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	_, err = io.Copy(out, in)
	if err != nil {
		out.Close()

		return fmt.Errorf("copy %s: %w", src, err)
	}

	err = out.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}

	return nil
}
