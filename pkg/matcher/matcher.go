// Package matcher implements the path and content predicates used to classify
// files during a scan.
package matcher

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"

	"github.com/gobwas/glob"
)

// ErrInvalidPattern is returned when a glob or regular expression does not compile.
var ErrInvalidPattern = errors.New("invalid pattern")

// Matcher is a pure predicate over raw bytes: a path or a file's contents.
// Implementations must be safe for concurrent use.
type Matcher interface {
	Match(value []byte) bool
}

// Glob matches an fnmatch-style pattern against the "/"-rooted path.
// '*' and '?' also match '/', so "*.py" matches at any depth and a pattern
// anchored at the root starts with "/". There is no alternation or escaping.
type Glob struct {
	pattern string
	glob    glob.Glob
}

// ParseGlob compiles a glob pattern.
func ParseGlob(pattern string) (*Glob, error) {
	translated, err := fnmatchToGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: glob %q: %w", ErrInvalidPattern, pattern, err)
	}

	g, err := glob.Compile(translated)
	if err != nil {
		return nil, fmt.Errorf("%w: glob %q: %w", ErrInvalidPattern, pattern, err)
	}

	return &Glob{pattern: pattern, glob: g}, nil
}

// Match reports whether path matches the pattern.
func (g *Glob) Match(path []byte) bool {
	return g.glob.Match(string(path))
}

func (g *Glob) String() string { return "glob:" + g.pattern }

// Literal matches content containing a fixed byte sequence.
type Literal struct {
	needle []byte
}

// ParseLiteral builds a literal matcher. Any string is valid.
func ParseLiteral(needle string) *Literal {
	return &Literal{needle: []byte(needle)}
}

// Match reports whether content contains the needle.
func (l *Literal) Match(content []byte) bool {
	return bytes.Contains(content, l.needle)
}

func (l *Literal) String() string { return "literal:" + string(l.needle) }

// Regex matches content in which a regular expression finds any match.
type Regex struct {
	re *regexp.Regexp
}

// ParseRegex compiles an RE2 regular expression.
func ParseRegex(expr string) (*Regex, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: regex %q: %w", ErrInvalidPattern, expr, err)
	}

	return &Regex{re: re}, nil
}

// Match reports whether the expression matches anywhere in content.
func (r *Regex) Match(content []byte) bool {
	return r.re.Match(content)
}

func (r *Regex) String() string { return "regex:" + r.re.String() }
