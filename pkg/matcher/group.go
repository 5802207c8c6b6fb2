package matcher

// Group combines path and content matchers.
//
// Paths: no globs means every path matches; otherwise any glob must match.
// Content: no literals and no regexes means every content matches; otherwise
// each configured kind must have at least one matching member. Literals are
// checked first and a miss rejects the content before any regex runs.
type Group struct {
	Globs    []Matcher
	Literals []Matcher
	Regexes  []Matcher
}

// Spec is the textual form of a Group, as given on the command line.
type Spec struct {
	Globs    []string
	Literals []string
	Regexes  []string
}

// NewGroup compiles every pattern of spec. The first invalid pattern aborts.
func NewGroup(spec Spec) (*Group, error) {
	group := &Group{
		Globs:    make([]Matcher, 0, len(spec.Globs)),
		Literals: make([]Matcher, 0, len(spec.Literals)),
		Regexes:  make([]Matcher, 0, len(spec.Regexes)),
	}

	for _, pattern := range spec.Globs {
		g, err := ParseGlob(pattern)
		if err != nil {
			return nil, err
		}

		group.Globs = append(group.Globs, g)
	}

	for _, needle := range spec.Literals {
		group.Literals = append(group.Literals, ParseLiteral(needle))
	}

	for _, expr := range spec.Regexes {
		re, err := ParseRegex(expr)
		if err != nil {
			return nil, err
		}

		group.Regexes = append(group.Regexes, re)
	}

	return group, nil
}

// IsPathMatched applies the path rule.
func (g *Group) IsPathMatched(path []byte) bool {
	if len(g.Globs) == 0 {
		return true
	}

	return anyMatch(g.Globs, path)
}

// IsContentMatched applies the content rule.
func (g *Group) IsContentMatched(content []byte) bool {
	if len(g.Literals) > 0 && !anyMatch(g.Literals, content) {
		return false
	}

	if len(g.Regexes) > 0 && !anyMatch(g.Regexes, content) {
		return false
	}

	return true
}

// HasContentMatchers reports whether IsContentMatched can ever return false.
func (g *Group) HasContentMatchers() bool {
	return len(g.Literals) > 0 || len(g.Regexes) > 0
}

func anyMatch(matchers []Matcher, value []byte) bool {
	for _, m := range matchers {
		if m.Match(value) {
			return true
		}
	}

	return false
}
