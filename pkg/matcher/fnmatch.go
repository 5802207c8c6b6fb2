package matcher

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// maxClassRunes bounds how many runes a bracket class may expand to.
const maxClassRunes = 4096

var errClassTooWide = errors.New("bracket expression expands to too many characters")

// classRange is an inclusive rune range of a bracket expression.
type classRange struct {
	lo, hi rune
}

// fnmatchToGlob rewrites an fnmatch pattern into gobwas/glob syntax.
//
// fnmatch has no alternation and no escape character, and an unterminated
// '[' is a literal. Inside brackets it accepts any number of ranges and
// single characters, where gobwas accepts one range or one character set,
// so multi-item classes are expanded into an explicit set.
func fnmatchToGlob(pattern string) (string, error) {
	p := []rune(pattern)

	var out strings.Builder

	for i := 0; i < len(p); i++ {
		switch c := p[i]; c {
		case '*', '?':
			out.WriteRune(c)
		case '\\', '{', '}', ',':
			out.WriteRune('\\')
			out.WriteRune(c)
		case '[':
			end := classEnd(p, i)
			if end < 0 {
				out.WriteString(`\[`)

				continue
			}

			class, err := translateClass(p[i+1 : end])
			if err != nil {
				return "", err
			}

			out.WriteString(class)

			i = end
		default:
			out.WriteRune(c)
		}
	}

	return out.String(), nil
}

// classEnd returns the index of the ']' closing the class opened at open,
// or -1 when the class is unterminated. A ']' right after "[" or "[!" is a member.
func classEnd(p []rune, open int) int {
	j := open + 1
	if j < len(p) && p[j] == '!' {
		j++
	}

	if j < len(p) && p[j] == ']' {
		j++
	}

	for ; j < len(p); j++ {
		if p[j] == ']' {
			return j
		}
	}

	return -1
}

func translateClass(body []rune) (string, error) {
	negate := len(body) > 0 && body[0] == '!'
	if negate {
		body = body[1:]
	}

	var ranges []classRange

	for k := 0; k < len(body); {
		if k+2 < len(body) && body[k+1] == '-' {
			// Reversed ranges are empty.
			if body[k] <= body[k+2] {
				ranges = append(ranges, classRange{lo: body[k], hi: body[k+2]})
			}

			k += 3

			continue
		}

		ranges = append(ranges, classRange{lo: body[k], hi: body[k]})
		k++
	}

	not := ""
	if negate {
		not = "!"
	}

	switch {
	case len(ranges) == 0 && negate:
		return "?", nil
	case len(ranges) == 0:
		return "[!\x00-" + string(utf8.MaxRune) + "]", nil
	case len(ranges) == 1 && ranges[0].lo != ranges[0].hi:
		return "[" + not + string(ranges[0].lo) + "-" + string(ranges[0].hi) + "]", nil
	case len(ranges) == 1 && ranges[0].lo == '-':
		// A lone '-' would be read as the start of a range.
		return "[" + not + "---]", nil
	}

	return expandClass(ranges, not)
}

// expandClass lists every member of ranges as an escaped character set.
// gobwas reads "x-" after the opening bracket as a range, so '-' goes last
// and is escaped unless it is the only member.
func expandClass(ranges []classRange, not string) (string, error) {
	var (
		members strings.Builder
		count   int
		dash    bool
	)

	for _, r := range ranges {
		count += int(r.hi-r.lo) + 1
		if count > maxClassRunes {
			return "", errClassTooWide
		}

		for c := r.lo; c <= r.hi; c++ {
			switch c {
			case '-':
				dash = true
			case '\\', ']', '!':
				members.WriteRune('\\')
				members.WriteRune(c)
			default:
				members.WriteRune(c)
			}
		}
	}

	if dash {
		if members.Len() > 0 {
			members.WriteRune('\\')
		}

		members.WriteRune('-')
	}

	return "[" + not + members.String() + "]", nil
}
