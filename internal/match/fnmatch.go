package match

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// textSpecials are literal in fnmatch but syntax in gobwas outside a class.
const textSpecials = `\{},]`

// classSpecials need care inside a gobwas character list.
const classSpecials = `!-]\`

// translate rewrites an fnmatch pattern into gobwas syntax. Only "*", "?"
// and closed "[...]" classes are special; everything else is literal,
// including braces, backslashes and an unclosed "[". It reports false when
// the pattern contains a class that can never match.
func translate(pattern string) (string, bool) {
	p := []rune(pattern)

	var sb strings.Builder

	for i := 0; i < len(p); i++ {
		c := p[i]

		switch c {
		case '*', '?':
			sb.WriteRune(c)
		case '[':
			end := classEnd(p, i)
			if end < 0 {
				sb.WriteString(`\[`)
				continue
			}

			class, ok := translateClass(p[i+1 : end])
			if !ok {
				return "", false
			}

			sb.WriteString(class)
			i = end
		default:
			if strings.ContainsRune(textSpecials, c) {
				sb.WriteRune('\\')
			}

			sb.WriteRune(c)
		}
	}

	return sb.String(), true
}

// classEnd returns the index of the "]" closing the class opened at p[open],
// or -1. A "]" right after "[" or "[!" is a member, not the end.
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

type runeRange struct{ lo, hi rune }

// translateClass converts the body of an fnmatch class. Reversed ranges are
// dropped; an empty positive class never matches and an empty negated class
// matches any character.
func translateClass(body []rune) (string, bool) {
	negate := len(body) > 0 && body[0] == '!'
	if negate {
		body = body[1:]
	}

	var ranges []runeRange

	for i := 0; i < len(body); {
		if i+2 < len(body) && body[i+1] == '-' {
			if body[i] <= body[i+2] {
				ranges = append(ranges, runeRange{body[i], body[i+2]})
			}

			i += 3

			continue
		}

		ranges = append(ranges, runeRange{body[i], body[i]})
		i++
	}

	switch {
	case len(ranges) == 0 && negate:
		return "?", true
	case len(ranges) == 0:
		return "", false
	case len(ranges) == 1 && (negate || ranges[0].lo != '!'):
		// The range form reads both bounds verbatim. A leading "!" would be
		// taken as negation.
		return "[" + not(negate) + string(ranges[0].lo) + "-" + string(ranges[0].hi) + "]", true
	}

	members := expand(ranges)

	switch {
	case len(members) == 1 && negate:
		return "[!" + string(members[0]) + "-" + string(members[0]) + "]", true
	case len(members) == 1:
		return `\` + string(members[0]), true
	}

	// The first member is read before escapes are honored and must not be
	// followed by "-", so lead with a plain rune, or failing that any rune
	// other than "-".
	lead := -1

	for i, r := range members {
		if !strings.ContainsRune(classSpecials, r) {
			lead = i
			break
		}

		if lead < 0 && r != '-' {
			lead = i
		}
	}

	members[0], members[lead] = members[lead], members[0]

	var sb strings.Builder

	sb.WriteString("[" + not(negate))

	for i, r := range members {
		if i > 0 || strings.ContainsRune(classSpecials, r) {
			sb.WriteRune('\\')
		}

		sb.WriteRune(r)
	}

	sb.WriteString("]")

	return sb.String(), true
}

func not(negate bool) string {
	if negate {
		return "!"
	}

	return ""
}

// expand lists the distinct runes of ranges in ascending order.
func expand(ranges []runeRange) []rune {
	seen := make(map[rune]bool)

	var out []rune

	for _, rg := range ranges {
		for r := rg.lo; r <= rg.hi && r <= utf8.MaxRune; r++ {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}
