// Package match evaluates job names and changed file paths against shell-glob patterns.
package match

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Patterns is an ordered, compiled set of shell-glob patterns.
// The zero value matches nothing, and so does a nil glob (an empty class).
type Patterns struct {
	raw   []string
	globs []glob.Glob
}

// ParsePatterns parses a comma-separated pattern list. Entries are trimmed and
// empty entries discarded. Patterns follow fnmatch: "*" also matches "/", and
// only "*", "?" and closed "[...]" classes are special.
func ParsePatterns(csv string) (Patterns, error) {
	return Compile(SplitList(csv))
}

// Compile builds a pattern set from already split entries.
func Compile(patterns []string) (Patterns, error) {
	var p Patterns

	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		var g glob.Glob

		if expr, ok := translate(raw); ok {
			compiled, err := glob.Compile(expr)
			if err != nil {
				return Patterns{}, fmt.Errorf("invalid pattern %q: %w", raw, err)
			}

			g = compiled
		}

		p.raw = append(p.raw, raw)
		p.globs = append(p.globs, g)
	}

	return p, nil
}

// SplitList splits a comma-separated list, trimming entries and dropping empties.
func SplitList(csv string) []string {
	var out []string

	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

// Len returns the number of patterns.
func (p Patterns) Len() int {
	return len(p.globs)
}

// Strings returns the source patterns in order.
func (p Patterns) Strings() []string {
	out := make([]string, len(p.raw))
	copy(out, p.raw)

	return out
}

// Match reports whether s matches any pattern.
func (p Patterns) Match(s string) bool {
	for _, g := range p.globs {
		if g != nil && g.Match(s) {
			return true
		}
	}

	return false
}

// IsExcluded reports whether jobName matches any of the exclusion patterns.
func IsExcluded(jobName string, patterns Patterns) bool {
	return patterns.Match(jobName)
}
