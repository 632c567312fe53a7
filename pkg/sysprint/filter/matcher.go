package filter

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Matcher tests paths against a fixed set of shell-style glob patterns.
// Patterns are compiled without separators, so "*" also spans "/" and a
// pattern like "*.conf" matches a file at any depth.
type Matcher struct {
	patterns []string
	globs    []glob.Glob
}

// NewMatcher compiles patterns. Invalid patterns are dropped; use Validate
// to surface them.
func NewMatcher(patterns ...string) *Matcher {
	m := &Matcher{}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			continue // Skip invalid patterns
		}
		m.patterns = append(m.patterns, p)
		m.globs = append(m.globs, g)
	}
	return m
}

// Validate reports the first pattern that does not compile.
func Validate(patterns []string) error {
	for _, p := range patterns {
		if _, err := glob.Compile(p); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	return nil
}

// Empty reports whether the matcher has no usable patterns.
func (m *Matcher) Empty() bool {
	return m == nil || len(m.globs) == 0
}

// Patterns returns the compiled patterns' source strings.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.patterns...)
}

// MatchAny returns true if path matches at least one pattern.
func (m *Matcher) MatchAny(path string) bool {
	if m == nil {
		return false
	}
	for _, g := range m.globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}
