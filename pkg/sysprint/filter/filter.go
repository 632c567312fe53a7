// Package filter decides which paths a scan records.
package filter

import (
	"fmt"
	"strings"

	"github.com/jamesainslie/sysprint/pkg/sysprint/types"
)

// PrunePolicy selects the predicate applied to directories before descent.
type PrunePolicy string

const (
	// PruneFull applies the same include/exclude predicate as files.
	PruneFull PrunePolicy = "full"

	// PruneExclude only prunes directories matching an exclude pattern.
	PruneExclude PrunePolicy = "exclude"
)

// ParsePrunePolicy validates a policy name. The empty string selects PruneFull.
func ParsePrunePolicy(s string) (PrunePolicy, error) {
	switch PrunePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PruneFull:
		return PruneFull, nil
	case PruneExclude:
		return PruneExclude, nil
	default:
		return "", fmt.Errorf("unknown prune policy %q (want full or exclude)", s)
	}
}

// Filter evaluates the include/exclude rules for one scan.
type Filter struct {
	include *Matcher
	exclude *Matcher
	prune   PrunePolicy
}

// Option is a functional option for configuring a Filter.
type Option func(*Filter)

// New creates a Filter. Without options every path is included.
func New(opts ...Option) *Filter {
	f := &Filter{
		include: NewMatcher(),
		exclude: NewMatcher(),
		prune:   PruneFull,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// WithInclude sets the include glob patterns. They only apply in targeted
// mode, where a path must match at least one when any are configured.
func WithInclude(patterns ...string) Option {
	return func(f *Filter) {
		f.include = NewMatcher(patterns...)
	}
}

// WithExclude sets the exclude glob patterns.
// Paths matching any pattern are excluded in both modes.
func WithExclude(patterns ...string) Option {
	return func(f *Filter) {
		f.exclude = NewMatcher(patterns...)
	}
}

// WithPrunePolicy sets how directories are filtered before descent.
func WithPrunePolicy(p PrunePolicy) Option {
	return func(f *Filter) {
		if p == "" {
			p = PruneFull
		}
		f.prune = p
	}
}

// PrunePolicy returns the active directory policy.
func (f *Filter) PrunePolicy() PrunePolicy {
	return f.prune
}

// Include reports whether path is recorded under mode.
//
// Broad mode ignores include patterns. Targeted mode first applies the
// include gate, then the exclude list.
func (f *Filter) Include(path string, mode types.Mode) bool {
	if mode == types.ModeTargeted && !f.include.Empty() && !f.include.MatchAny(path) {
		return false
	}
	return !f.exclude.MatchAny(path)
}

// IncludeDir reports whether the scanner may descend into dir. An excluded
// directory's subtree is never visited.
func (f *Filter) IncludeDir(dir string, mode types.Mode) bool {
	if f.prune == PruneExclude {
		return !f.exclude.MatchAny(dir)
	}
	return f.Include(dir, mode)
}
