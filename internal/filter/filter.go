// Package filter implements the OR-combined pattern list used for branch
// and path filters (spec.md §4.2).
package filter

import "github.com/acfabro/git-actions/internal/pattern"

// Filter is a sequence of pattern specs combined with OR semantics. A nil
// or empty Filter is match-all: the rule did not restrict on that axis.
type Filter []pattern.Spec

// Matches reports whether v satisfies the filter: true if the filter is
// empty, or if any spec in it matches v.
func (f Filter) Matches(v string) bool {
	if len(f) == 0 {
		return true
	}
	for _, p := range f {
		if p.Match(v) {
			return true
		}
	}
	return false
}

// MatchesAny reports whether the filter is satisfied for a set of
// candidate values (spec.md §4.2's path-filter rule: "satisfied for the
// event iff there exists at least one changed file f such that
// F.matches(f)"). An empty filter is still match-all, even against an
// empty candidate set.
func (f Filter) MatchesAny(values []string) bool {
	if len(f) == 0 {
		return true
	}
	for _, v := range values {
		if f.Matches(v) {
			return true
		}
	}
	return false
}

// Compile validates every glob spec in f, surfacing a malformed glob as a
// configuration-load error rather than a match-time failure.
func Compile(f Filter) error {
	for _, p := range f {
		if err := pattern.Compile(p); err != nil {
			return err
		}
	}
	return nil
}
