// Package pattern implements the three-dialect pattern matcher
// (exact / glob / regex) that branch and path filters are built from.
package pattern

import (
	"fmt"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"
)

// Kind identifies which of the three dialects a Spec holds.
type Kind int

const (
	KindExact Kind = iota
	KindGlob
	KindRegex
)

// Spec is a tagged pattern specification: exactly one of exact, glob, or
// regex is populated, enforced by the constructors below — never by a
// zero-value Spec built by hand.
type Spec struct {
	kind  Kind
	exact string
	glob  string
	regex *regexp.Regexp
}

// Exact builds an exact-match pattern spec.
func Exact(s string) Spec {
	return Spec{kind: KindExact, exact: s}
}

// Glob builds a glob pattern spec. The dialect is doublestar's: `*`
// matches any run excluding `/`, `**` matches any run including `/`, `?`
// matches one non-`/` character, and `{a,b,c}` denotes alternation.
// Glob does not itself validate the pattern — call Compile at config
// load time so a malformed glob fails load, not match.
func Glob(s string) Spec {
	return Spec{kind: KindGlob, glob: s}
}

// Regex compiles x once and returns a regex pattern spec. A compile
// error here is a configuration load error, per spec.md §4.1 — it must
// never be deferred to match time.
func Regex(x string) (Spec, error) {
	re, err := regexp.Compile(x)
	if err != nil {
		return Spec{}, fmt.Errorf("pattern: invalid regex %q: %w", x, err)
	}
	return Spec{kind: KindRegex, regex: re}, nil
}

// Compile validates a Spec built with Glob, failing configuration load on
// a malformed glob the same way Regex fails load on a malformed regex.
func Compile(s Spec) error {
	if s.kind == KindGlob {
		if !doublestar.ValidatePattern(s.glob) {
			return fmt.Errorf("pattern: invalid glob %q", s.glob)
		}
	}
	return nil
}

// Match reports whether s matches the given input. It performs no I/O
// and returns no error: compilation failures already surfaced at config
// load, per spec.md §4.1 ("Errors: none at match time").
func (s Spec) Match(input string) bool {
	switch s.kind {
	case KindExact:
		return input == s.exact
	case KindGlob:
		matched, err := doublestar.Match(s.glob, input)
		if err != nil {
			// ValidatePattern at load time should have caught this;
			// treat a runtime match error as a non-match rather than a panic.
			return false
		}
		return matched
	case KindRegex:
		return s.regex.MatchString(input)
	default:
		return false
	}
}

// String returns a human-readable form for logging.
func (s Spec) String() string {
	switch s.kind {
	case KindExact:
		return "exact:" + s.exact
	case KindGlob:
		return "glob:" + s.glob
	case KindRegex:
		return "regex:" + s.regex.String()
	default:
		return "invalid-pattern"
	}
}
