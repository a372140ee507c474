// Package rule implements the rule matcher (spec.md §4.4): deciding
// whether a normalised event satisfies a rule's event-type, branch,
// and path filters, in that order.
package rule

import (
	"github.com/acfabro/git-actions/internal/event"
	"github.com/acfabro/git-actions/internal/filter"
)

// HTTPAction is the Http variant of Action (spec.md §3). Every string
// field is a template, rendered fresh per delivery.
type HTTPAction struct {
	URL            string
	Method         string
	Headers        map[string]string
	Body           string
	HasBody        bool
	TimeoutSeconds int
}

// ShellAction is the Shell variant of Action (spec.md §3).
type ShellAction struct {
	Command        string
	WorkingDir     string
	Environment    map[string]string
	TimeoutSeconds int
}

// Action is a tagged union: exactly one of HTTP or Shell is non-nil.
type Action struct {
	HTTP  *HTTPAction
	Shell *ShellAction
}

// Rule is the fully-resolved, immutable rule a dispatch table entry
// references. Webhooks and EventTypes are represented as sets; at load
// time internal/config guarantees every name in Webhooks resolves to a
// configured webhook and every entry in EventTypes is a valid
// event.Type.
type Rule struct {
	Name        string
	Description string
	Webhooks    map[string]struct{}
	EventTypes  map[event.Type]struct{}
	Branches    filter.Filter
	Paths       filter.Filter
	Actions     []Action
}

// Matches implements spec.md §4.4's four-step decision, in order:
// event type membership, branch filter, path filter, then true.
// Webhook membership is enforced earlier by the dispatcher via the
// dispatch table and is intentionally not re-checked here.
func Matches(ev *event.Event, r *Rule) bool {
	if _, ok := r.EventTypes[ev.EventType]; !ok {
		return false
	}
	if !branchMatches(r.Branches, ev.Branch) {
		return false
	}
	if !r.Paths.MatchesAny(ev.ChangedFiles) {
		return false
	}
	return true
}

// branchMatches applies spec.md §4.2's rule that an event with no
// branch satisfies only the empty branch filter — an Exact("") pattern
// must never accidentally match an absent branch.
func branchMatches(branches filter.Filter, branch string) bool {
	if branch == "" {
		return len(branches) == 0
	}
	return branches.Matches(branch)
}
