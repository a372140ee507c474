// Package webhook implements the polymorphic-over-provider-kind webhook
// handler (spec.md §4.3): authenticating a raw delivery, normalising it
// into an event.Event, and enriching it with data the payload omits.
package webhook

import (
	"context"
	"net/http"

	"github.com/acfabro/git-actions/internal/event"
)

// Handler is the capability set every provider kind implements. A
// Handler is built once per configured webhook at startup from that
// webhook's WebhookConfig and is safe for concurrent use across
// deliveries — it holds no per-request state.
type Handler interface {
	// Kind identifies the provider kind this handler was built for
	// ("bitbucket", "github", ...), matching WebhookConfig.Kind.
	Kind() string

	// Authenticate verifies a delivery is genuine using the exact raw
	// bytes received — never a re-serialised copy — per spec.md §4.3.
	Authenticate(body []byte, headers http.Header) error

	// Parse extracts a normalised event.Event from a delivery. If the
	// provider payload does not carry changed_files directly,
	// implementations call Enrich themselves before returning.
	Parse(ctx context.Context, body []byte, headers http.Header) (*event.Event, error)

	// Enrich performs an authenticated outbound call to the provider's
	// API to fill in data the payload omitted (typically changed
	// files). A failure to enrich must never be returned as an error
	// from Parse — spec.md §4.3 requires it degrade to an event with
	// empty ChangedFiles plus a recorded warning, not a rejected
	// delivery.
	Enrich(ctx context.Context, partial *event.Event) (*event.Event, error)
}
