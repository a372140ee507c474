package webhook

import "fmt"

// AuthFailedError is returned by Handler.Authenticate when the shared
// token/signature does not match. The dispatcher maps this to HTTP 401.
type AuthFailedError struct {
	Reason string
}

func (e *AuthFailedError) Error() string {
	return fmt.Sprintf("webhook: authentication failed: %s", e.Reason)
}

// UnsupportedEventKindError is returned by Handler.Parse for a
// provider event type outside the normalised enumeration. The
// dispatcher maps this to a 200 no-op response so the provider does
// not retry, per spec.md §4.3.
type UnsupportedEventKindError struct {
	RawEventKey string
}

func (e *UnsupportedEventKindError) Error() string {
	return fmt.Sprintf("webhook: unsupported event kind %q", e.RawEventKey)
}

// ParseError wraps any other failure to extract an event from a
// delivery (malformed JSON, missing required field). The dispatcher
// maps this to HTTP 400.
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("webhook: parse failed: %v", e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// EnrichError records a failed enrichment call. Per spec.md §4.3 this
// is never surfaced as a request-rejecting error — callers log it and
// continue with an event carrying empty ChangedFiles.
type EnrichError struct {
	Cause error
}

func (e *EnrichError) Error() string {
	return fmt.Sprintf("webhook: enrich failed: %v", e.Cause)
}

func (e *EnrichError) Unwrap() error {
	return e.Cause
}
