// Package event defines the normalised representation of a received
// webhook delivery, shared by every webhook handler, the rule matcher,
// and the template engine.
package event

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Type enumerates the normalised event kinds a webhook handler can
// produce. Strings match spec exactly: case-sensitive, underscore
// separated.
type Type string

const (
	TypePush                  Type = "push"
	TypePullRequestOpened     Type = "pull_request_opened"
	TypePullRequestUpdated    Type = "pull_request_updated"
	TypePullRequestMerged     Type = "pull_request_merged"
	TypePullRequestClosed     Type = "pull_request_closed"
	TypeTag                   Type = "tag"
)

// Valid reports whether t is one of the enumerated event types.
func (t Type) Valid() bool {
	switch t {
	case TypePush, TypePullRequestOpened, TypePullRequestUpdated,
		TypePullRequestMerged, TypePullRequestClosed, TypeTag:
		return true
	default:
		return false
	}
}

// Source identifies which provider kind produced an event.
type Source string

const (
	SourceBitbucket Source = "bitbucket"
	SourceGitHub    Source = "github"
)

// Event is the normalised unit the rest of the pipeline operates on.
// A handler fills in Branch, CommitHash and Author right after New;
// from then on the event is not mutated in place: WithChangedFiles and
// WithWebhookName return copies, the latter matching the dispatcher's
// need to stamp the webhook name in after parsing without handlers
// having to know it.
type Event struct {
	EventType    Type                   `json:"event_type"`
	Source       Source                 `json:"source"`
	WebhookName  string                 `json:"webhook_name"`
	Repository   string                 `json:"repository"`
	Branch       string                 `json:"branch,omitempty"`
	CommitHash   string                 `json:"commit_hash,omitempty"`
	Author       string                 `json:"author,omitempty"`
	ChangedFiles []string               `json:"changed_files"`
	Payload      map[string]interface{} `json:"payload"`
}

// New validates and constructs an Event with no changed files and a
// non-nil payload. It rejects unknown event types, per the invariants
// in spec.md §3; changed files are set through WithChangedFiles.
func New(evType Type, source Source, repository string, payload map[string]interface{}) (*Event, error) {
	if !evType.Valid() {
		return nil, fmt.Errorf("event: unknown event type %q", evType)
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		EventType:    evType,
		Source:       source,
		Repository:   repository,
		ChangedFiles: []string{},
		Payload:      payload,
	}, nil
}

// WithChangedFiles returns a copy of e with ChangedFiles set to a
// deduplicated, validated copy of files. Absolute paths are rejected.
func (e Event) WithChangedFiles(files []string) (*Event, error) {
	seen := make(map[string]struct{}, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		if strings.HasPrefix(f, "/") {
			return nil, fmt.Errorf("event: changed file %q is absolute, must be repository-relative", f)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	e.ChangedFiles = out
	return &e, nil
}

// WithWebhookName returns a copy of e with WebhookName set. Called by the
// dispatcher after a handler's Parse returns, never by the handler
// itself (spec.md §3: "set by the dispatcher, not the handler").
func (e Event) WithWebhookName(name string) *Event {
	e.WebhookName = name
	return &e
}

// TemplateContext renders the event into the JSON-shaped map the
// template engine walks for `event.*` lookups, with the original payload
// nested at `event.payload` as spec.md §4.5 requires.
func (e *Event) TemplateContext() (map[string]interface{}, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("event: marshal for template context: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("event: unmarshal for template context: %w", err)
	}
	return m, nil
}
