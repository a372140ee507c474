package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/acfabro/git-actions/internal/event"
)

// sharedSecretHeader is the provider-defined header Bitbucket Server's
// webhook plugin carries the shared token in. spec.md §6 describes it
// as "the X-Hub-Signature-equivalent shared-secret header" — Bitbucket
// Server sends the raw configured token here, not an HMAC digest, so
// authentication is a constant-time string comparison rather than a
// signature verification.
const sharedSecretHeader = "X-Hub-Signature"

// eventKeyHeader names the header Bitbucket Server stamps with the
// dotted event key (e.g. "repo:refs_changed").
const eventKeyHeader = "X-Event-Key"

// BitbucketConfig is everything a BitbucketHandler needs, resolved
// from WebhookConfig at load time: the environment-resolved shared
// token for authentication, and optionally the REST API coordinates
// used to enrich push/tag deliveries with their changed files.
type BitbucketConfig struct {
	Token string
	API   *BitbucketAPIConfig
}

// BitbucketHandler implements Handler for Bitbucket Server deliveries.
type BitbucketHandler struct {
	token   string
	fetcher ChangedFilesFetcher
	project string
	repo    string
}

// NewBitbucketHandler builds a handler from a resolved BitbucketConfig.
// Enrichment is wired only when API coordinates are configured — a
// webhook without them simply produces events with empty ChangedFiles,
// per spec.md §4.3's "failure to enrich" degrade path (here, enrichment
// was never configured at all, which degrades identically).
func NewBitbucketHandler(cfg BitbucketConfig) *BitbucketHandler {
	h := &BitbucketHandler{token: cfg.Token}
	if cfg.API != nil {
		h.fetcher = newBitbucketAPIClient(*cfg.API)
		h.project = cfg.API.Project
		h.repo = cfg.API.RepoSlug
	}
	return h
}

func (h *BitbucketHandler) Kind() string { return "bitbucket" }

// Authenticate compares the header-carried token against the
// configured token byte-for-byte in constant time, guarding against a
// timing side channel on the comparison itself. It never parses body.
func (h *BitbucketHandler) Authenticate(body []byte, headers http.Header) error {
	got := headers.Get(sharedSecretHeader)
	if got == "" {
		return &AuthFailedError{Reason: fmt.Sprintf("missing %s header", sharedSecretHeader)}
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
		return &AuthFailedError{Reason: "token mismatch"}
	}
	return nil
}

type bitbucketActor struct {
	Name string `json:"name"`
}

type bitbucketRef struct {
	ID         string `json:"id"`
	DisplayID  string `json:"displayId"`
	Type       string `json:"type"`
}

type bitbucketChange struct {
	Ref      bitbucketRef `json:"ref"`
	RefID    string       `json:"refId"`
	FromHash string       `json:"fromHash"`
	ToHash   string       `json:"toHash"`
	Type     string       `json:"type"`
}

type bitbucketRepository struct {
	Slug    string `json:"slug"`
	Project struct {
		Key string `json:"key"`
	} `json:"project"`
}

type bitbucketPRRef struct {
	ID           string              `json:"id"`
	DisplayID    string              `json:"displayId"`
	LatestCommit string              `json:"latestCommit"`
	Repository   bitbucketRepository `json:"repository"`
}

type bitbucketPullRequest struct {
	FromRef bitbucketPRRef `json:"fromRef"`
	ToRef   bitbucketPRRef `json:"toRef"`
	Author  struct {
		User bitbucketActor `json:"user"`
	} `json:"author"`
}

type bitbucketPayload struct {
	EventKey    string                 `json:"eventKey"`
	Actor       bitbucketActor         `json:"actor"`
	Repository  bitbucketRepository    `json:"repository"`
	Changes     []bitbucketChange      `json:"changes"`
	PullRequest *bitbucketPullRequest  `json:"pullRequest"`
}

// Parse normalises a Bitbucket Server delivery per the event-type
// mapping in spec.md §4.3, then enriches push/tag events with their
// changed files when an API client is configured.
func (h *BitbucketHandler) Parse(ctx context.Context, body []byte, headers http.Header) (*event.Event, error) {
	var p bitbucketPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &ParseError{Cause: fmt.Errorf("malformed bitbucket payload: %w", err)}
	}

	var rawPayload map[string]interface{}
	if err := json.Unmarshal(body, &rawPayload); err != nil {
		return nil, &ParseError{Cause: fmt.Errorf("malformed bitbucket payload: %w", err)}
	}

	switch p.EventKey {
	case "repo:refs_changed":
		return h.parseRefsChanged(ctx, p, rawPayload)
	case "pr:opened":
		return h.parsePullRequest(ctx, p, rawPayload, event.TypePullRequestOpened)
	case "pr:from_ref_updated":
		return h.parsePullRequest(ctx, p, rawPayload, event.TypePullRequestUpdated)
	case "pr:merged":
		return h.parsePullRequest(ctx, p, rawPayload, event.TypePullRequestMerged)
	case "pr:declined", "pr:deleted":
		return h.parsePullRequest(ctx, p, rawPayload, event.TypePullRequestClosed)
	default:
		return nil, &UnsupportedEventKindError{RawEventKey: p.EventKey}
	}
}

func (h *BitbucketHandler) parseRefsChanged(ctx context.Context, p bitbucketPayload, rawPayload map[string]interface{}) (*event.Event, error) {
	if len(p.Changes) == 0 {
		return nil, &ParseError{Cause: fmt.Errorf("repo:refs_changed payload carries no changes")}
	}
	change := p.Changes[0]

	// spec.md §4.3 scopes the push mapping to an added or modified ref;
	// a DELETE change (branch or tag deletion) has no such event type
	// of its own, so it must not be normalised as a push.
	if change.Type == "DELETE" {
		return nil, &UnsupportedEventKindError{RawEventKey: fmt.Sprintf("%s:%s", p.EventKey, change.Type)}
	}

	repository := fmt.Sprintf("%s/%s", p.Repository.Project.Key, p.Repository.Slug)

	evType := event.TypePush
	var branch string
	if strings.HasPrefix(change.RefID, "refs/tags/") {
		evType = event.TypeTag
	} else {
		branch = strings.TrimPrefix(change.RefID, "refs/heads/")
	}

	ev, err := event.New(evType, event.SourceBitbucket, repository, rawPayload)
	if err != nil {
		return nil, &ParseError{Cause: err}
	}
	ev.Branch = branch
	ev.CommitHash = change.ToHash
	ev.Author = p.Actor.Name

	return h.enrichIfConfigured(ctx, ev, p.Repository.Project.Key, p.Repository.Slug)
}

func (h *BitbucketHandler) parsePullRequest(ctx context.Context, p bitbucketPayload, rawPayload map[string]interface{}, evType event.Type) (*event.Event, error) {
	if p.PullRequest == nil {
		return nil, &ParseError{Cause: fmt.Errorf("%s payload carries no pullRequest", p.EventKey)}
	}
	from := p.PullRequest.FromRef
	repository := fmt.Sprintf("%s/%s", from.Repository.Project.Key, from.Repository.Slug)

	ev, err := event.New(evType, event.SourceBitbucket, repository, rawPayload)
	if err != nil {
		return nil, &ParseError{Cause: err}
	}
	ev.Branch = from.DisplayID
	ev.CommitHash = from.LatestCommit
	ev.Author = p.PullRequest.Author.User.Name

	return ev, nil
}

func (h *BitbucketHandler) enrichIfConfigured(ctx context.Context, ev *event.Event, project, repoSlug string) (*event.Event, error) {
	if h.fetcher == nil || ev.CommitHash == "" {
		return ev, nil
	}
	enriched, err := h.Enrich(ctx, ev)
	if err != nil {
		log.Printf("webhook(bitbucket): enrich %s@%s: %v", ev.Repository, ev.CommitHash, err)
		return ev, nil
	}
	return enriched, nil
}

// Enrich fetches the changed-file list for ev.CommitHash from
// Bitbucket Server's REST API. Per spec.md §4.3 a failure here must
// never reject the delivery — callers (Parse, above) log and fall
// back to an empty ChangedFiles rather than propagating the error.
func (h *BitbucketHandler) Enrich(ctx context.Context, partial *event.Event) (*event.Event, error) {
	if h.fetcher == nil {
		return partial, nil
	}
	project, repoSlug := h.project, h.repo
	if parts := strings.SplitN(partial.Repository, "/", 2); len(parts) == 2 {
		project, repoSlug = parts[0], parts[1]
	}
	files, err := h.fetcher.ChangedFiles(ctx, project, repoSlug, partial.CommitHash)
	if err != nil {
		return nil, &EnrichError{Cause: err}
	}
	return partial.WithChangedFiles(files)
}
