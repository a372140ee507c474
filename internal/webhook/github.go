package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gogithub "github.com/google/go-github/v57/github"

	"github.com/acfabro/git-actions/internal/event"
	ghapp "github.com/acfabro/git-actions/pkg/githubapp"
)

// GitHubConfig configures the bonus GitHub webhook kind — additive to
// spec.md's required Bitbucket handler, exercising the GitHub App
// authentication stack already present in the corpus (go-github,
// ghinstallation) without altering any Bitbucket-specific behavior.
type GitHubConfig struct {
	WebhookSecret string
	AppID         int64
	PrivateKeyPEM []byte
	APIBaseURL    string
}

// GitHubHandler implements Handler for github.com/GitHub Enterprise
// Server deliveries, authenticated with HMAC-SHA signatures (go-github's
// ValidateSignature) and enriched via a GitHub App installation token
// discovered through pkg/githubapp's InstallationCache.
type GitHubHandler struct {
	secret        string
	appID         int64
	pemData       []byte
	apiBase       string
	installations *ghapp.InstallationCache
}

// NewGitHubHandler builds a handler from a resolved GitHubConfig. An
// unset APIBaseURL falls back to GITHUB_API (or github.com), so GitHub
// Enterprise Server deployments need only set that variable rather
// than repeat it in every webhook document.
func NewGitHubHandler(cfg GitHubConfig) *GitHubHandler {
	apiBase := cfg.APIBaseURL
	if apiBase == "" {
		apiBase = ghapp.GetAPIBase()
	}
	return &GitHubHandler{
		secret:        cfg.WebhookSecret,
		appID:         cfg.AppID,
		pemData:       cfg.PrivateKeyPEM,
		apiBase:       apiBase,
		installations: ghapp.NewInstallationCache(),
	}
}

func (h *GitHubHandler) Kind() string { return "github" }

// Authenticate verifies the X-Hub-Signature-256 HMAC over the exact
// raw body, using go-github's constant-time validator.
func (h *GitHubHandler) Authenticate(body []byte, headers http.Header) error {
	sig := headers.Get("X-Hub-Signature-256")
	if sig == "" {
		sig = headers.Get("X-Hub-Signature")
	}
	if sig == "" {
		return &AuthFailedError{Reason: "missing signature header"}
	}
	if err := gogithub.ValidateSignature(sig, body, []byte(h.secret)); err != nil {
		return &AuthFailedError{Reason: err.Error()}
	}
	return nil
}

// Parse normalises a GitHub delivery. Only the event types this
// service's enumeration covers are accepted; everything else is an
// UnsupportedEventKindError, matching the Bitbucket handler's
// disposition for unknown event types.
func (h *GitHubHandler) Parse(ctx context.Context, body []byte, headers http.Header) (*event.Event, error) {
	ghEventType := headers.Get("X-GitHub-Event")
	payload, err := gogithub.ParseWebHook(ghEventType, body)
	if err != nil {
		return nil, &ParseError{Cause: err}
	}

	var rawPayload map[string]interface{}
	if err := json.Unmarshal(body, &rawPayload); err != nil {
		return nil, &ParseError{Cause: fmt.Errorf("malformed github payload: %w", err)}
	}

	switch p := payload.(type) {
	case *gogithub.PushEvent:
		return h.parsePush(p, rawPayload)
	case *gogithub.PullRequestEvent:
		return h.parsePullRequest(ctx, p, rawPayload)
	default:
		return nil, &UnsupportedEventKindError{RawEventKey: ghEventType}
	}
}

func (h *GitHubHandler) parsePush(p *gogithub.PushEvent, rawPayload map[string]interface{}) (*event.Event, error) {
	repository := p.GetRepo().GetFullName()
	ev, err := event.New(event.TypePush, event.SourceGitHub, repository, rawPayload)
	if err != nil {
		return nil, &ParseError{Cause: err}
	}
	ev.Branch = strings.TrimPrefix(p.GetRef(), "refs/heads/")
	ev.CommitHash = p.GetAfter()
	if p.GetPusher() != nil {
		ev.Author = p.GetPusher().GetName()
	}

	var files []string
	for _, c := range p.Commits {
		files = append(files, c.Added...)
		files = append(files, c.Modified...)
	}
	return ev.WithChangedFiles(files)
}

func (h *GitHubHandler) parsePullRequest(ctx context.Context, p *gogithub.PullRequestEvent, rawPayload map[string]interface{}) (*event.Event, error) {
	var evType event.Type
	switch p.GetAction() {
	case "opened":
		evType = event.TypePullRequestOpened
	case "synchronize", "edited":
		evType = event.TypePullRequestUpdated
	case "closed":
		if p.GetPullRequest().GetMerged() {
			evType = event.TypePullRequestMerged
		} else {
			evType = event.TypePullRequestClosed
		}
	default:
		return nil, &UnsupportedEventKindError{RawEventKey: "pull_request:" + p.GetAction()}
	}

	repository := p.GetRepo().GetFullName()
	ev, err := event.New(evType, event.SourceGitHub, repository, rawPayload)
	if err != nil {
		return nil, &ParseError{Cause: err}
	}
	ev.Branch = p.GetPullRequest().GetHead().GetRef()
	ev.CommitHash = p.GetPullRequest().GetHead().GetSHA()
	ev.Author = p.GetPullRequest().GetUser().GetLogin()

	files, err := h.listPullRequestFiles(ctx, repository, p.GetNumber())
	if err != nil {
		log.Printf("webhook(github): enrich pr #%d on %s: %v", p.GetNumber(), repository, err)
		return ev, nil
	}
	return ev.WithChangedFiles(files)
}

// Enrich satisfies the Handler interface. The GitHub handler performs
// its enrichment inline in parsePullRequest (it needs the pull
// request number, which the normalised Event does not carry), so this
// is a no-op pass-through — Parse never calls it.
func (h *GitHubHandler) Enrich(ctx context.Context, partial *event.Event) (*event.Event, error) {
	return partial, nil
}

// listPullRequestFiles lists the files changed in pull request number
// using an installation-authenticated go-github client, discovering
// the installation ID through pkg/githubapp's cache.
func (h *GitHubHandler) listPullRequestFiles(ctx context.Context, repository string, number int) ([]string, error) {
	if h.appID == 0 || len(h.pemData) == 0 {
		return nil, nil
	}
	installationID, err := h.installations.GetInstallationID(ctx, h.appID, h.pemData, repository, h.apiBase)
	if err != nil {
		return nil, fmt.Errorf("discover installation id: %w", err)
	}

	transport, err := ghinstallation.NewAppsTransport(http.DefaultTransport, h.appID, h.pemData)
	if err != nil {
		return nil, fmt.Errorf("build app transport: %w", err)
	}
	itr := ghinstallation.NewFromAppsTransport(transport, installationID)
	client := gogithub.NewClient(&http.Client{Transport: itr, Timeout: 30 * time.Second})

	parts := strings.SplitN(repository, "/", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed repository %q", repository)
	}
	owner, repo := parts[0], parts[1]

	var files []string
	opts := &gogithub.ListOptions{PerPage: 100}
	for {
		page, resp, err := client.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("list pull request files: %w", err)
		}
		for _, f := range page {
			files = append(files, f.GetFilename())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return files, nil
}
