package config

import (
	"fmt"
	"time"

	"github.com/acfabro/git-actions/internal/event"
	"github.com/acfabro/git-actions/internal/filter"
	"github.com/acfabro/git-actions/internal/pattern"
	"github.com/acfabro/git-actions/internal/rule"
	"github.com/acfabro/git-actions/internal/webhook"
)

// reservedPaths MUST NOT be claimed by any configured webhook, per
// spec.md §4.8.
var reservedPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

const (
	defaultListenAddress       = ":8080"
	defaultDrainTimeoutSeconds = 30
)

// ResolvedWebhook is a WebhookConfig (spec.md §3) with its handler
// already constructed and its secrets already resolved from the
// environment.
type ResolvedWebhook struct {
	Name    string
	Path    string
	Kind    string
	Handler webhook.Handler
}

// DispatchEntry is one row of the dispatch table: a webhook and the
// subset of rules that reference it.
type DispatchEntry struct {
	Webhook ResolvedWebhook
	Rules   []*rule.Rule
}

// Config is the fully-resolved, immutable configuration the rest of
// the service runs against (spec.md §3, "Dispatch table").
type Config struct {
	ListenAddress string
	DrainTimeout  time.Duration
	DispatchTable map[string]DispatchEntry

	// Env holds every environment variable named by a *FromEnv
	// configuration key, resolved once at load time. This — and
	// nothing broader — is what the template engine's `env.*` lookups
	// see, per spec.md §4.5.
	Env map[string]string
}

func build(raw rawDocuments) (*Config, error) {
	cfg := &Config{
		ListenAddress: defaultListenAddress,
		DrainTimeout:  defaultDrainTimeoutSeconds * time.Second,
		DispatchTable: make(map[string]DispatchEntry),
		Env:           make(map[string]string),
	}
	if raw.server.Spec.ListenAddress != "" {
		cfg.ListenAddress = raw.server.Spec.ListenAddress
	}
	if raw.server.Spec.DrainTimeoutSeconds > 0 {
		cfg.DrainTimeout = time.Duration(raw.server.Spec.DrainTimeoutSeconds) * time.Second
	}

	resolvedByName := make(map[string]ResolvedWebhook, len(raw.webhooks))
	pathToName := make(map[string]string, len(raw.webhooks))
	for name, doc := range raw.webhooks {
		rw, err := resolveWebhook(name, doc, cfg.Env)
		if err != nil {
			return nil, err
		}
		if reservedPaths[rw.Path] {
			return nil, fmt.Errorf("config: webhook %q path %q collides with a reserved path", name, rw.Path)
		}
		if existing, dup := pathToName[rw.Path]; dup {
			return nil, fmt.Errorf("config: webhooks %q and %q both claim path %q", existing, name, rw.Path)
		}
		pathToName[rw.Path] = name
		resolvedByName[name] = rw
		cfg.DispatchTable[rw.Path] = DispatchEntry{Webhook: rw}
	}

	var allRules []*rule.Rule
	for docName, specs := range raw.rules {
		for _, spec := range specs {
			r, err := buildRule(spec, resolvedByName)
			if err != nil {
				return nil, fmt.Errorf("config: rules document %q: %w", docName, err)
			}
			allRules = append(allRules, r)
		}
	}

	for path, entry := range cfg.DispatchTable {
		var rules []*rule.Rule
		for _, r := range allRules {
			if _, ok := r.Webhooks[entry.Webhook.Name]; ok {
				rules = append(rules, r)
			}
		}
		entry.Rules = rules
		cfg.DispatchTable[path] = entry
	}

	return cfg, nil
}

func resolveWebhook(name string, doc webhookDocument, env map[string]string) (ResolvedWebhook, error) {
	if doc.Spec.Path == "" {
		return ResolvedWebhook{}, fmt.Errorf("config: webhook %q: path is required", name)
	}

	token, err := resolveAndTrack(env, doc.Spec.Auth.TokenFromEnv)
	if err != nil {
		return ResolvedWebhook{}, fmt.Errorf("config: webhook %q: %w", name, err)
	}

	var h webhook.Handler
	switch doc.Spec.Kind {
	case webhook.KindBitbucket:
		bh, err := buildBitbucketHandler(name, token, doc.Spec.API, env)
		if err != nil {
			return ResolvedWebhook{}, err
		}
		h = bh
	case webhook.KindGitHub:
		gh, err := buildGitHubHandler(name, token, doc.Spec.GitHub, env)
		if err != nil {
			return ResolvedWebhook{}, err
		}
		h = gh
	default:
		return ResolvedWebhook{}, fmt.Errorf("config: webhook %q: unsupported kind %q", name, doc.Spec.Kind)
	}

	return ResolvedWebhook{Name: name, Path: doc.Spec.Path, Kind: doc.Spec.Kind, Handler: h}, nil
}

// resolveAndTrack resolves varName and, when non-empty, records it in
// env so the template engine's `env.*` context can later see it —
// this is the one place configuration reaches into the process
// environment, per spec.md §4.5's allowlist requirement.
func resolveAndTrack(env map[string]string, varName string) (string, error) {
	v, err := resolveEnv(varName)
	if err != nil {
		return "", err
	}
	if varName != "" {
		env[varName] = v
	}
	return v, nil
}

func buildBitbucketHandler(name, token string, api *bitbucketAPISpec, env map[string]string) (*webhook.BitbucketHandler, error) {
	cfg := webhook.BitbucketConfig{Token: token}
	if api != nil {
		username, err := resolveAndTrack(env, api.UsernameFromEnv)
		if err != nil {
			return nil, fmt.Errorf("config: webhook %q: %w", name, err)
		}
		apiToken, err := resolveAndTrack(env, api.TokenFromEnv)
		if err != nil {
			return nil, fmt.Errorf("config: webhook %q: %w", name, err)
		}
		cfg.API = &webhook.BitbucketAPIConfig{
			BaseURL:  api.BaseURL,
			Project:  api.Project,
			RepoSlug: api.RepoSlug,
			Username: username,
			Token:    apiToken,
		}
	}
	return webhook.NewBitbucketHandler(cfg), nil
}

func buildGitHubHandler(name, webhookSecret string, gh *githubAppSpec, env map[string]string) (*webhook.GitHubHandler, error) {
	cfg := webhook.GitHubConfig{WebhookSecret: webhookSecret}
	if gh != nil {
		pem, err := resolveAndTrack(env, gh.PrivateKeyFromEnv)
		if err != nil {
			return nil, fmt.Errorf("config: webhook %q: %w", name, err)
		}
		cfg.AppID = gh.AppID
		cfg.PrivateKeyPEM = []byte(pem)
		cfg.APIBaseURL = gh.APIBaseURL
	}
	return webhook.NewGitHubHandler(cfg), nil
}

func buildRule(spec ruleSpec, webhooks map[string]ResolvedWebhook) (*rule.Rule, error) {
	if len(spec.Webhooks) == 0 {
		return nil, fmt.Errorf("rule %q: webhooks must be non-empty", spec.Name)
	}
	if len(spec.EventTypes) == 0 {
		return nil, fmt.Errorf("rule %q: eventTypes must be non-empty", spec.Name)
	}
	if len(spec.Actions) == 0 {
		return nil, fmt.Errorf("rule %q: actions must be non-empty", spec.Name)
	}

	webhookSet := make(map[string]struct{}, len(spec.Webhooks))
	for _, wn := range spec.Webhooks {
		if _, ok := webhooks[wn]; !ok {
			return nil, fmt.Errorf("rule %q: references unknown webhook %q", spec.Name, wn)
		}
		webhookSet[wn] = struct{}{}
	}

	eventTypeSet := make(map[event.Type]struct{}, len(spec.EventTypes))
	for _, et := range spec.EventTypes {
		t := event.Type(et)
		if !t.Valid() {
			return nil, fmt.Errorf("rule %q: unknown event type %q", spec.Name, et)
		}
		eventTypeSet[t] = struct{}{}
	}

	branches, err := buildFilter(spec.Branches)
	if err != nil {
		return nil, fmt.Errorf("rule %q: branches: %w", spec.Name, err)
	}
	paths, err := buildFilter(spec.Paths)
	if err != nil {
		return nil, fmt.Errorf("rule %q: paths: %w", spec.Name, err)
	}

	actions := make([]rule.Action, 0, len(spec.Actions))
	for i, as := range spec.Actions {
		a, err := buildAction(as)
		if err != nil {
			return nil, fmt.Errorf("rule %q: action %d: %w", spec.Name, i, err)
		}
		actions = append(actions, a)
	}

	return &rule.Rule{
		Name:        spec.Name,
		Description: spec.Description,
		Webhooks:    webhookSet,
		EventTypes:  eventTypeSet,
		Branches:    branches,
		Paths:       paths,
		Actions:     actions,
	}, nil
}

func buildFilter(specs []patternSpec) (filter.Filter, error) {
	f := make(filter.Filter, 0, len(specs))
	for _, s := range specs {
		p, err := buildPattern(s)
		if err != nil {
			return nil, err
		}
		f = append(f, p)
	}
	if err := filter.Compile(f); err != nil {
		return nil, err
	}
	return f, nil
}

func buildPattern(s patternSpec) (pattern.Spec, error) {
	set := 0
	if s.Exact != "" {
		set++
	}
	if s.Glob != "" {
		set++
	}
	if s.Regex != "" {
		set++
	}
	if set != 1 {
		return pattern.Spec{}, fmt.Errorf("pattern must set exactly one of exact/glob/regex, got %d", set)
	}
	switch {
	case s.Exact != "":
		return pattern.Exact(s.Exact), nil
	case s.Glob != "":
		return pattern.Glob(s.Glob), nil
	default:
		return pattern.Regex(s.Regex)
	}
}

func buildAction(s actionSpec) (rule.Action, error) {
	if (s.Http == nil) == (s.Shell == nil) {
		return rule.Action{}, fmt.Errorf("action must set exactly one of http/shell")
	}
	if s.Http != nil {
		a := &rule.HTTPAction{
			URL:            s.Http.URL,
			Method:         s.Http.Method,
			Headers:        s.Http.Headers,
			TimeoutSeconds: s.Http.TimeoutSeconds,
		}
		if s.Http.Body != nil {
			a.Body = *s.Http.Body
			a.HasBody = true
		}
		return rule.Action{HTTP: a}, nil
	}
	return rule.Action{Shell: &rule.ShellAction{
		Command:        s.Shell.Command,
		WorkingDir:     s.Shell.WorkingDir,
		Environment:    s.Shell.Environment,
		TimeoutSeconds: s.Shell.TimeoutSeconds,
	}}, nil
}
