// Package config loads the YAML documents describing a running
// git-actions instance (spec.md §6): a single Server document naming
// the config-file globs, and any number of Webhook and Rules documents
// matched by those globs. Loading is deliberately permissive about
// YAML syntax itself (parsing is treated as an external collaborator
// per spec.md §1) and strict about the schema invariants spec.md §3
// names.
package config

// docHeader is the apiVersion/kind pair every document kind shares,
// decoded first to dispatch the rest of the document's parsing.
type docHeader struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	Metadata   struct {
		Name string `yaml:"name"`
	} `yaml:"metadata"`
}

const supportedAPIVersion = "git-actions/v1"

const (
	kindServer  = "Server"
	kindWebhook = "Webhook"
	kindRules   = "Rules"
)

// serverDocument is the Server-kind document: names the globs the
// other two document kinds are loaded from, and server-wide settings.
type serverDocument struct {
	docHeader `yaml:",inline"`
	Spec      struct {
		Configs             []string `yaml:"configs"`
		ListenAddress        string   `yaml:"listenAddress"`
		DrainTimeoutSeconds  int      `yaml:"drainTimeoutSeconds"`
	} `yaml:"spec"`
}

// authSpec names the environment variable a shared secret is resolved
// from — configuration never carries a secret literal.
type authSpec struct {
	TokenFromEnv string `yaml:"tokenFromEnv"`
}

// bitbucketAPISpec is the optional enrichment configuration for a
// bitbucket-kind webhook.
type bitbucketAPISpec struct {
	BaseURL         string `yaml:"baseUrl"`
	Project         string `yaml:"project"`
	RepoSlug        string `yaml:"repoSlug"`
	UsernameFromEnv string `yaml:"usernameFromEnv"`
	TokenFromEnv    string `yaml:"tokenFromEnv"`
}

// githubAppSpec is the optional GitHub App configuration used by the
// bonus github-kind webhook's enrichment call.
type githubAppSpec struct {
	AppID              int64  `yaml:"appId"`
	PrivateKeyFromEnv  string `yaml:"privateKeyFromEnv"`
	APIBaseURL         string `yaml:"apiBaseUrl"`
}

// webhookDocument is the Webhook-kind document: one per configured
// ingress path.
type webhookDocument struct {
	docHeader `yaml:",inline"`
	Spec      struct {
		Path  string            `yaml:"path"`
		Kind  string            `yaml:"kind"`
		Auth  authSpec          `yaml:"auth"`
		API   *bitbucketAPISpec `yaml:"api"`
		GitHub *githubAppSpec   `yaml:"github"`
	} `yaml:"spec"`
}

// patternSpec is the YAML shape of a PatternSpec: exactly one of
// exact/glob/regex must be set, enforced by buildFilter.
type patternSpec struct {
	Exact string `yaml:"exact"`
	Glob  string `yaml:"glob"`
	Regex string `yaml:"regex"`
}

// httpActionSpec is the YAML shape of an Http action.
type httpActionSpec struct {
	URL            string            `yaml:"url"`
	Method         string            `yaml:"method"`
	Headers        map[string]string `yaml:"headers"`
	Body           *string           `yaml:"body"`
	TimeoutSeconds int               `yaml:"timeoutSeconds"`
}

// shellActionSpec is the YAML shape of a Shell action.
type shellActionSpec struct {
	Command        string            `yaml:"command"`
	WorkingDir     string            `yaml:"workingDir"`
	Environment    map[string]string `yaml:"environment"`
	TimeoutSeconds int               `yaml:"timeoutSeconds"`
}

// actionSpec is a tagged union: exactly one of Http/Shell is set.
type actionSpec struct {
	Http  *httpActionSpec  `yaml:"http"`
	Shell *shellActionSpec `yaml:"shell"`
}

// ruleSpec is one entry of a Rules document's spec.rules list.
type ruleSpec struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Webhooks    []string       `yaml:"webhooks"`
	EventTypes  []string       `yaml:"eventTypes"`
	Branches    []patternSpec  `yaml:"branches"`
	Paths       []patternSpec  `yaml:"paths"`
	Actions     []actionSpec   `yaml:"actions"`
}

// rulesDocument is the Rules-kind document: a named list of rules.
type rulesDocument struct {
	docHeader `yaml:",inline"`
	Spec      struct {
		Rules []ruleSpec `yaml:"rules"`
	} `yaml:"spec"`
}
