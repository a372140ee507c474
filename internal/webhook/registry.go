package webhook

import "fmt"

// Supported provider kinds, matching WebhookConfig.Kind (spec.md §3).
const (
	KindBitbucket = "bitbucket"
	KindGitHub    = "github"
)

// Registry maps a configured webhook's name to the Handler built for
// it. internal/config and the dispatcher do not use it: the dispatcher
// reaches each handler through its config.DispatchEntry.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler under the given webhook name. Registering a
// second handler under the same name is a configuration error.
func (r *Registry) Register(webhookName string, h Handler) error {
	if _, exists := r.handlers[webhookName]; exists {
		return fmt.Errorf("webhook: duplicate handler registered for webhook %q", webhookName)
	}
	r.handlers[webhookName] = h
	return nil
}

// Lookup returns the handler registered for webhookName, if any.
func (r *Registry) Lookup(webhookName string) (Handler, bool) {
	h, ok := r.handlers[webhookName]
	return h, ok
}
