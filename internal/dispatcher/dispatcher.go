// Package dispatcher implements spec.md §4.7: the glue between the
// HTTP front end and every other component. One Dispatcher is built
// from a loaded config.Config and lives for the process lifetime.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/acfabro/git-actions/internal/action"
	"github.com/acfabro/git-actions/internal/config"
	"github.com/acfabro/git-actions/internal/event"
	"github.com/acfabro/git-actions/internal/gatmpl"
	"github.com/acfabro/git-actions/internal/rule"
	"github.com/acfabro/git-actions/internal/webhook"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Result is what the HTTP front end turns into a response: a status
// code and a small JSON-able body.
type Result struct {
	StatusCode int
	Body       map[string]interface{}
}

// Dispatcher routes deliveries to the right webhook handler, evaluates
// rules, and schedules matched rules' actions in the background. The
// dispatch table, including each entry's handler, is read-only after
// construction and safe for concurrent use across many deliveries.
type Dispatcher struct {
	table    map[string]config.DispatchEntry
	env      map[string]string
	executor *action.Executor
	metrics  *Metrics

	wg sync.WaitGroup
}

// New builds a Dispatcher from a loaded Config and a shared action
// Executor. registry is where dispatcher metrics are registered —
// pass prometheus.DefaultRegisterer in production, a fresh registry in
// tests.
func New(cfg *config.Config, executor *action.Executor, registry prometheus.Registerer) *Dispatcher {
	return &Dispatcher{
		table:    cfg.DispatchTable,
		env:      cfg.Env,
		executor: executor,
		metrics:  NewMetrics(registry),
	}
}

// HandleDelivery implements spec.md §4.7's seven-step algorithm. It
// returns once the HTTP response is determined — matched rules'
// actions keep running on tracked background goroutines.
func (d *Dispatcher) HandleDelivery(ctx context.Context, path string, body []byte, headers http.Header) Result {
	entry, ok := d.table[path]
	if !ok {
		return Result{StatusCode: http.StatusNotFound, Body: map[string]interface{}{"status": "no such webhook path"}}
	}

	d.metrics.received(entry.Webhook.Name)

	if err := entry.Webhook.Handler.Authenticate(body, headers); err != nil {
		d.metrics.authFailed(entry.Webhook.Name)
		return Result{StatusCode: http.StatusUnauthorized, Body: map[string]interface{}{"status": "unauthorized"}}
	}

	ev, err := entry.Webhook.Handler.Parse(ctx, body, headers)
	if err != nil {
		var unsupported *webhook.UnsupportedEventKindError
		if errors.As(err, &unsupported) {
			d.metrics.ignored(entry.Webhook.Name)
			return Result{StatusCode: http.StatusOK, Body: map[string]interface{}{"status": "ignored"}}
		}
		d.metrics.parseFailed(entry.Webhook.Name)
		return Result{StatusCode: http.StatusBadRequest, Body: map[string]interface{}{"status": "parse error", "error": err.Error()}}
	}
	ev = ev.WithWebhookName(entry.Webhook.Name)

	matched := matchRules(ev, entry.Rules)
	if len(matched) == 0 {
		d.metrics.unmatched(entry.Webhook.Name)
	} else {
		d.metrics.matched(entry.Webhook.Name)
	}

	deliveryID := uuid.NewString()
	d.scheduleActions(deliveryID, entry.Webhook.Name, ev, matched)

	return Result{
		StatusCode: http.StatusAccepted,
		Body: map[string]interface{}{
			"status":        "accepted",
			"delivery_id":   deliveryID,
			"matched_rules": len(matched),
		},
	}
}

func matchRules(ev *event.Event, rules []*rule.Rule) []*rule.Rule {
	var matched []*rule.Rule
	for _, r := range rules {
		if rule.Matches(ev, r) {
			matched = append(matched, r)
		}
	}
	return matched
}

// scheduleActions spawns one background task per matched rule, per
// spec.md §4.7 step 6 — the HTTP response does not wait for these.
func (d *Dispatcher) scheduleActions(deliveryID, webhookName string, ev *event.Event, matched []*rule.Rule) {
	if len(matched) == 0 {
		return
	}

	tmplEvent, err := ev.TemplateContext()
	if err != nil {
		log.Printf("dispatcher: building template context for %s: %v", webhookName, err)
		return
	}
	tmplCtx := gatmpl.Context{Event: tmplEvent, Env: d.env}

	for _, r := range matched {
		d.wg.Add(1)
		go func(r *rule.Rule) {
			defer d.wg.Done()
			results := d.executor.RunRule(context.Background(), deliveryID, webhookName, r, tmplCtx)
			for _, res := range results {
				if !res.Success {
					d.metrics.actionError(webhookName, r.Name)
				}
			}
		}(r)
	}
}

// Drain waits for in-flight action tasks to finish, up to timeout.
// Surviving shell children are already being escalated to SIGKILL by
// their own action timeouts (internal/action); Drain only bounds how
// long graceful shutdown waits on the Go-level tasks themselves.
func (d *Dispatcher) Drain(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("dispatcher: drain timed out after %s with action tasks still running", timeout)
	}
}
