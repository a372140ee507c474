package action

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/acfabro/git-actions/internal/actionlog"
	"github.com/acfabro/git-actions/internal/gatmpl"
	"github.com/acfabro/git-actions/internal/rule"
)

// Executor runs the actions of matched rules. One Executor is shared
// across the whole service — its HTTP client pools connections, per
// spec.md §5 ("the outbound HTTP client is a shared connection-pooling
// instance").
type Executor struct {
	httpClient *http.Client
	recorder   *actionlog.Recorder
}

// NewExecutor builds an Executor. recorder may be nil, in which case
// outcomes are computed but not persisted — useful for tests.
func NewExecutor(recorder *actionlog.Recorder) *Executor {
	return &Executor{httpClient: newHTTPClient(), recorder: recorder}
}

// RunRule executes every action of a matched rule in declaration
// order, on the caller's goroutine — the dispatcher is responsible for
// running this inside its own per-matched-rule background task. An
// individual action's failure is recorded and does not stop the
// remaining actions in the rule, per spec.md §4.6. deliveryID
// correlates every recorded outcome back to the delivery that
// triggered it; it is the dispatcher-assigned uuid, not provider data.
func (e *Executor) RunRule(ctx context.Context, deliveryID, webhookName string, r *rule.Rule, tmplCtx gatmpl.Context) []Result {
	results := make([]Result, 0, len(r.Actions))
	for _, a := range r.Actions {
		res := e.runOne(ctx, a, tmplCtx)
		e.record(deliveryID, webhookName, r.Name, res)
		results = append(results, res)
	}
	return results
}

func (e *Executor) runOne(ctx context.Context, a rule.Action, tmplCtx gatmpl.Context) Result {
	switch {
	case a.HTTP != nil:
		res, err := runHTTP(ctx, e.httpClient, a.HTTP, tmplCtx)
		if err != nil {
			return Result{Kind: "http", Success: false, Err: err}
		}
		return res
	case a.Shell != nil:
		res, err := runShell(ctx, a.Shell, tmplCtx)
		if err != nil {
			return Result{Kind: "shell", Success: false, Err: err}
		}
		return res
	default:
		return Result{Kind: "unknown", Success: false, Err: fmt.Errorf("action: neither HTTP nor Shell populated")}
	}
}

func (e *Executor) record(deliveryID, webhookName, ruleName string, res Result) {
	if e.recorder == nil {
		return
	}
	outcome := actionlog.Outcome{
		Timestamp:   time.Now(),
		DeliveryID:  deliveryID,
		WebhookName: webhookName,
		RuleName:    ruleName,
		ActionKind:  res.Kind,
		Success:     res.Success,
		DurationMS:  res.DurationMS,
		StatusCode:  res.StatusCode,
		ExitCode:    res.ExitCode,
		Output:      res.Output,
	}
	if res.Err != nil {
		outcome.Error = res.Err.Error()
	}
	if err := e.recorder.Record(outcome); err != nil {
		log.Printf("action: recording outcome of rule %s: %v", ruleName, err)
	}
}
