package dispatcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the atomic counters spec.md §4.7 requires the
// dispatcher to update on every delivery, plus the uptime gauge
// §4.8's /metrics endpoint exposes.
type Metrics struct {
	deliveries *prometheus.CounterVec
	actionErrs *prometheus.CounterVec
	startedAt  time.Time
}

// NewMetrics builds and registers the dispatcher's counters against
// registry. Passing a fresh prometheus.NewRegistry() in tests avoids
// colliding with the global default registry across test runs.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "git_actions_webhook_deliveries_total",
			Help: "Webhook deliveries processed, labeled by webhook name and outcome.",
		}, []string{"webhook", "outcome"}),
		actionErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "git_actions_action_errors_total",
			Help: "Action executions that failed, labeled by webhook and rule name.",
		}, []string{"webhook", "rule"}),
		startedAt: time.Now(),
	}
	registry.MustRegister(m.deliveries, m.actionErrs)
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "git_actions_uptime_seconds",
		Help: "Seconds since the service started.",
	}, func() float64 { return time.Since(m.startedAt).Seconds() }))
	return m
}

func (m *Metrics) received(webhookName string)     { m.deliveries.WithLabelValues(webhookName, "received").Inc() }
func (m *Metrics) authFailed(webhookName string)    { m.deliveries.WithLabelValues(webhookName, "auth_failed").Inc() }
func (m *Metrics) ignored(webhookName string)       { m.deliveries.WithLabelValues(webhookName, "ignored").Inc() }
func (m *Metrics) parseFailed(webhookName string)   { m.deliveries.WithLabelValues(webhookName, "parse_error").Inc() }
func (m *Metrics) matched(webhookName string)       { m.deliveries.WithLabelValues(webhookName, "matched").Inc() }
func (m *Metrics) unmatched(webhookName string)     { m.deliveries.WithLabelValues(webhookName, "unmatched").Inc() }
func (m *Metrics) actionError(webhookName, rule string) {
	m.actionErrs.WithLabelValues(webhookName, rule).Inc()
}
