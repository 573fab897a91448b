// Package metrics holds the Prometheus collectors exported on /metrics.
//
// Collectors are registered on the Registerer passed to New so tests can use
// a private registry. Each method matches the observer hook of the component
// it instruments:
//
//	m := metrics.New(prometheus.DefaultRegisterer)
//	limits.WithObserver(m.LimitDecision)
//	async.WithObserver(m.TaskOutcome)
//	webhook.WithAttemptObserver(m.WebhookAttempt)
//	realtime.WithPublishHook(m.ChangePublished)
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cenety/saascore/pkg/async"
	"github.com/cenety/saascore/pkg/limits"
	"github.com/cenety/saascore/pkg/webhook"
)

const namespace = "saascore"

type Collector struct {
	limitChecks     *prometheus.CounterVec
	webhookAttempts *prometheus.CounterVec
	webhookDuration *prometheus.HistogramVec
	changes         *prometheus.CounterVec
	tasks           *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		limitChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "limit_checks_total",
			Help:      "Plan limit checks by resource and outcome (allowed, denied, degraded, unlimited).",
		}, []string{"resource", "outcome"}),
		webhookAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "attempts_total",
			Help:      "Webhook delivery attempts by event and result.",
		}, []string{"event", "result"}),
		webhookDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "attempt_duration_seconds",
			Help:      "Webhook delivery attempt latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"event"}),
		changes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "changes_published_total",
			Help:      "Database change envelopes published by topic.",
		}, []string{"topic"}),
		tasks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "async",
			Name:      "tasks_total",
			Help:      "Best-effort tasks by kind and outcome.",
		}, []string{"kind", "outcome"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// LimitDecision satisfies limits.Observer.
func (c *Collector) LimitDecision(_ context.Context, d limits.Decision) {
	c.limitChecks.WithLabelValues(string(d.Resource), outcome(d)).Inc()
}

func outcome(d limits.Decision) string {
	switch {
	case d.Degraded:
		return "degraded"
	case d.Unlimited():
		return "unlimited"
	case d.Allowed:
		return "allowed"
	default:
		return "denied"
	}
}

func (c *Collector) WebhookAttempt(e webhook.Event, a webhook.Attempt) {
	result := "success"
	switch {
	case a.Err == nil:
	case a.StatusCode == 0:
		result = "error"
	default:
		result = strconv.Itoa(a.StatusCode/100) + "xx"
	}
	c.webhookAttempts.WithLabelValues(string(e), result).Inc()
	if a.Duration > 0 {
		c.webhookDuration.WithLabelValues(string(e)).Observe(a.Duration.Seconds())
	}
}

func (c *Collector) ChangePublished(topic string) {
	c.changes.WithLabelValues(topic).Inc()
}

// TaskOutcome satisfies the async runner observer. Task names are
// "<kind>:<detail>"; only the kind becomes a label.
func (c *Collector) TaskOutcome(name string, o async.Outcome) {
	kind, _, _ := strings.Cut(name, ":")
	c.tasks.WithLabelValues(kind, string(o)).Inc()
}

// HTTPRequest records one served request. route should be the router
// pattern, never the raw path.
func (c *Collector) HTTPRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves g in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
