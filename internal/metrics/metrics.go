// Package metrics exposes the orchestrator's Prometheus collectors.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/buildswift/orchestrator/internal/models"
)

// Namespace prefixes every metric name.
const Namespace = "buildswift"

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Metrics holds the collectors. The zero value is not usable; call New.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	builds        *prometheus.CounterVec
	buildCost     prometheus.Counter
	webhookEvents *prometheus.CounterVec
	socialPosts   *prometheus.CounterVec
	logAppends    *prometheus.CounterVec
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the collectors on reg. Registering twice on the
// same registry reuses the existing collectors.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{registry: reg}

	m.httpRequests = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "http_requests_total",
		Help:      "Count of processed HTTP requests.",
	}, []string{"method", "route", "status"}))

	m.httpDuration = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Latency distribution of HTTP handlers.",
		Buckets:   histogramBuckets,
	}, []string{"method", "route"}))

	m.builds = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "builds_total",
		Help:      "Site builds by outcome.",
	}, []string{"outcome"}))

	m.buildCost = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "build_cost_usd_total",
		Help:      "Estimated generation spend in US dollars.",
	}))

	m.webhookEvents = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "webhook_events_total",
		Help:      "Verified payment webhook events by kind and outcome.",
	}, []string{"kind", "outcome"}))

	m.socialPosts = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "social_publish_total",
		Help:      "Social publish attempts by platform and outcome.",
	}, []string{"platform", "outcome"}))

	m.logAppends = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "applog_appends_total",
		Help:      "Records appended per log.",
	}, []string{"log"}))

	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTP records one handled request. route is the matched pattern, not
// the raw path.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveBuild records a finished build and its estimated cost.
func (m *Metrics) ObserveBuild(outcome string, costUSD float64) {
	m.builds.WithLabelValues(outcome).Inc()
	if costUSD > 0 {
		m.buildCost.Add(costUSD)
	}
}

// ObserveWebhook records a webhook event outcome.
func (m *Metrics) ObserveWebhook(kind models.EventKind, outcome string) {
	m.webhookEvents.WithLabelValues(string(kind), outcome).Inc()
}

// ObservePublish records a social publish attempt.
func (m *Metrics) ObservePublish(platform, outcome string) {
	m.socialPosts.WithLabelValues(platform, outcome).Inc()
}

// ObserveAppend records a successful log append.
func (m *Metrics) ObserveAppend(name models.LogName) {
	m.logAppends.WithLabelValues(string(name)).Inc()
}
