// Package metrics exposes Prometheus collectors for the auth flows, HTTP layer
// and cleanup janitor.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "session_auth"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry     *prometheus.Registry
	flowTotal    *prometheus.CounterVec
	flowDuration *prometheus.HistogramVec
	tokenReuse   prometheus.Counter
	purged       *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	rateLimited  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		flowTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_operations_total",
			Help:      "Auth flow operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		flowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_duration_seconds",
			Help:      "Auth flow latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		tokenReuse: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_token_reuse_total",
			Help:      "Refresh tokens presented again after being rotated.",
		}),
		purged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purged_rows_total",
			Help:      "Expired rows removed by the cleanup janitor.",
		}, []string{"kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-IP rate limiter.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.flowTotal,
		m.flowDuration,
		m.tokenReuse,
		m.purged,
		m.httpRequests,
		m.rateLimited,
	)
	return m
}

// ObserveFlow records one finished auth flow operation.
func (m *Metrics) ObserveFlow(op, outcome string, elapsed time.Duration) {
	m.flowTotal.WithLabelValues(op, outcome).Inc()
	m.flowDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	if outcome == "reused" {
		m.tokenReuse.Inc()
	}
}

// ObservePurge records rows removed by a cleanup sweep.
func (m *Metrics) ObservePurge(kind string, removed int64) {
	m.purged.WithLabelValues(kind).Add(float64(removed))
}

func (m *Metrics) ObserveRequest(route string, code int) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (m *Metrics) ObserveRateLimited() {
	m.rateLimited.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// FlowTotal exposes the flow counter for assertions in tests.
func (m *Metrics) FlowTotal() *prometheus.CounterVec {
	return m.flowTotal
}

func (m *Metrics) TokenReuse() prometheus.Counter {
	return m.tokenReuse
}
