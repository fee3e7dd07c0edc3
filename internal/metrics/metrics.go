// Package metrics holds the Prometheus collectors for the web frontend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "microloan_web"

// Metrics groups the collectors on a private registry so tests can build
// isolated instances.
type Metrics struct {
	Registry           *prometheus.Registry
	APIRequests        *prometheus.CounterVec
	APILatency         *prometheus.HistogramVec
	RoleLookupFailures prometheus.Counter
	HTTPRequests       *prometheus.CounterVec
	GuardDecisions     *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Backend API calls by endpoint and status class.",
		}, []string{"endpoint", "status"}),
		APILatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Backend API call latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		RoleLookupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_lookup_failures_total",
			Help:      "Role lookups that failed and fell back to least privilege.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Served HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		GuardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_decisions_total",
			Help:      "Route guard outcomes.",
		}, []string{"decision"}),
	}
	m.Registry.MustRegister(m.APIRequests, m.APILatency, m.RoleLookupFailures, m.HTTPRequests, m.GuardDecisions)
	return m
}

// ObserveAPI records one backend call. status 0 means a transport error.
func (m *Metrics) ObserveAPI(endpoint string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(endpoint, statusClass(status)).Inc()
	m.APILatency.WithLabelValues(endpoint).Observe(took.Seconds())
}

// RoleLookupFailed counts a failed role lookup.
func (m *Metrics) RoleLookupFailed() {
	if m == nil {
		return
	}
	m.RoleLookupFailures.Inc()
}

// Guard counts a route guard decision.
func (m *Metrics) Guard(decision string) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(decision).Inc()
}

// ObserveHTTP counts a served request.
func (m *Metrics) ObserveHTTP(method string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func statusClass(code int) string {
	switch {
	case code == 0:
		return "error"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
