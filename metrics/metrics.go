// Package metrics exposes the Prometheus collectors of the front-end.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	backendRequests *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	payments        *prometheus.CounterVec
	activeSessions  prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billpay",
			Name:      "http_requests_total",
			Help:      "Page requests served, by method, route template and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "billpay",
			Name:      "http_request_duration_seconds",
			Help:      "Page request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billpay",
			Name:      "backend_requests_total",
			Help:      "Calls to the bill backend, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "billpay",
			Name:      "backend_request_duration_seconds",
			Help:      "Bill backend call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billpay",
			Name:      "payments_submitted_total",
			Help:      "Payment submissions, by outcome.",
		}, []string{"outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "billpay",
			Name:      "browser_sessions",
			Help:      "Browser sessions currently held in memory.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.backendRequests,
		m.backendDuration,
		m.payments,
		m.activeSessions,
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTP records one served page request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveBackend records one backend call. Outcome is "ok", "error" or the
// HTTP status code of a rejected call.
func (m *Metrics) ObserveBackend(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.backendRequests.WithLabelValues(operation, outcome).Inc()
	m.backendDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// PaymentSubmitted counts a payment attempt.
func (m *Metrics) PaymentSubmitted(outcome string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(outcome).Inc()
}

// SetBrowserSessions reports the number of in-memory browser sessions.
func (m *Metrics) SetBrowserSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}
