package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the service's Prometheus collectors. All methods are safe on a
// nil receiver so tests can pass nil.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	errors          *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	feedSessions    prometheus.Gauge
	contactRequests *prometheus.CounterVec
	overdueMarked   prometheus.Counter
}

// NewMetrics registers collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_errors_total",
			Help: "HTTP errors by route, method and error code.",
		}, []string{"route", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		feedSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portal_feed_sessions",
			Help: "Open live message feed sessions.",
		}),
		contactRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_contact_submissions_total",
			Help: "Contact form submissions by outcome.",
		}, []string{"outcome"}),
		overdueMarked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_invoices_marked_overdue_total",
			Help: "Invoices moved to overdue by the sweep job.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.errors, m.latency, m.feedSessions, m.contactRequests, m.overdueMarked,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// FeedOpened tracks a new live feed session.
func (m *Metrics) FeedOpened() {
	if m == nil {
		return
	}
	m.feedSessions.Inc()
}

// FeedClosed tracks a finished live feed session.
func (m *Metrics) FeedClosed() {
	if m == nil {
		return
	}
	m.feedSessions.Dec()
}

// RecordContact counts a contact submission outcome: sent, invalid, failed, limited.
func (m *Metrics) RecordContact(outcome string) {
	if m == nil {
		return
	}
	m.contactRequests.WithLabelValues(outcome).Inc()
}

// RecordOverdue counts invoices moved to overdue.
func (m *Metrics) RecordOverdue(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.overdueMarked.Add(float64(n))
}
