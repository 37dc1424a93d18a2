package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's prometheus collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	enrichments *prometheus.CounterVec
	assigned    *prometheus.CounterVec
	slaAlerts   *prometheus.CounterVec
}

// Enrichment outcomes.
const (
	EnrichmentApplied = "applied"
	EnrichmentSkipped = "skipped"
	EnrichmentFailed  = "failed"
	EnrichmentPanic   = "panic"
)

// NewMetrics registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "HTTP errors by domain error code.",
		}, []string{"path", "method", "code"}),
		enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_enrichments_total",
			Help: "Background enrichment attempts by outcome.",
		}, []string{"outcome"}),
		assigned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_assignments_total",
			Help: "Tickets assigned by scheduling passes.",
		}, []string{"trigger"}),
		slaAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_alerts_total",
			Help: "SLA breach alerts emitted by severity.",
		}, []string{"severity"}),
	}
	m.Registry.MustRegister(m.requests, m.latency, m.errors, m.enrichments, m.assigned, m.slaAlerts)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordEnrichment counts one enrichment outcome.
func (m *Metrics) RecordEnrichment(outcome string) {
	if m == nil {
		return
	}
	m.enrichments.WithLabelValues(outcome).Inc()
}

// RecordAssignments counts tickets assigned by one pass.
func (m *Metrics) RecordAssignments(trigger string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.assigned.WithLabelValues(trigger).Add(float64(count))
}

// RecordSLAAlert counts one emitted SLA alert.
func (m *Metrics) RecordSLAAlert(severity string) {
	if m == nil {
		return
	}
	m.slaAlerts.WithLabelValues(severity).Inc()
}
