package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Transition outcomes recorded on case_transitions_total.
const (
	OutcomeCommitted   = "committed"
	OutcomeDenied      = "denied"
	OutcomeRequirement = "requirement_unmet"
	OutcomeFailed      = "failed"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	assignments *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "case_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "case_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "case_http_errors_total",
			Help: "HTTP error responses by error code.",
		}, []string{"code"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "case_transitions_total",
			Help: "Status transition attempts by source, target and outcome.",
		}, []string{"from", "to", "outcome"}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "case_assignments_total",
			Help: "Committed assignments, split by whether they advanced the status.",
		}, []string{"auto_transition"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "case_write_conflicts_total",
			Help: "Optimistic write conflicts by operation.",
		}, []string{"operation"}),
	}
	reg.MustRegister(m.requests, m.latency, m.errors, m.transitions, m.assignments, m.conflicts)
	return m
}

// RecordRequest counts a served request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError counts an error response.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(code).Inc()
}

// RecordTransition counts a transition attempt.
func (m *Metrics) RecordTransition(from, to, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to, outcome).Inc()
}

// RecordAssignment counts a committed assignment.
func (m *Metrics) RecordAssignment(autoTransition bool) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(strconv.FormatBool(autoTransition)).Inc()
}

// RecordConflict counts an optimistic write conflict.
func (m *Metrics) RecordConflict(operation string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(operation).Inc()
}
