package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordTransition("UNDER_REVIEW", "CLOSED", OutcomeCommitted)
	m.RecordTransition("UNDER_REVIEW", "CLOSED", OutcomeCommitted)
	m.RecordTransition("CREATED", "CLOSED", OutcomeDenied)
	m.RecordAssignment(true)
	m.RecordConflict("transition")
	m.RecordError("/api/cases", "POST", "POLICY_VIOLATION")
	m.RecordRequest("/api/cases/:id", "GET", 200, 15*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("UNDER_REVIEW", "CLOSED", OutcomeCommitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("CREATED", "CLOSED", OutcomeDenied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.assignments.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts.WithLabelValues("transition")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("POLICY_VIOLATION")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/cases/:id", "200")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTransition("a", "b", OutcomeFailed)
		m.RecordAssignment(false)
		m.RecordConflict("assign")
		m.RecordError("/", "GET", "X")
		m.RecordRequest("/", "GET", 500, time.Second)
	})
}
