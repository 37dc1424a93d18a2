package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordEnrichment(EnrichmentApplied)
	m.RecordEnrichment(EnrichmentApplied)
	m.RecordEnrichment(EnrichmentFailed)
	m.RecordAssignments("manual", 3)
	m.RecordAssignments("manual", 0)
	m.RecordSLAAlert("critical")
	m.RecordRequest("/api/tickets", "GET", 200, 15*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.enrichments.WithLabelValues(EnrichmentApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.enrichments.WithLabelValues(EnrichmentFailed)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.assigned.WithLabelValues("manual")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.slaAlerts.WithLabelValues("critical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/tickets", "GET", "200")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordEnrichment(EnrichmentPanic)
		m.RecordRequest("/", "GET", 500, time.Second)
		m.RecordError("/", "GET", "INTERNAL_ERROR")
		m.RecordAssignments("cron", 1)
		m.RecordSLAAlert("breached")
	})
}
