package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/gosuda/attorney/internal/metrics"
)

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveMessage("fetch_document", "ok", time.Millisecond)
		m.QueueDelta(1)
		m.FlowStarted()
		m.FlowStopped()
		m.CountFinding("error")
		m.ResponseDiscarded()
		m.CountHandoff("representative_agent", "witness_agent")
	})
}

func TestMetricsRecord(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())

	m.ObserveMessage("validate_document", "ok", 10*time.Millisecond)
	m.ObserveMessage("validate_document", "ok", 10*time.Millisecond)
	m.CountFinding("warning")
	m.ResponseDiscarded()
	m.CountHandoff("representative_agent", "witness_agent")
	m.FlowStarted()
	m.QueueDelta(3)
	m.QueueDelta(-1)

	assert.InDelta(t, 2, testutil.ToFloat64(m.MessagesProcessed.WithLabelValues("validate_document", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Findings.WithLabelValues("warning")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DiscardedResponses), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Handoffs.WithLabelValues("representative_agent", "witness_agent")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ActiveFlows), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.QueueDepth), 0)
}
