// Package metrics exposes Prometheus instrumentation for flows, audits and handoffs.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Messages processed by flows, by message type and outcome ("ok" or error kind)
	MessagesProcessed *prometheus.CounterVec

	// Time spent processing a single message
	ProcessLatency *prometheus.HistogramVec

	// Messages waiting in flow inboxes
	QueueDepth prometheus.Gauge

	// Running flows
	ActiveFlows prometheus.Gauge

	// Findings produced by audits, by type
	Findings *prometheus.CounterVec

	// Responses with no outstanding request
	DiscardedResponses prometheus.Counter

	// Handoffs by source and target agent
	Handoffs *prometheus.CounterVec
}

// New registers all metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MessagesProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attorney_flow_messages_total",
			Help: "Messages processed by document flows by type and outcome",
		}, []string{"type", "outcome"}),

		ProcessLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attorney_flow_process_duration_seconds",
			Help:    "Duration of processing one flow message",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10, 60},
		}, []string{"type"}),

		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "attorney_flow_queue_depth",
			Help: "Messages waiting in document flow inboxes",
		}),

		ActiveFlows: f.NewGauge(prometheus.GaugeOpts{
			Name: "attorney_flows_active",
			Help: "Number of running document flows",
		}),

		Findings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attorney_audit_findings_total",
			Help: "Findings produced by document audits by type",
		}, []string{"type"}),

		DiscardedResponses: f.NewCounter(prometheus.CounterOpts{
			Name: "attorney_correlation_discarded_total",
			Help: "Responses discarded because no request was outstanding",
		}),

		Handoffs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attorney_handoffs_total",
			Help: "Conversation handoffs by source and target agent",
		}, []string{"from", "to"}),
	}
}

func (m *Metrics) ObserveMessage(msgType, outcome string, d time.Duration) {
	if m != nil {
		m.MessagesProcessed.WithLabelValues(msgType, outcome).Inc()
		m.ProcessLatency.WithLabelValues(msgType).Observe(d.Seconds())
	}
}

func (m *Metrics) QueueDelta(delta float64) {
	if m != nil {
		m.QueueDepth.Add(delta)
	}
}

func (m *Metrics) FlowStarted() {
	if m != nil {
		m.ActiveFlows.Inc()
	}
}

func (m *Metrics) FlowStopped() {
	if m != nil {
		m.ActiveFlows.Dec()
	}
}

func (m *Metrics) CountFinding(findingType string) {
	if m != nil {
		m.Findings.WithLabelValues(findingType).Inc()
	}
}

func (m *Metrics) ResponseDiscarded() {
	if m != nil {
		m.DiscardedResponses.Inc()
	}
}

func (m *Metrics) CountHandoff(from, to string) {
	if m != nil {
		m.Handoffs.WithLabelValues(from, to).Inc()
	}
}
