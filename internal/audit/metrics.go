package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit pipeline. A nil receiver is
// safe so callers can skip metrics in tests.
type Metrics struct {
	Emitted         prometheus.Counter
	Dropped         prometheus.Counter
	PersistFailures prometheus.Counter
	RelayPublished  prometheus.Counter
	RelayFailures   prometheus.Counter
}

// NewMetrics registers and returns the audit metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Emitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainsense_audit_emitted_total",
			Help: "Total number of audit events accepted into the buffer",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainsense_audit_dropped_total",
			Help: "Total number of audit events dropped due to a full buffer",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainsense_audit_persist_failures_total",
			Help: "Total number of audit event persistence failures",
		}),
		RelayPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainsense_audit_relay_published_total",
			Help: "Total number of outbox entries published to Kafka",
		}),
		RelayFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainsense_audit_relay_failures_total",
			Help: "Total number of outbox publish failures",
		}),
	}
}

func (m *Metrics) IncEmitted() {
	if m != nil {
		m.Emitted.Inc()
	}
}

func (m *Metrics) IncDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) IncPersistFailures() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

func (m *Metrics) IncRelayPublished() {
	if m != nil {
		m.RelayPublished.Inc()
	}
}

func (m *Metrics) IncRelayFailures() {
	if m != nil {
		m.RelayFailures.Inc()
	}
}
