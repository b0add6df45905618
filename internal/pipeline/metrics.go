package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the pipeline. A nil receiver is safe
// so tests can run without a registry.
type Metrics struct {
	SamplesProcessed prometheus.Counter
	SamplesRejected  prometheus.Counter
	FlagsRaised      *prometheus.CounterVec
	GeofenceEvents   *prometheus.CounterVec
	Milestones       *prometheus.CounterVec
	TokensCreated    *prometheus.CounterVec
	TokenFailures    *prometheus.CounterVec
	ProcessDuration  prometheus.Histogram
}

// NewMetrics registers and returns the pipeline metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SamplesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainsense_pipeline_samples_processed_total",
			Help: "Total number of telemetry samples accepted by the pipeline",
		}),
		SamplesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainsense_pipeline_samples_rejected_total",
			Help: "Total number of telemetry samples dropped as malformed",
		}),
		FlagsRaised: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainsense_pipeline_flags_raised_total",
			Help: "Total number of consistency flags raised, by code",
		}, []string{"code"}),
		GeofenceEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainsense_pipeline_geofence_events_total",
			Help: "Total number of geofence crossings, by transition",
		}, []string{"transition"}),
		Milestones: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainsense_pipeline_milestones_total",
			Help: "Total number of milestones derived, by type",
		}, []string{"type"}),
		TokensCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainsense_pipeline_tokens_created_total",
			Help: "Total number of tokens created, by type",
		}, []string{"type"}),
		TokenFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainsense_pipeline_token_failures_total",
			Help: "Total number of token creation failures, by kind",
		}, []string{"kind"}),
		ProcessDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chainsense_pipeline_process_duration_seconds",
			Help:    "Wall time spent processing one telemetry sample",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncProcessed() {
	if m != nil {
		m.SamplesProcessed.Inc()
	}
}

func (m *Metrics) IncRejected() {
	if m != nil {
		m.SamplesRejected.Inc()
	}
}

func (m *Metrics) IncFlag(code string) {
	if m != nil {
		m.FlagsRaised.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) IncGeofenceEvent(transition string) {
	if m != nil {
		m.GeofenceEvents.WithLabelValues(transition).Inc()
	}
}

func (m *Metrics) IncMilestone(typ string) {
	if m != nil {
		m.Milestones.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) IncTokenCreated(typ string) {
	if m != nil {
		m.TokensCreated.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) IncTokenFailure(kind string) {
	if m != nil {
		m.TokenFailures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) ObserveProcessDuration(seconds float64) {
	if m != nil {
		m.ProcessDuration.Observe(seconds)
	}
}
