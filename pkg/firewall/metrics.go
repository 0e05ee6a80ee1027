package firewall

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus instruments.
type Metrics struct {
	attempts  *prometheus.CounterVec
	decisions *prometheus.CounterVec
	duration  prometheus.Histogram
}

// NewMetrics creates and registers the pipeline metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "palisade_authentication_attempts_total",
				Help: "Authentication attempts by firewall, authenticator and result",
			},
			[]string{"firewall", "authenticator", "result"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "palisade_access_decisions_total",
				Help: "Access-control decisions by outcome",
			},
			[]string{"decision"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "palisade_pipeline_duration_seconds",
				Help:    "End-to-end pipeline latency per request",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.decisions, m.duration)
	}
	return m
}
