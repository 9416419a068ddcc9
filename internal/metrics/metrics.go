package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics carries the live-path instrumentation. Counters are labeled by
// outcome so the dashboard can split accepted vs rejected decisions without
// reading the journal.
type Metrics struct {
	Decisions       *prometheus.CounterVec
	Rejections      *prometheus.CounterVec
	HaltState       prometheus.Gauge
	SizingSeconds   prometheus.Histogram
	DegradedChecks  prometheus.Counter
	MonitorSeverity prometheus.Gauge
}

// New registers the collectors on reg and returns them. Pass
// prometheus.NewRegistry() in tests to avoid default-registry collisions.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quantrisk",
			Name:      "sizing_decisions_total",
			Help:      "Sizing decisions produced, labeled by outcome.",
		}, []string{"outcome"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quantrisk",
			Name:      "risk_rejections_total",
			Help:      "Risk-manager rejections, labeled by reason code.",
		}, []string{"reason"}),
		HaltState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quantrisk",
			Name:      "drawdown_halt_active",
			Help:      "1 while the drawdown halt latch is engaged.",
		}),
		SizingSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quantrisk",
			Name:      "sizing_duration_seconds",
			Help:      "Wall time of the live sizing path.",
			Buckets:   prometheus.DefBuckets,
		}),
		DegradedChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quantrisk",
			Name:      "degradation_alerts_total",
			Help:      "Degradation checks that produced an alert.",
		}),
		MonitorSeverity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quantrisk",
			Name:      "degradation_severity",
			Help:      "Severity of the most recent degradation check (0=ok).",
		}),
	}

	reg.MustRegister(m.Decisions, m.Rejections, m.HaltState,
		m.SizingSeconds, m.DegradedChecks, m.MonitorSeverity)
	return m
}
