package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the access module.
type Metrics struct {
	// Authorization outcomes by capability and result
	Decisions *prometheus.CounterVec

	// Unknown-state fallbacks, by raw status value
	UnknownStates *prometheus.CounterVec

	// Full evaluation latency including state gathering
	EvaluateLatency prometheus.Histogram
}

// New creates a new Metrics instance with all access module metrics registered.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carebridge_access_decisions_total",
			Help: "Total authorization decisions by capability and result",
		}, []string{"capability", "result"}), // result: "allow", "deny", "bypass"

		UnknownStates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carebridge_access_unknown_states_total",
			Help: "Unrecognized completion statuses that hit the fail-closed branch",
		}, []string{"status"}),

		EvaluateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "carebridge_access_evaluate_duration_seconds",
			Help:    "Duration of access evaluation including state gathering",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementDecision records an authorization outcome.
func (m *Metrics) IncrementDecision(capability, result string) {
	if m != nil {
		m.Decisions.WithLabelValues(capability, result).Inc()
	}
}

// IncrementUnknownState records a fail-closed fallback for a raw status.
func (m *Metrics) IncrementUnknownState(status string) {
	if m != nil {
		m.UnknownStates.WithLabelValues(status).Inc()
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}
