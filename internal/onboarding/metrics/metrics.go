package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the onboarding module.
type Metrics struct {
	// Step saves by step number and outcome
	StepSaves *prometheus.CounterVec

	// Profile submissions by outcome
	Submissions *prometheus.CounterVec
}

// New creates a new Metrics instance with all onboarding metrics registered.
func New() *Metrics {
	return &Metrics{
		StepSaves: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carebridge_onboarding_step_saves_total",
			Help: "Total step save attempts by step and outcome",
		}, []string{"step", "outcome"}), // outcome: "saved", "sequence_violation", "error"

		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carebridge_onboarding_submissions_total",
			Help: "Total profile submission attempts by outcome",
		}, []string{"outcome"}), // outcome: "created", "duplicate", "incomplete", "error"
	}
}

// IncrementStepSave records one step save attempt.
func (m *Metrics) IncrementStepSave(step int, outcome string) {
	if m != nil {
		m.StepSaves.WithLabelValues(strconv.Itoa(step), outcome).Inc()
	}
}

// IncrementSubmission records one submission attempt.
func (m *Metrics) IncrementSubmission(outcome string) {
	if m != nil {
		m.Submissions.WithLabelValues(outcome).Inc()
	}
}
