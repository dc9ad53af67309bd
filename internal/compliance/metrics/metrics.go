package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Outcomes     *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cashdesk_compliance_outcomes_total",
			Help: "Compliance gate outcomes by result",
		}, []string{"outcome"}),
		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cashdesk_compliance_step_duration_seconds",
			Help:    "Latency of each compliance collaborator call",
			Buckets: prometheus.DefBuckets,
		}, []string{"step"}),
	}
}

// Outcome labels.
const (
	OutcomeCleared     = "cleared"
	OutcomeKYCFailed   = "kyc_failed"
	OutcomeAMLFlagged  = "aml_flagged"
	OutcomeAMLError    = "aml_error"
	OutcomeInvalidDocs = "invalid_document"
)

func (m *Metrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveStep(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(step).Observe(d.Seconds())
}
