package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Outcome labels.
const (
	OutcomeCompleted   = "completed"
	OutcomeRejected    = "rejected"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

type Metrics struct {
	Outcomes        *prometheus.CounterVec
	DepositedAmount *prometheus.CounterVec
	Duration        prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cashdesk_deposits_total",
			Help: "Deposit attempts by outcome and rejection reason",
		}, []string{"outcome", "reason"}),
		DepositedAmount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cashdesk_deposited_amount_total",
			Help: "Sum of completed deposit amounts by channel",
		}, []string{"channel"}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cashdesk_deposit_duration_seconds",
			Help:    "End-to-end deposit processing latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) RecordOutcome(outcome, reason string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome, reason).Inc()
}

func (m *Metrics) AddDeposited(channel string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.DepositedAmount.WithLabelValues(channel).Add(amount.InexactFloat64())
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.Duration.Observe(d.Seconds())
}
