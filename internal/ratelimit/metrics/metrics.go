package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions   *prometheus.CounterVec
	StoreErrors prometheus.Counter
	Pruned      prometheus.Counter
}

// New registers the rate limiter metrics on reg. A nil reg registers on the
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cashdesk_ratelimit_decisions_total",
			Help: "Deposit admission decisions by outcome",
		}, []string{"outcome"}),
		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashdesk_ratelimit_store_errors_total",
			Help: "Window store failures; each one rejects the request",
		}),
		Pruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashdesk_ratelimit_windows_pruned_total",
			Help: "Expired rate windows removed by the pruner",
		}),
	}
}

func (m *Metrics) RecordDecision(allowed bool) {
	if m == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.Decisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementStoreErrors() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}

func (m *Metrics) AddPruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Pruned.Add(float64(n))
}
