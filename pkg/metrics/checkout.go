package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics tracks saga outcomes and per-step latency.
type CheckoutMetrics struct {
	outcomes *prometheus.CounterVec
	steps    *prometheus.HistogramVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_outcomes_total",
		Help: "Checkout sessions that reached a terminal state.",
	}, []string{"state"})
	steps := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_step_duration_seconds",
		Help:    "Latency of each network step of the checkout saga.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"step"})
	reg.MustRegister(outcomes, steps)
	return &CheckoutMetrics{outcomes: outcomes, steps: steps}
}

func (c *CheckoutMetrics) IncOutcome(state string) {
	if c == nil || c.outcomes == nil {
		return
	}
	c.outcomes.WithLabelValues(normalizeLabel(state)).Inc()
}

func (c *CheckoutMetrics) ObserveStep(step string, d time.Duration) {
	if c == nil || c.steps == nil {
		return
	}
	c.steps.WithLabelValues(normalizeLabel(step)).Observe(d.Seconds())
}
