package metrics

import "github.com/prometheus/client_golang/prometheus"

// OrderMetrics counts order creation results and status transitions.
type OrderMetrics struct {
	created     *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Order create requests by result (created, replayed, rejected).",
	}, []string{"status"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Accepted order status transitions.",
	}, []string{"from", "to"})
	reg.MustRegister(created, transitions)
	return &OrderMetrics{created: created, transitions: transitions}
}

func (o *OrderMetrics) IncCreated(status string) {
	if o == nil || o.created == nil {
		return
	}
	o.created.WithLabelValues(normalizeLabel(status)).Inc()
}

func (o *OrderMetrics) IncTransition(from, to string) {
	if o == nil || o.transitions == nil {
		return
	}
	o.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}
