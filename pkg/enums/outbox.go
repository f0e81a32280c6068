package enums

// OutboxAggregateType names the entity an outbox event describes.
type OutboxAggregateType string

const (
	AggregateOrder    OutboxAggregateType = "order"
	AggregateCheckout OutboxAggregateType = "checkout"
)

func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateOrder || a == AggregateCheckout
}

// OutboxEventType is the event_type column of outbox_events and the Pub/Sub
// event_type attribute.
type OutboxEventType string

const (
	EventOrderCreated                OutboxEventType = "order_created"
	EventOrderStatusChanged          OutboxEventType = "order_status_changed"
	EventOrderReconciliationRequired OutboxEventType = "order_reconciliation_required"
)

func (e OutboxEventType) IsValid() bool {
	switch e {
	case EventOrderCreated, EventOrderStatusChanged, EventOrderReconciliationRequired:
		return true
	}
	return false
}
