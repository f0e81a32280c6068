package outbox

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderCreatedEvent is emitted inside the order-create transaction.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"orderId"`
	UserID      uuid.UUID       `json:"userId"`
	VendorID    uuid.UUID       `json:"vendorId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    string          `json:"currency"`
	PaymentID   string          `json:"paymentId,omitempty"`
	ItemCount   int             `json:"itemCount"`
}

// OrderStatusChangedEvent records one accepted status transition.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID `json:"orderId"`
	VendorID  uuid.UUID `json:"vendorId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changedAt"`
}

// OrderReconciliationRequiredEvent is raised when a paid checkout could not be recorded
// after every automatic retry.
type OrderReconciliationRequiredEvent struct {
	Reference      string    `json:"reference"`
	CheckoutID     string    `json:"checkoutId"`
	PaymentOrderID string    `json:"paymentOrderId"`
	PaymentID      string    `json:"paymentId"`
	UserID         string    `json:"userId"`
	Reason         string    `json:"reason"`
	Attempts       int       `json:"attempts"`
	FirstSeenAt    time.Time `json:"firstSeenAt"`
}
