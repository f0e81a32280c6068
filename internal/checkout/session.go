package checkout

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/plantomart/plantomart-backend/pkg/enums"
)

// Buyer is the signed-in shopper. Name, email and phone prefill the gateway form.
type Buyer struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name,omitempty"`
	Email string    `json:"email,omitempty"`
	Phone string    `json:"phone,omitempty"`
}

type LineInput struct {
	ProductID string          `json:"product_id" validate:"required"`
	Title     string          `json:"product_title,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
}

type StartInput struct {
	Buyer           Buyer       `json:"-"`
	VendorID        string      `json:"vendor_id"`
	Lines           []LineInput `json:"items" validate:"dive"`
	Currency        string      `json:"currency,omitempty"`
	ShippingAddress string      `json:"shipping_address,omitempty"`
	BillingAddress  string      `json:"billing_address,omitempty"`
	Notes           string      `json:"notes,omitempty"`
}

// GatewayResult is what the gateway hands back after the buyer pays.
type GatewayResult struct {
	PaymentID string `json:"paymentId" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// Prefill is passed to the gateway's payment form.
type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

type Line struct {
	ProductID uuid.UUID       `json:"product_id"`
	Title     string          `json:"product_title,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Session is one run of the checkout saga.
type Session struct {
	ID               uuid.UUID                 `json:"checkout_id"`
	BuyerID          uuid.UUID                 `json:"buyer_id"`
	VendorID         uuid.UUID                 `json:"vendor_id"`
	State            enums.CheckoutState       `json:"state"`
	Lines            []Line                    `json:"items"`
	Currency         enums.Currency            `json:"currency"`
	AmountMinor      int64                     `json:"amount_minor"`
	Total            decimal.Decimal           `json:"total_amount"`
	Receipt          string                    `json:"receipt"`
	PaymentOrderID   string                    `json:"payment_order_id,omitempty"`
	PublicKey        string                    `json:"key,omitempty"`
	Prefill          Prefill                   `json:"prefill"`
	PaymentID        string                    `json:"payment_id,omitempty"`
	OrderID          *uuid.UUID                `json:"order_id,omitempty"`
	FailureKind      enums.CheckoutFailureKind `json:"failure_kind,omitempty"`
	FailureMessage   string                    `json:"failure_message,omitempty"`
	SupportReference string                    `json:"support_reference,omitempty"`
	ShippingAddress  string                    `json:"shipping_address,omitempty"`
	BillingAddress   string                    `json:"billing_address,omitempty"`
	Notes            string                    `json:"notes,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Lines = append([]Line(nil), s.Lines...)
	if s.OrderID != nil {
		id := *s.OrderID
		out.OrderID = &id
	}
	return &out
}
