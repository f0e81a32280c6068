package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/plantomart/plantomart-backend/pkg/db/models"
	"github.com/plantomart/plantomart-backend/pkg/pagination"
)

// CreateInput is the order-create request as it arrives over the wire. Ids stay strings
// so the service can report a missing id and an unparseable one the same way.
type CreateInput struct {
	UserID          string           `json:"user_uuid"`
	VendorID        string           `json:"vendor_id"`
	Items           []ItemInput      `json:"items"`
	TotalAmount     *decimal.Decimal `json:"total_amount"`
	Currency        string           `json:"currency,omitempty"`
	PaymentID       string           `json:"payment_id,omitempty"`
	PaymentOrderID  string           `json:"payment_order_id,omitempty"`
	PaymentMethod   string           `json:"payment_method,omitempty"`
	PaymentStatus   string           `json:"payment_status,omitempty"`
	ShippingAddress string           `json:"shipping_address,omitempty"`
	BillingAddress  string           `json:"billing_address,omitempty"`
	Notes           string           `json:"notes,omitempty"`
}

// ItemInput is one requested line.
type ItemInput struct {
	ProductID    string          `json:"product_id"`
	ProductTitle string          `json:"product_title,omitempty"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

// CreateResult carries the stored order and whether it was replayed by payment id.
type CreateResult struct {
	Order    OrderDTO
	Replayed bool
}

type OrderDTO struct {
	ID              uuid.UUID       `json:"order_id"`
	UserID          uuid.UUID       `json:"user_uuid"`
	VendorID        uuid.UUID       `json:"vendor_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	PaymentID       *string         `json:"payment_id"`
	PaymentOrderID  *string         `json:"payment_order_id"`
	PaymentMethod   *string         `json:"payment_method"`
	PaymentStatus   string          `json:"payment_status"`
	ShippingAddress *string         `json:"shipping_address"`
	BillingAddress  *string         `json:"billing_address"`
	Notes           *string         `json:"notes"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type OrderItemDTO struct {
	ID           uuid.UUID       `json:"id"`
	OrderID      uuid.UUID       `json:"order_id"`
	ProductID    uuid.UUID       `json:"product_id"`
	ProductTitle *string         `json:"product_title"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	CreatedAt    time.Time       `json:"created_at"`
}

// OrderDetail is the header with its items inlined.
type OrderDetail struct {
	OrderDTO
	Items []OrderItemDTO `json:"items"`
}

type OrderList struct {
	Orders     []OrderDTO
	Pagination pagination.Page
}

func toOrderDTO(o models.Order) OrderDTO {
	return OrderDTO{
		ID:              o.ID,
		UserID:          o.UserID,
		VendorID:        o.VendorID,
		TotalAmount:     o.TotalAmount,
		Currency:        string(o.Currency),
		Status:          string(o.Status),
		PaymentID:       o.PaymentID,
		PaymentOrderID:  o.PaymentOrderID,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   string(o.PaymentStatus),
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toOrderItemDTOs(items []models.OrderItem) []OrderItemDTO {
	out := make([]OrderItemDTO, 0, len(items))
	for _, it := range items {
		out = append(out, OrderItemDTO{
			ID:           it.ID,
			OrderID:      it.OrderID,
			ProductID:    it.ProductID,
			ProductTitle: it.ProductTitle,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			TotalPrice:   it.TotalPrice,
			CreatedAt:    it.CreatedAt,
		})
	}
	return out
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
