package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/plantomart/plantomart-backend/pkg/enums"
)

// Order is the order header. Items live in order_items and are written in the same
// transaction.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	VendorID        uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null"`
	TotalAmount     decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency        enums.Currency      `gorm:"column:currency;not null;default:'INR'"`
	Status          enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	PaymentID       *string             `gorm:"column:payment_id;uniqueIndex:ux_orders_payment_id"`
	PaymentOrderID  *string             `gorm:"column:payment_order_id"`
	PaymentMethod   *string             `gorm:"column:payment_method"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;not null"`
	ShippingAddress *string             `gorm:"column:shipping_address"`
	BillingAddress  *string             `gorm:"column:billing_address"`
	Notes           *string             `gorm:"column:notes"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
