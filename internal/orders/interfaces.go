package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/plantomart/plantomart-backend/pkg/db/models"
	"github.com/plantomart/plantomart-backend/pkg/enums"
	"github.com/plantomart/plantomart-backend/pkg/pagination"
)

// Repository defines persistence operations for the order tables and the rows they
// reference.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
	VendorExists(ctx context.Context, id uuid.UUID) (bool, error)
	FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error)
	ListOrdersByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) ([]models.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, error)
}

// Service is the order persistence boundary used by HTTP handlers, the checkout
// orchestrator and the reconciliation worker.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*CreateResult, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (*OrderDTO, error)
	Get(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error)
	Items(ctx context.Context, orderID uuid.UUID) ([]OrderItemDTO, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListByBuyer(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
}
