package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/plantomart/plantomart-backend/pkg/db"
	"github.com/plantomart/plantomart-backend/pkg/db/models"
	"github.com/plantomart/plantomart-backend/pkg/enums"
	pkgerrors "github.com/plantomart/plantomart-backend/pkg/errors"
	"github.com/plantomart/plantomart-backend/pkg/logger"
	"github.com/plantomart/plantomart-backend/pkg/metrics"
	"github.com/plantomart/plantomart-backend/pkg/outbox"
	"github.com/plantomart/plantomart-backend/pkg/pagination"
)

const (
	msgMissingFields      = "Missing required fields"
	msgUserNotFound       = "User not found"
	msgVendorNotFound     = "Vendor not found"
	msgProductsNotFound   = "One or more products not found"
	msgOrderNotFound      = "Order not found"
	msgUnitPricePrecision = "unit_price must have at most 2 decimal places"

	createdStatusCreated  = "created"
	createdStatusReplayed = "replayed"
	createdStatusRejected = "rejected"
)

var errDuplicatePayment = errors.New("order with payment id already exists")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repo         Repository
	Tx           txRunner
	Outbox       outbox.Emitter
	Logger       *logger.Logger
	Metrics      *metrics.OrderMetrics
	StrictTotals bool
	// DefaultCurrency applies when a request omits currency. Empty means INR.
	DefaultCurrency string
}

type service struct {
	repo         Repository
	tx           txRunner
	outbox       outbox.Emitter
	logg         *logger.Logger
	metrics      *metrics.OrderMetrics
	strictTotals bool
	currency     enums.Currency
	now          func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	currency := enums.CurrencyINR
	if raw := strings.TrimSpace(params.DefaultCurrency); raw != "" {
		parsed, err := enums.ParseCurrency(strings.ToUpper(raw))
		if err != nil {
			return nil, fmt.Errorf("default currency: %w", err)
		}
		currency = parsed
	}
	return &service{
		repo:         params.Repo,
		tx:           params.Tx,
		outbox:       params.Outbox,
		logg:         logg,
		metrics:      params.Metrics,
		strictTotals: params.StrictTotals,
		currency:     currency,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// validatedOrder is a create request after every lookup and check has passed.
type validatedOrder struct {
	userID        uuid.UUID
	vendorID      uuid.UUID
	currency      enums.Currency
	paymentStatus enums.PaymentStatus
	lines         []validatedLine
	declaredTotal decimal.Decimal
	computedTotal decimal.Decimal
}

type validatedLine struct {
	productID uuid.UUID
	title     *string
	quantity  int
	unitPrice decimal.Decimal
	total     decimal.Decimal
}

func (s *service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	v, err := s.validateCreate(ctx, input)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeInternal {
			s.metrics.IncCreated(createdStatusRejected)
		}
		return nil, err
	}

	paymentID := strings.TrimSpace(input.PaymentID)
	if paymentID != "" {
		existing, err := s.repo.FindOrderByPaymentID(ctx, paymentID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup order by payment id")
		}
		if existing != nil {
			return s.replay(ctx, existing), nil
		}
	}

	if !v.declaredTotal.Equal(v.computedTotal) {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"declared_total": v.declaredTotal.StringFixed(2),
			"computed_total": v.computedTotal.StringFixed(2),
			"vendor_id":      v.vendorID.String(),
		})
		if s.strictTotals {
			s.metrics.IncCreated(createdStatusRejected)
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "total_amount does not match line items").WithDetails(map[string]any{
				"total_amount":    v.declaredTotal.StringFixed(2),
				"computed_amount": v.computedTotal.StringFixed(2),
			})
		}
		s.logg.Warn(logCtx, "order total does not match line items")
	}

	order := models.Order{
		ID:              uuid.New(),
		UserID:          v.userID,
		VendorID:        v.vendorID,
		TotalAmount:     v.declaredTotal,
		Currency:        v.currency,
		Status:          enums.OrderStatusPending,
		PaymentID:       optionalString(paymentID),
		PaymentOrderID:  optionalString(strings.TrimSpace(input.PaymentOrderID)),
		PaymentMethod:   optionalString(strings.TrimSpace(input.PaymentMethod)),
		PaymentStatus:   v.paymentStatus,
		ShippingAddress: optionalString(input.ShippingAddress),
		BillingAddress:  optionalString(input.BillingAddress),
		Notes:           optionalString(input.Notes),
	}
	if v.paymentStatus == enums.PaymentStatusPaid {
		order.Status = enums.OrderStatusPaid
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrder(ctx, &order); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return errDuplicatePayment
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert order")
		}

		items := make([]models.OrderItem, 0, len(v.lines))
		for _, line := range v.lines {
			items = append(items, models.OrderItem{
				ID:           uuid.New(),
				OrderID:      order.ID,
				ProductID:    line.productID,
				ProductTitle: line.title,
				Quantity:     line.quantity,
				UnitPrice:    line.unitPrice,
				TotalPrice:   line.total,
			})
		}
		if err := repo.CreateOrderItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert order items")
		}

		for _, line := range v.lines {
			ok, err := repo.DecrementStock(ctx, line.productID, line.quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement stock")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").WithDetails(map[string]any{
					"product_id": line.productID.String(),
					"quantity":   line.quantity,
				})
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: &order.UserID, Source: "orders"},
			Data: outbox.OrderCreatedEvent{
				OrderID:     order.ID,
				UserID:      order.UserID,
				VendorID:    order.VendorID,
				TotalAmount: order.TotalAmount,
				Currency:    string(order.Currency),
				PaymentID:   paymentID,
				ItemCount:   len(items),
			},
		})
	})
	if err != nil {
		if errors.Is(err, errDuplicatePayment) {
			// Lost a race with a concurrent create for the same payment.
			existing, findErr := s.repo.FindOrderByPaymentID(ctx, paymentID)
			if findErr == nil && existing != nil {
				return s.replay(ctx, existing), nil
			}
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already exists for payment")
		}
		if pkgerrors.Is(err, pkgerrors.CodeConflict) {
			s.metrics.IncCreated(createdStatusRejected)
		}
		return nil, err
	}

	stored, err := s.repo.FindOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
	}
	s.metrics.IncCreated(createdStatusCreated)
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "order created")
	return &CreateResult{Order: toOrderDTO(*stored)}, nil
}

func (s *service) replay(ctx context.Context, existing *models.Order) *CreateResult {
	s.metrics.IncCreated(createdStatusReplayed)
	s.logg.Info(s.logg.WithOrderID(ctx, existing.ID.String()), "order create replayed by payment id")
	return &CreateResult{Order: toOrderDTO(*existing), Replayed: true}
}

func (s *service) validateCreate(ctx context.Context, input CreateInput) (*validatedOrder, error) {
	userID, userErr := uuid.Parse(strings.TrimSpace(input.UserID))
	vendorID, vendorErr := uuid.Parse(strings.TrimSpace(input.VendorID))
	if userErr != nil || vendorErr != nil {
		fields := []string{}
		if userErr != nil {
			fields = append(fields, "user_uuid")
		}
		if vendorErr != nil {
			fields = append(fields, "vendor_id")
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgMissingFields).WithDetails(map[string]any{"fields": fields})
	}

	ok, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgUserNotFound)
	}

	ok, err = s.repo.VendorExists(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup vendor")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgVendorNotFound)
	}

	productIDs := make([]uuid.UUID, 0, len(input.Items))
	seen := make(map[uuid.UUID]struct{}, len(input.Items))
	lineProducts := make([]uuid.UUID, len(input.Items))
	for i, item := range input.Items {
		id, err := uuid.Parse(strings.TrimSpace(item.ProductID))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, msgProductsNotFound)
		}
		lineProducts[i] = id
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			productIDs = append(productIDs, id)
		}
	}
	found, err := s.repo.FindProducts(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup products")
	}
	if len(found) != len(productIDs) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgProductsNotFound)
	}

	if len(input.Items) == 0 || input.TotalAmount == nil {
		fields := []string{}
		if len(input.Items) == 0 {
			fields = append(fields, "items")
		}
		if input.TotalAmount == nil {
			fields = append(fields, "total_amount")
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgMissingFields).WithDetails(map[string]any{"fields": fields})
	}
	if input.TotalAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total_amount must not be negative")
	}

	currency := s.currency
	if raw := strings.TrimSpace(input.Currency); raw != "" {
		currency, err = enums.ParseCurrency(strings.ToUpper(raw))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency")
		}
	}
	paymentStatus := enums.PaymentStatusPaid
	if raw := strings.TrimSpace(input.PaymentStatus); raw != "" {
		paymentStatus, err = enums.ParsePaymentStatus(strings.ToLower(raw))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_status")
		}
	}

	out := &validatedOrder{
		userID:        userID,
		vendorID:      vendorID,
		currency:      currency,
		paymentStatus: paymentStatus,
		declaredTotal: input.TotalAmount.Round(2),
		computedTotal: decimal.Zero,
		lines:         make([]validatedLine, 0, len(input.Items)),
	}
	for i, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").WithDetails(map[string]any{"index": i})
		}
		if item.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit_price must not be negative").WithDetails(map[string]any{"index": i})
		}
		if !WholeMinorUnits(item.UnitPrice) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, msgUnitPricePrecision).WithDetails(map[string]any{"index": i})
		}
		unit := item.UnitPrice
		total := LineTotal(unit, item.Quantity)
		out.computedTotal = out.computedTotal.Add(total)
		out.lines = append(out.lines, validatedLine{
			productID: lineProducts[i],
			title:     optionalString(strings.TrimSpace(item.ProductTitle)),
			quantity:  item.Quantity,
			unitPrice: unit,
			total:     total,
		})
	}
	return out, nil
}

// LineTotal is round(unit × qty, 2).
// WholeMinorUnits reports whether unit is a whole number of paise.
func WholeMinorUnits(unit decimal.Decimal) bool {
	return unit.Equal(unit.Round(2))
}

func LineTotal(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}

func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (*OrderDTO, error) {
	if orderID == uuid.Nil || strings.TrimSpace(status) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Order ID and status are required")
	}
	target, err := enums.ParseOrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status").WithDetails(map[string]any{"status": status})
	}

	var (
		from    enums.OrderStatus
		changed bool
		result  models.Order
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, msgOrderNotFound)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		from = order.Status
		if order.Status == target {
			result = *order
			return nil
		}
		if !order.Status.CanTransitionTo(target) {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("cannot change order status from %s to %s", order.Status, target)).
				WithDetails(map[string]any{"from": order.Status, "to": target})
		}
		ok, err := repo.UpdateOrderStatus(ctx, order.ID, order.Status, target)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order status changed concurrently")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{Source: "orders"},
			Data: outbox.OrderStatusChangedEvent{
				OrderID:   order.ID,
				VendorID:  order.VendorID,
				From:      string(order.Status),
				To:        string(target),
				ChangedAt: s.now(),
			},
		}); err != nil {
			return err
		}

		updated, err := repo.FindOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		result = *updated
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.IncTransition(string(from), string(target))
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, orderID.String()), map[string]any{"from": from, "to": target})
		s.logg.Info(logCtx, "order status changed")
	}
	dto := toOrderDTO(result)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.FindOrderItems(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order items")
	}
	return &OrderDetail{OrderDTO: toOrderDTO(*order), Items: toOrderItemDTOs(items)}, nil
}

func (s *service) Items(ctx context.Context, orderID uuid.UUID) ([]OrderItemDTO, error) {
	if _, err := s.loadOrder(ctx, orderID); err != nil {
		return nil, err
	}
	items, err := s.repo.FindOrderItems(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order items")
	}
	return toOrderItemDTOs(items), nil
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Order ID is required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgOrderNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

func (s *service) ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Vendor ID is required")
	}
	rows, err := s.repo.ListOrdersByVendor(ctx, vendorID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list vendor orders")
	}
	return buildList(rows, params), nil
}

func (s *service) ListByBuyer(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "User UUID is required")
	}
	rows, err := s.repo.ListOrdersByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list buyer orders")
	}
	return buildList(rows, params), nil
}

// count reports the rows on this page, not the total across pages.
func buildList(rows []models.Order, params pagination.Params) *OrderList {
	out := make([]OrderDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toOrderDTO(row))
	}
	return &OrderList{Orders: out, Pagination: params.Result(len(out))}
}
