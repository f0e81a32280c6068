package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/plantomart/plantomart-backend/pkg/enums"
	pkgerrors "github.com/plantomart/plantomart-backend/pkg/errors"
	"github.com/plantomart/plantomart-backend/pkg/logger"
	"github.com/plantomart/plantomart-backend/pkg/razorpay"
)

// CreateOrderInput is the body of POST /payment/create-order. Amount is in paise.
type CreateOrderInput struct {
	Amount   int64             `json:"amount" validate:"required,gt=0"`
	Currency string            `json:"currency" validate:"omitempty,currency"`
	Receipt  string            `json:"receipt,omitempty" validate:"omitempty,max=40"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// PaymentOrder is what the browser needs to open the gateway checkout.
type PaymentOrder struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type VerifyInput struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

type VerifyResult struct {
	IsOk bool `json:"isOk"`
}

type Service interface {
	CreatePaymentOrder(ctx context.Context, input CreateOrderInput) (*PaymentOrder, error)
	Verify(ctx context.Context, input VerifyInput) (*VerifyResult, error)
}

type orderCreator interface {
	CreateOrder(ctx context.Context, req razorpay.OrderRequest) (*razorpay.Order, error)
}

type ServiceParams struct {
	Gateway   orderCreator
	KeyID     string
	KeySecret string
	Logger    *logger.Logger
}

type service struct {
	gateway   orderCreator
	keyID     string
	keySecret string
	logg      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if strings.TrimSpace(params.KeyID) == "" || strings.TrimSpace(params.KeySecret) == "" {
		return nil, fmt.Errorf("razorpay key id and secret required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		gateway:   params.Gateway,
		keyID:     params.KeyID,
		keySecret: params.KeySecret,
		logg:      logg,
	}, nil
}

func (s *service) CreatePaymentOrder(ctx context.Context, input CreateOrderInput) (*PaymentOrder, error) {
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a positive number of paise")
	}
	currency := enums.CurrencyINR
	if raw := strings.TrimSpace(input.Currency); raw != "" {
		parsed, err := enums.ParseCurrency(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency")
		}
		currency = parsed
	}

	order, err := s.gateway.CreateOrder(ctx, razorpay.OrderRequest{
		Amount:   input.Amount,
		Currency: currency.String(),
		Receipt:  strings.TrimSpace(input.Receipt),
		Notes:    input.Notes,
	})
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "amount", input.Amount), "create payment order failed", err)
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "payment_order_id", order.ID), "payment order created")
	return &PaymentOrder{ID: order.ID, Key: s.keyID}, nil
}

// Verify reports whether the signature matches. A mismatch is not an error.
func (s *service) Verify(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	orderID := strings.TrimSpace(input.OrderID)
	paymentID := strings.TrimSpace(input.PaymentID)
	signature := strings.TrimSpace(input.Signature)
	if orderID == "" || paymentID == "" || signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderId, paymentId and signature are required")
	}
	ok := razorpay.VerifyPaymentSignature(s.keySecret, orderID, paymentID, signature)
	if !ok {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"payment_order_id": orderID,
			"payment_id":       paymentID,
		}), "payment signature mismatch")
	}
	return &VerifyResult{IsOk: ok}, nil
}
