package checkout

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/plantomart/plantomart-backend/internal/orders"
	pkgerrors "github.com/plantomart/plantomart-backend/pkg/errors"
)

type RecordedOrder struct {
	ID       uuid.UUID
	Replayed bool
}

// OrderRecorder persists the order once payment is verified.
type OrderRecorder interface {
	RecordOrder(ctx context.Context, input orders.CreateInput) (*RecordedOrder, error)
}

type orderCreator interface {
	Create(ctx context.Context, input orders.CreateInput) (*orders.CreateResult, error)
}

type LocalRecorder struct {
	orders orderCreator
}

func NewLocalRecorder(svc orderCreator) *LocalRecorder {
	return &LocalRecorder{orders: svc}
}

func (l *LocalRecorder) RecordOrder(ctx context.Context, input orders.CreateInput) (*RecordedOrder, error) {
	res, err := l.orders.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	return &RecordedOrder{ID: res.Order.ID, Replayed: res.Replayed}, nil
}

// HTTPRecorder posts to /order/create.
type HTTPRecorder struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewHTTPRecorder(baseURL, token string, httpClient *http.Client) *HTTPRecorder {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPRecorder{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: httpClient}
}

type orderEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    orders.OrderDTO `json:"data"`
}

func (h *HTTPRecorder) RecordOrder(ctx context.Context, input orders.CreateInput) (*RecordedOrder, error) {
	if input.PaymentID != "" {
		ctx = WithIdempotencyKey(ctx, "order-"+input.PaymentID)
	}
	var env orderEnvelope
	if err := postJSON(ctx, h.http, h.baseURL+"/order/create", h.token, input, &env, false); err != nil {
		return nil, err
	}
	if !env.Success || env.Data.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidResponse, "order create response missing order id")
	}
	return &RecordedOrder{ID: env.Data.ID}, nil
}
