package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/plantomart/plantomart-backend/internal/payments"
	pkgerrors "github.com/plantomart/plantomart-backend/pkg/errors"
)

const responseReadLimit = 1 << 20

// PaymentOrderRequest mirrors POST /payment/create-order. Amount is in paise.
type PaymentOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type PaymentOrder struct {
	ID  string
	Key string
}

type PaymentGateway interface {
	CreatePaymentOrder(ctx context.Context, req PaymentOrderRequest) (*PaymentOrder, error)
	VerifyPayment(ctx context.Context, paymentOrderID string, result GatewayResult) (bool, error)
}

// GatewayClient calls the payment endpoints over HTTP and enforces their response
// schemas exactly.
type GatewayClient struct {
	baseURL string
	http    *http.Client
}

func NewGatewayClient(baseURL string, httpClient *http.Client) *GatewayClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &GatewayClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type createOrderResponse struct {
	ID  *string `json:"id"`
	Key *string `json:"key"`
}

type verifyRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

type verifyResponse struct {
	IsOk *bool `json:"isOk"`
}

func (g *GatewayClient) CreatePaymentOrder(ctx context.Context, req PaymentOrderRequest) (*PaymentOrder, error) {
	var out createOrderResponse
	if err := postJSON(ctx, g.http, g.baseURL+"/payment/create-order", "", req, &out, true); err != nil {
		return nil, err
	}
	if out.ID == nil || out.Key == nil || *out.ID == "" || *out.Key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidResponse, "payment order response missing id or key")
	}
	return &PaymentOrder{ID: *out.ID, Key: *out.Key}, nil
}

func (g *GatewayClient) VerifyPayment(ctx context.Context, paymentOrderID string, result GatewayResult) (bool, error) {
	var out verifyResponse
	body := verifyRequest{OrderID: paymentOrderID, PaymentID: result.PaymentID, Signature: result.Signature}
	if err := postJSON(ctx, g.http, g.baseURL+"/payment/verify", "", body, &out, true); err != nil {
		return false, err
	}
	if out.IsOk == nil {
		return false, pkgerrors.New(pkgerrors.CodeInvalidResponse, "verify response missing isOk")
	}
	return *out.IsOk, nil
}

// postJSON sends body and decodes a 2xx response into out. strict rejects unknown
// fields. Non-2xx responses are read as the API error envelope.
func postJSON(ctx context.Context, client *http.Client, url, token string, body, out any, strict bool) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if key := idempotencyKeyFrom(ctx); key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, "request timed out")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, "reading response timed out")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromEnvelope(resp.StatusCode, raw)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInvalidResponse, err, "unexpected response body")
	}
	if dec.More() {
		return pkgerrors.New(pkgerrors.CodeInvalidResponse, "trailing data after response body")
	}
	return nil
}

type errorEnvelope struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func errorFromEnvelope(status int, raw []byte) error {
	var env errorEnvelope
	_ = json.Unmarshal(raw, &env)
	code := pkgerrors.CodeDependency
	switch pkgerrors.Code(env.Code) {
	case pkgerrors.CodeValidation, pkgerrors.CodeNotFound, pkgerrors.CodeConflict,
		pkgerrors.CodeUnauthorized, pkgerrors.CodeForbidden, pkgerrors.CodeRateLimit,
		pkgerrors.CodeIdempotency, pkgerrors.CodeTimeout:
		code = pkgerrors.Code(env.Code)
	}
	msg := env.Message
	if msg == "" {
		msg = fmt.Sprintf("upstream returned status %d", status)
	}
	return pkgerrors.New(code, msg).WithDetails(map[string]any{"status": status})
}

type idempotencyKeyCtx struct{}

// WithIdempotencyKey makes outgoing requests carry key in the Idempotency-Key header.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

func idempotencyKeyFrom(ctx context.Context) string {
	v, _ := ctx.Value(idempotencyKeyCtx{}).(string)
	return v
}

// LocalGateway adapts the in-process payments service.
type LocalGateway struct {
	svc payments.Service
}

func NewLocalGateway(svc payments.Service) *LocalGateway {
	return &LocalGateway{svc: svc}
}

func (l *LocalGateway) CreatePaymentOrder(ctx context.Context, req PaymentOrderRequest) (*PaymentOrder, error) {
	order, err := l.svc.CreatePaymentOrder(ctx, payments.CreateOrderInput{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		return nil, err
	}
	if order.ID == "" || order.Key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidResponse, "payment order missing id or key")
	}
	return &PaymentOrder{ID: order.ID, Key: order.Key}, nil
}

func (l *LocalGateway) VerifyPayment(ctx context.Context, paymentOrderID string, result GatewayResult) (bool, error) {
	res, err := l.svc.Verify(ctx, payments.VerifyInput{
		OrderID:   paymentOrderID,
		PaymentID: result.PaymentID,
		Signature: result.Signature,
	})
	if err != nil {
		return false, err
	}
	return res.IsOk, nil
}
