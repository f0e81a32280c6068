package payments

import (
	"net/http"

	"github.com/plantomart/plantomart-backend/api/responses"
	"github.com/plantomart/plantomart-backend/api/validators"
	internalpayments "github.com/plantomart/plantomart-backend/internal/payments"
	"github.com/plantomart/plantomart-backend/pkg/logger"
)

// CreateOrder answers with the bare {id, key} object the browser checkout expects.
func CreateOrder(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input internalpayments.CreateOrderInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.CreatePaymentOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, order)
	}
}

// verifyRequest also takes the field names the gateway's handler callback uses.
type verifyRequest struct {
	OrderID           string `json:"orderId"`
	PaymentID         string `json:"paymentId"`
	Signature         string `json:"signature"`
	RazorpayOrderID   string `json:"razorpayOrderId"`
	RazorpayPaymentID string `json:"razorpayPaymentId"`
	RazorpaySignature string `json:"razorpaySignature"`
}

func (v verifyRequest) input() internalpayments.VerifyInput {
	in := internalpayments.VerifyInput{OrderID: v.OrderID, PaymentID: v.PaymentID, Signature: v.Signature}
	if in.OrderID == "" {
		in.OrderID = v.RazorpayOrderID
	}
	if in.PaymentID == "" {
		in.PaymentID = v.RazorpayPaymentID
	}
	if in.Signature == "" {
		in.Signature = v.RazorpaySignature
	}
	return in
}

// Verify answers with the bare {isOk} object.
func Verify(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.Verify(r.Context(), req.input())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, res)
	}
}
