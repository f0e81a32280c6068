package checkout

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/plantomart/plantomart-backend/api/middleware"
	"github.com/plantomart/plantomart-backend/api/responses"
	"github.com/plantomart/plantomart-backend/api/validators"
	internalcheckout "github.com/plantomart/plantomart-backend/internal/checkout"
	pkgerrors "github.com/plantomart/plantomart-backend/pkg/errors"
	"github.com/plantomart/plantomart-backend/pkg/logger"
)

// Orchestrator is the slice of the checkout saga the HTTP surface drives.
type Orchestrator interface {
	Start(ctx context.Context, in internalcheckout.StartInput) (*internalcheckout.Session, error)
	GetForBuyer(ctx context.Context, id, buyerID uuid.UUID) (*internalcheckout.Session, error)
	Complete(ctx context.Context, id uuid.UUID, result internalcheckout.GatewayResult) (*internalcheckout.Session, error)
	Dismiss(ctx context.Context, id uuid.UUID) (*internalcheckout.Session, error)
}

func buyerFrom(r *http.Request) (middleware.Buyer, error) {
	b, ok := middleware.BuyerFromContext(r.Context())
	if !ok {
		return middleware.Buyer{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	return b, nil
}

// Start opens a checkout for the signed-in buyer and returns the payment form parameters.
func Start(orch Orchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyer, err := buyerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var in internalcheckout.StartInput
		if err := validators.DecodeJSONBody(r, &in); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		in.Buyer = internalcheckout.Buyer{ID: buyer.ID, Name: buyer.Name, Email: buyer.Email, Phone: buyer.Phone}

		session, err := orch.Start(r.Context(), in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, "", session)
	}
}

func Get(orch Orchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := ownedSession(r, orch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// Callback receives the gateway result, verifies it and records the order.
func Callback(orch Orchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := ownedSession(r, orch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var result internalcheckout.GatewayResult
		if err := validators.DecodeJSONBody(r, &result); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		done, err := orch.Complete(r.Context(), session.ID, result)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusOK, "Order placed", done)
	}
}

func Dismiss(orch Orchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := ownedSession(r, orch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		aborted, err := orch.Dismiss(r.Context(), session.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, aborted)
	}
}

func ownedSession(r *http.Request, orch Orchestrator) (*internalcheckout.Session, error) {
	buyer, err := buyerFrom(r)
	if err != nil {
		return nil, err
	}
	id, err := validators.PathUUID(r, "checkoutId", "checkout id")
	if err != nil {
		return nil, err
	}
	return orch.GetForBuyer(r.Context(), id, buyer.ID)
}
