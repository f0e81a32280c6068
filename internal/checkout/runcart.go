package checkout

import (
	"context"
	"errors"
	"strings"

	"github.com/plantomart/plantomart-backend/internal/cartstore"
	"github.com/plantomart/plantomart-backend/pkg/enums"
	pkgerrors "github.com/plantomart/plantomart-backend/pkg/errors"
)

// ErrPaymentDismissed is returned by a PaymentCollector when the buyer closes the
// payment form.
var ErrPaymentDismissed = errors.New("payment dismissed")

// PaymentCollector stands in for the gateway's interactive payment form.
type PaymentCollector interface {
	Collect(ctx context.Context, session *Session) (*GatewayResult, error)
}

// RunCart checks out the local cart end to end. The cart is cleared only once the order
// is persisted. A dismissed payment returns the aborted session without an error.
func (o *Orchestrator) RunCart(ctx context.Context, cart *cartstore.Store, in StartInput, collector PaymentCollector) (*Session, error) {
	if cart == nil || collector == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart and payment collector required")
	}
	if len(in.Lines) == 0 {
		lines := cart.Lines()
		vendor := strings.TrimSpace(in.VendorID)
		for _, l := range lines {
			if l.VendorID != "" {
				if vendor == "" {
					vendor = l.VendorID
				} else if l.VendorID != vendor {
					return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart holds items from more than one vendor")
				}
			}
			in.Lines = append(in.Lines, LineInput{
				ProductID: l.ProductID,
				Title:     l.Title,
				UnitPrice: l.EffectivePrice(),
				Quantity:  l.Quantity,
			})
		}
		in.VendorID = vendor
	}

	session, err := o.Start(ctx, in)
	if err != nil {
		return session, err
	}

	result, err := collector.Collect(ctx, session)
	if err != nil || result == nil {
		dismissed, dismissErr := o.Dismiss(ctx, session.ID)
		if dismissErr != nil {
			o.logg.Error(o.logg.WithCheckoutID(ctx, session.ID.String()), "dismiss checkout failed", dismissErr)
			dismissed = session
		}
		if err == nil || errors.Is(err, ErrPaymentDismissed) {
			return dismissed, nil
		}
		return dismissed, err
	}

	session, err = o.Complete(ctx, session.ID, *result)
	if err != nil {
		return session, err
	}
	if session.State == enums.CheckoutPersisted {
		cart.Clear(ctx)
	}
	return session, nil
}
