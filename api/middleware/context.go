package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const ctxBuyer contextKey = "buyer"

// Buyer is the authenticated shopper taken from the access token.
type Buyer struct {
	ID    uuid.UUID
	Name  string
	Email string
	Phone string
}

func BuyerFromContext(ctx context.Context) (Buyer, bool) {
	if ctx == nil {
		return Buyer{}, false
	}
	b, ok := ctx.Value(ctxBuyer).(Buyer)
	return b, ok && b.ID != uuid.Nil
}

func UserIDFromContext(ctx context.Context) string {
	if b, ok := BuyerFromContext(ctx); ok {
		return b.ID.String()
	}
	return ""
}

// WithBuyer injects the buyer into the context.
func WithBuyer(ctx context.Context, b Buyer) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxBuyer, b)
}
