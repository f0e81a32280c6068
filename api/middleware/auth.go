package middleware

import (
	"net/http"
	"strings"

	"github.com/plantomart/plantomart-backend/api/responses"
	pkgAuth "github.com/plantomart/plantomart-backend/pkg/auth"
	"github.com/plantomart/plantomart-backend/pkg/config"
	pkgerrors "github.com/plantomart/plantomart-backend/pkg/errors"
	"github.com/plantomart/plantomart-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the buyer.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithBuyer(r.Context(), Buyer{
				ID:    claims.UserID,
				Name:  claims.Name,
				Email: claims.Email,
				Phone: claims.Phone,
			})
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	token := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
