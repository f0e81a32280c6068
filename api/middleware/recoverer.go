package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/plantomart/plantomart-backend/api/responses"
	pkgerrors "github.com/plantomart/plantomart-backend/pkg/errors"
	"github.com/plantomart/plantomart-backend/pkg/logger"
)

// Recoverer turns a handler panic into a 500 envelope. http.ErrAbortHandler is re-raised.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithField(ctx, "panic_stack", string(debug.Stack()))
				}
				cause := pkgerrors.Wrap(pkgerrors.CodeInternal, fmt.Errorf("recovered: %v", rec), "handler panicked")
				responses.WriteError(ctx, logg, w, cause)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
