package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/plantomart/plantomart-backend/api/responses"
	"github.com/plantomart/plantomart-backend/pkg/config"
	pkgerrors "github.com/plantomart/plantomart-backend/pkg/errors"
	"github.com/plantomart/plantomart-backend/pkg/logger"
	"github.com/plantomart/plantomart-backend/pkg/types"
)

const envHeader = "X-PlantoMart-Env"

// Pinger is satisfied by the database and redis clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency. Nil pingers are skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		var failed []string
		for name, p := range deps {
			if p == nil {
				continue
			}
			if err := p.Ping(ctx); err != nil {
				checks[name] = "down"
				failed = append(failed, name)
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "dependency", name), "health.dependency_down")
				}
				continue
			}
			checks[name] = "ok"
		}
		if len(failed) > 0 {
			responses.WriteJSON(w, http.StatusServiceUnavailable, types.ErrorEnvelope{
				Message: "not ready",
				Code:    string(pkgerrors.CodeDependency),
				Details: checks,
			})
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
