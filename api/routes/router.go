package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/plantomart/plantomart-backend/api/controllers"
	checkoutcontrollers "github.com/plantomart/plantomart-backend/api/controllers/checkout"
	ordercontrollers "github.com/plantomart/plantomart-backend/api/controllers/orders"
	paymentcontrollers "github.com/plantomart/plantomart-backend/api/controllers/payments"
	"github.com/plantomart/plantomart-backend/api/middleware"
	"github.com/plantomart/plantomart-backend/internal/orders"
	"github.com/plantomart/plantomart-backend/internal/payments"
	"github.com/plantomart/plantomart-backend/pkg/config"
	"github.com/plantomart/plantomart-backend/pkg/logger"
	"github.com/plantomart/plantomart-backend/pkg/metrics"
	pkgredis "github.com/plantomart/plantomart-backend/pkg/redis"
)

// Deps carries everything the router wires. Redis-backed middleware is skipped when
// Idempotency or RateLimiter is nil.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	Orders       orders.Service
	Payments     payments.Service
	Checkout     checkoutcontrollers.Orchestrator
	Idempotency  pkgredis.IdempotencyStore
	RateLimiter  pkgredis.RateLimiter
	HTTPMetrics  *metrics.HTTPMetrics
	Gatherer     prometheus.Gatherer
	Dependencies map[string]controllers.Pinger
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(d.HTTPMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	idempotent := middleware.Idempotency(d.Idempotency, middleware.DefaultIdempotencyTTL, logg)
	paymentLimit := middleware.RateLimit(
		middleware.NewRateLimitPolicy("payment", cfg.RateLimit.PaymentWindow, cfg.RateLimit.PaymentLimit),
		d.RateLimiter,
		logg,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Dependencies))
	})
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))
	}

	r.Route("/order", func(r chi.Router) {
		r.With(idempotent).Post("/create", ordercontrollers.Create(d.Orders, logg))
		r.Get("/vendor/{vendorId}", ordercontrollers.ListByVendor(d.Orders, cfg.Orders.PageLimit, logg))
		r.Get("/user/{userUUID}", ordercontrollers.ListByBuyer(d.Orders, cfg.Orders.PageLimit, logg))
		r.Get("/items/{orderId}", ordercontrollers.Items(d.Orders, logg))
		r.Patch("/status/{orderId}", ordercontrollers.UpdateStatus(d.Orders, logg))
		r.Get("/{orderId}", ordercontrollers.Detail(d.Orders, logg))
	})

	r.Route("/payment", func(r chi.Router) {
		r.Use(paymentLimit)
		r.With(idempotent).Post("/create-order", paymentcontrollers.CreateOrder(d.Payments, logg))
		r.Post("/verify", paymentcontrollers.Verify(d.Payments, logg))
	})

	r.Route("/checkout", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(paymentLimit)
		r.With(idempotent).Post("/", checkoutcontrollers.Start(d.Checkout, logg))
		r.Get("/{checkoutId}", checkoutcontrollers.Get(d.Checkout, logg))
		r.Post("/{checkoutId}/callback", checkoutcontrollers.Callback(d.Checkout, logg))
		r.Post("/{checkoutId}/dismiss", checkoutcontrollers.Dismiss(d.Checkout, logg))
	})

	return r
}
