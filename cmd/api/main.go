package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/plantomart/plantomart-backend/api/controllers"
	"github.com/plantomart/plantomart-backend/api/routes"
	"github.com/plantomart/plantomart-backend/internal/checkout"
	"github.com/plantomart/plantomart-backend/internal/orders"
	"github.com/plantomart/plantomart-backend/internal/payments"
	"github.com/plantomart/plantomart-backend/internal/reconciliation"
	"github.com/plantomart/plantomart-backend/pkg/config"
	"github.com/plantomart/plantomart-backend/pkg/db"
	"github.com/plantomart/plantomart-backend/pkg/logger"
	"github.com/plantomart/plantomart-backend/pkg/metrics"
	"github.com/plantomart/plantomart-backend/pkg/migrate"
	"github.com/plantomart/plantomart-backend/pkg/outbox"
	"github.com/plantomart/plantomart-backend/pkg/razorpay"
	"github.com/plantomart/plantomart-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	if !cfg.Razorpay.Enabled() {
		logg.Error(context.Background(), "razorpay credentials missing", errors.New("set "+config.EnvRazorpayKeyID+" and "+config.EnvRazorpayKeySecret))
		os.Exit(1)
	}
	razorpayClient, err := razorpay.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret,
		razorpay.WithBaseURL(cfg.Razorpay.BaseURL),
		razorpay.WithTimeout(cfg.Razorpay.Timeout),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create razorpay client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:            orders.NewRepository(dbClient.DB()),
		Tx:              dbClient,
		Outbox:          outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Logger:          logg,
		Metrics:         metrics.NewOrderMetrics(registry),
		StrictTotals:    cfg.Orders.StrictTotals,
		DefaultCurrency: cfg.Orders.DefaultCurrency,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Gateway:   razorpayClient,
		KeyID:     cfg.Razorpay.KeyID,
		KeySecret: cfg.Razorpay.KeySecret,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	sessions, err := checkout.NewRedisStore(redisClient, cfg.Checkout.SessionTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout session store", err)
		os.Exit(1)
	}
	queue, err := reconciliation.NewQueue(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation queue", err)
		os.Exit(1)
	}
	orchestrator, err := checkout.NewOrchestrator(checkout.Params{
		Gateway:        checkout.NewLocalGateway(paymentService),
		Recorder:       checkout.NewLocalRecorder(orderService),
		Store:          sessions,
		Queue:          queue,
		Logger:         logg,
		Metrics:        metrics.NewCheckoutMetrics(registry),
		StepTimeout:    cfg.Checkout.StepTimeout,
		PaymentMethod:  cfg.Checkout.PaymentMethod,
		SupportContact: cfg.Checkout.SupportContact,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout orchestrator", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.Deps{
		Config:      cfg,
		Logger:      logg,
		Orders:      orderService,
		Payments:    paymentService,
		Checkout:    orchestrator,
		Idempotency: redisClient,
		RateLimiter: redisClient,
		HTTPMetrics: metrics.NewHTTPMetrics(registry),
		Gatherer:    registry,
		Dependencies: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "graceful shutdown failed", err)
		}
		logg.Info(logCtx, "api server stopped")
	}
}
