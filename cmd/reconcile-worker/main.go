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

	"github.com/plantomart/plantomart-backend/internal/orders"
	"github.com/plantomart/plantomart-backend/internal/reconciliation"
	"github.com/plantomart/plantomart-backend/pkg/config"
	"github.com/plantomart/plantomart-backend/pkg/db"
	"github.com/plantomart/plantomart-backend/pkg/logger"
	"github.com/plantomart/plantomart-backend/pkg/metrics"
	"github.com/plantomart/plantomart-backend/pkg/migrate"
	"github.com/plantomart/plantomart-backend/pkg/outbox"
	"github.com/plantomart/plantomart-backend/pkg/redis"
)

const serviceName = "reconcile-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:            orders.NewRepository(dbClient.DB()),
		Tx:              dbClient,
		Outbox:          emitter,
		Logger:          logg,
		Metrics:         metrics.NewOrderMetrics(registry),
		StrictTotals:    cfg.Orders.StrictTotals,
		DefaultCurrency: cfg.Orders.DefaultCurrency,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	queue, err := reconciliation.NewQueue(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation queue", err)
		os.Exit(1)
	}
	worker, err := reconciliation.NewWorker(reconciliation.WorkerParams{
		Queue:        queue,
		Orders:       orderService,
		Tx:           dbClient,
		Outbox:       emitter,
		Logger:       logg,
		Metrics:      metrics.NewJobMetrics(registry),
		MaxAttempts:  cfg.Reconciliation.MaxAttempts,
		BlockTimeout: cfg.Reconciliation.BlockTimeout,
		RetryDelay:   cfg.Reconciliation.RetryDelay,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           metrics.Handler(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logg.Info(logg.WithField(ctx, "max_attempts", cfg.Reconciliation.MaxAttempts), "starting reconciliation worker")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "reconciliation worker exited with error", err)
		os.Exit(1)
	}
	logg.Info(ctx, "reconciliation worker stopped")
}
