package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/plantomart/plantomart-backend/internal/maintenance"
	"github.com/plantomart/plantomart-backend/internal/reconciliation"
	"github.com/plantomart/plantomart-backend/pkg/config"
	"github.com/plantomart/plantomart-backend/pkg/db"
	"github.com/plantomart/plantomart-backend/pkg/logger"
	"github.com/plantomart/plantomart-backend/pkg/metrics"
	"github.com/plantomart/plantomart-backend/pkg/migrate"
	"github.com/plantomart/plantomart-backend/pkg/outbox"
	"github.com/plantomart/plantomart-backend/pkg/redis"
)

const serviceName = "maintenance-worker"

func main() {
	once := flag.Bool("once", false, "run a single maintenance cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logg, *once); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "maintenance worker stopped", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger, once bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = serviceName
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer dbClient.Close()
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer redisClient.Close()

	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := maintenance.NewRedisLock(redisClient, "pm:maintenance:lock:"+env, cfg.Maintenance.Interval)
	if err != nil {
		return err
	}

	retention, err := maintenance.NewOutboxRetentionJob(maintenance.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outbox.NewRepository(dbClient.DB()),
		Retention:   cfg.Maintenance.OutboxRetention,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return err
	}
	queue, err := reconciliation.NewQueue(redisClient)
	if err != nil {
		return err
	}
	backlog, err := maintenance.NewReconciliationBacklogJob(logg, queue, cfg.Maintenance.ReconciliationAlert)
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	service, err := maintenance.NewService(maintenance.ServiceParams{
		Logger:   logg,
		Registry: maintenance.NewRegistry(retention, backlog),
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(promRegistry),
		Interval: cfg.Maintenance.Interval,
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": cfg.Service.Kind})
	if once {
		return service.RunOnce(ctx)
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           metrics.Handler(promRegistry),
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

	logg.Info(logg.WithField(ctx, "interval", cfg.Maintenance.Interval.String()), "starting maintenance worker")
	return service.Run(ctx)
}
