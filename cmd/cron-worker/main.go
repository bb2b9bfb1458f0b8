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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bazario-dev/bazario-backend/internal/cron"
	"github.com/bazario-dev/bazario-backend/internal/inventory"
	"github.com/bazario-dev/bazario-backend/internal/listings"
	"github.com/bazario-dev/bazario-backend/internal/orders"
	"github.com/bazario-dev/bazario-backend/internal/settlement"
	"github.com/bazario-dev/bazario-backend/pkg/config"
	"github.com/bazario-dev/bazario-backend/pkg/db"
	"github.com/bazario-dev/bazario-backend/pkg/env"
	"github.com/bazario-dev/bazario-backend/pkg/gateway"
	"github.com/bazario-dev/bazario-backend/pkg/logger"
	"github.com/bazario-dev/bazario-backend/pkg/metrics"
	"github.com/bazario-dev/bazario-backend/pkg/outbox"
	"github.com/bazario-dev/bazario-backend/pkg/redis"
)

func main() {
	_ = godotenv.Load()

	logg := logger.New(logger.Options{
		ServiceName: "bazario-cron-worker",
		Level:       logger.ParseLevel(env.Get("BAZARIO_LOG_LEVEL", "info")),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker exited with error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logg = logger.New(logger.Options{
		ServiceName: "bazario-cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	database, err := db.NewClient(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close()

	cache, err := redis.NewClient(cfg.Redis, "bazario")
	if err != nil {
		return err
	}
	defer cache.Close()

	gatewayClient, err := gateway.NewClient(cfg.Gateway, logg)
	if err != nil {
		return err
	}

	settlementSvc, err := settlement.NewService(settlement.Params{
		TxRunner:           database,
		Listings:           listings.NewRepository(database.Gorm()),
		Orders:             orders.NewRepository(database.Gorm()),
		Ledger:             inventory.NewLedger(database.Gorm()),
		Outbox:             outbox.NewRepository(database.Gorm()),
		Gateway:            gatewayClient,
		Logger:             logg,
		Currency:           cfg.Settlement.Currency,
		ReservationTimeout: cfg.Settlement.ReservationTimeout,
	})
	if err != nil {
		return err
	}

	sweepJob, err := cron.NewReservationSweepJob(settlementSvc, logg)
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(cache, "settlement-cycle", cfg.Settlement.SweepInterval)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	cronSvc, err := cron.NewService(cron.Params{
		Jobs:     []cron.Job{sweepJob},
		Lock:     lock,
		Interval: cfg.Settlement.SweepInterval,
		Metrics:  metrics.NewCronJobMetrics(registry),
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	metricsServer := &http.Server{
		Addr:              ":" + env.Get("BAZARIO_METRICS_PORT", "9090"),
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server failed", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	return cronSvc.Run(ctx)
}
