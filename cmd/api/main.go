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

	"github.com/bazario-dev/bazario-backend/api/routes"
	"github.com/bazario-dev/bazario-backend/internal/inventory"
	"github.com/bazario-dev/bazario-backend/internal/listings"
	"github.com/bazario-dev/bazario-backend/internal/orders"
	"github.com/bazario-dev/bazario-backend/internal/settlement"
	"github.com/bazario-dev/bazario-backend/pkg/config"
	"github.com/bazario-dev/bazario-backend/pkg/db"
	"github.com/bazario-dev/bazario-backend/pkg/env"
	"github.com/bazario-dev/bazario-backend/pkg/gateway"
	"github.com/bazario-dev/bazario-backend/pkg/logger"
	"github.com/bazario-dev/bazario-backend/pkg/migrate"
	"github.com/bazario-dev/bazario-backend/pkg/outbox"
	"github.com/bazario-dev/bazario-backend/pkg/redis"
)

func main() {
	_ = godotenv.Load()

	logg := logger.New(logger.Options{
		ServiceName: "bazario-api",
		Level:       logger.ParseLevel(env.Get("BAZARIO_LOG_LEVEL", "info")),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logg); err != nil {
		logg.Error(ctx, "api exited with error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logg = logger.New(logger.Options{
		ServiceName: "bazario-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	database, err := db.NewClient(cfg.DB)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logg.Error(ctx, "closing database failed", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, database.Gorm(), logg); err != nil {
		return err
	}

	cache, err := redis.NewClient(cfg.Redis, "bazario")
	if err != nil {
		return err
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logg.Error(ctx, "closing redis failed", err)
		}
	}()

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
		CallbackBaseURL:    env.Get("BAZARIO_PUBLIC_BASE_URL", ""),
		ReservationTimeout: cfg.Settlement.ReservationTimeout,
	})
	if err != nil {
		return err
	}

	router, err := routes.NewRouter(routes.Params{
		Config:     cfg,
		Logger:     logg,
		DB:         database,
		Redis:      cache,
		Settlement: settlementSvc,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "api listening on :"+cfg.App.Port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
