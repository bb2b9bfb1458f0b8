package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bazario-dev/bazario-backend/internal/notifications"
	"github.com/bazario-dev/bazario-backend/pkg/config"
	"github.com/bazario-dev/bazario-backend/pkg/db"
	"github.com/bazario-dev/bazario-backend/pkg/env"
	"github.com/bazario-dev/bazario-backend/pkg/logger"
	"github.com/bazario-dev/bazario-backend/pkg/outbox"
)

func main() {
	_ = godotenv.Load()

	logg := logger.New(logger.Options{
		ServiceName: "bazario-notify-worker",
		Level:       logger.ParseLevel(env.Get("BAZARIO_LOG_LEVEL", "info")),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "notify worker exited with error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logg = logger.New(logger.Options{
		ServiceName: "bazario-notify-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	database, err := db.NewClient(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close()

	var providers []notifications.Provider
	if cfg.Notifier.SMSBaseURL != "" {
		providers = append(providers,
			notifications.NewSMSProvider("sms-primary", cfg.Notifier.SMSBaseURL, cfg.Notifier.SMSAPIKey, cfg.Notifier.Timeout))
	}
	if cfg.Notifier.SMSBackupURL != "" {
		providers = append(providers,
			notifications.NewSMSProvider("sms-backup", cfg.Notifier.SMSBackupURL, cfg.Notifier.SMSBackupKey, cfg.Notifier.Timeout))
	}
	if len(providers) == 0 {
		return fmt.Errorf("no notification providers configured")
	}

	notifySvc, err := notifications.NewService(logg, providers...)
	if err != nil {
		return err
	}

	worker, err := notifications.NewWorker(outbox.NewRepository(database.Gorm()), notifySvc, logg, cfg.Outbox)
	if err != nil {
		return err
	}

	return worker.Run(ctx)
}
