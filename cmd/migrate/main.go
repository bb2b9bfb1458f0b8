package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/bazario-dev/bazario-backend/pkg/config"
	"github.com/bazario-dev/bazario-backend/pkg/db"
	"github.com/bazario-dev/bazario-backend/pkg/env"
	"github.com/bazario-dev/bazario-backend/pkg/logger"
	"github.com/bazario-dev/bazario-backend/pkg/migrate"
)

func main() {
	_ = godotenv.Load()

	logg := logger.New(logger.Options{
		ServiceName: "bazario-migrate",
		Level:       logger.ParseLevel(env.Get("BAZARIO_LOG_LEVEL", "info")),
	})

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "loading config failed", err)
		os.Exit(1)
	}

	database, err := db.NewClient(cfg.DB)
	if err != nil {
		logg.Error(ctx, "opening database failed", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := migrate.Up(ctx, database.Gorm()); err != nil {
		logg.Error(ctx, "applying migrations failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrations applied")
}
