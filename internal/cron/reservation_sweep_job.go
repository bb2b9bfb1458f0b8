package cron

import (
	"context"
	"fmt"

	"github.com/bazario-dev/bazario-backend/pkg/logger"
)

type abandonedSweeper interface {
	SweepAbandoned(ctx context.Context) (int, error)
}

// ReservationSweepJob cancels pending-payment orders whose reservations
// have outlived the hold timeout, returning their stock.
type ReservationSweepJob struct {
	sweeper abandonedSweeper
	logg    *logger.Logger
}

func NewReservationSweepJob(sweeper abandonedSweeper, logg *logger.Logger) (*ReservationSweepJob, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("cron: sweeper is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("cron: logger is required")
	}
	return &ReservationSweepJob{sweeper: sweeper, logg: logg}, nil
}

func (j *ReservationSweepJob) Name() string {
	return "reservation-sweep"
}

func (j *ReservationSweepJob) Run(ctx context.Context) error {
	swept, err := j.sweeper.SweepAbandoned(ctx)
	if swept > 0 {
		j.logg.Info(j.logg.WithField(ctx, "swept", swept), "stale orders cancelled")
	}
	return err
}
