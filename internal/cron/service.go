package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/bazario-dev/bazario-backend/pkg/logger"
	"github.com/bazario-dev/bazario-backend/pkg/metrics"
)

type Params struct {
	Jobs     []Job
	Lock     *RedisLock
	Interval time.Duration
	Metrics  *metrics.CronJobMetrics
	Logger   *logger.Logger
}

// Service runs registered jobs on a fixed interval, one cycle at a time,
// behind a distributed lock.
type Service struct {
	jobs     []Job
	lock     *RedisLock
	interval time.Duration
	metrics  *metrics.CronJobMetrics
	logg     *logger.Logger
}

func NewService(params Params) (*Service, error) {
	if len(params.Jobs) == 0 {
		return nil, fmt.Errorf("cron: at least one job is required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("cron: lock is required")
	}
	if params.Interval <= 0 {
		return nil, fmt.Errorf("cron: interval must be positive")
	}
	if params.Metrics == nil {
		return nil, fmt.Errorf("cron: metrics are required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("cron: logger is required")
	}
	return &Service{
		jobs:     params.Jobs,
		lock:     params.Lock,
		interval: params.Interval,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logg.Info(ctx, "cron worker started")
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "cron cycle failed", err)
			}
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring cron lock: %w", err)
	}
	if !acquired {
		return nil
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "releasing cron lock failed", err)
		}
	}()

	var errs error
	for _, job := range s.jobs {
		jobCtx := s.logg.WithField(ctx, "job", job.Name())
		started := time.Now()
		err := job.Run(jobCtx)
		s.metrics.ObserveRun(job.Name(), time.Since(started), err)
		if err != nil {
			s.logg.Error(jobCtx, "cron job failed", err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", job.Name(), err))
		}
	}
	return errs
}
