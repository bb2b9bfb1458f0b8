package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/bazario-dev/bazario-backend/pkg/config"
	"github.com/bazario-dev/bazario-backend/pkg/logger"
	"github.com/bazario-dev/bazario-backend/pkg/outbox"
)

// Worker drains the outbox and hands events to the notification service.
// Delivery is at-least-once: an event is only marked published after a
// provider accepted it.
type Worker struct {
	outbox      *outbox.Repository
	service     *Service
	logg        *logger.Logger
	batchSize   int
	maxAttempts int
	interval    time.Duration
}

func NewWorker(repo *outbox.Repository, service *Service, logg *logger.Logger, cfg config.OutboxConfig) (*Worker, error) {
	if repo == nil || service == nil || logg == nil {
		return nil, fmt.Errorf("notifications: worker dependencies are required")
	}
	return &Worker{
		outbox:      repo,
		service:     service,
		logg:        logg,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		interval:    time.Duration(cfg.PollIntervalMS) * time.Millisecond,
	}, nil
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logg.Info(ctx, "notify worker started")
	for {
		select {
		case <-ctx.Done():
			w.logg.Info(ctx, "notify worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := w.DrainOnce(ctx); err != nil {
				w.logg.Error(ctx, "outbox drain cycle failed", err)
			}
		}
	}
}

// DrainOnce processes a single batch.
func (w *Worker) DrainOnce(ctx context.Context) error {
	events, err := w.outbox.PollPending(ctx, w.batchSize, w.maxAttempts)
	if err != nil {
		return err
	}

	for _, event := range events {
		eventCtx := w.logg.WithFields(ctx, map[string]any{
			"event_id":   event.ID.String(),
			"event_type": event.EventType.String(),
		})

		if err := w.service.Dispatch(ctx, event); err != nil {
			w.logg.Error(eventCtx, "notification dispatch failed", err)
			if markErr := w.outbox.MarkFailed(ctx, event.ID, err); markErr != nil {
				w.logg.Error(eventCtx, "marking event failed errored", markErr)
			}
			continue
		}
		if err := w.outbox.MarkPublished(ctx, event.ID); err != nil {
			w.logg.Error(eventCtx, "marking event published errored", err)
		}
	}
	return nil
}
