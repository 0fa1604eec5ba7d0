package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/loopwire/webhook-service/internal/domain/repository"
	"github.com/loopwire/webhook-service/internal/usecase"
	"go.uber.org/zap"
)

// RetryWorker periodically picks up queued events whose retry time has
// passed and runs them through the same lock-and-process path as the
// intake endpoint. Multiple instances may run the worker concurrently;
// the per-event lock arbitrates.
type RetryWorker struct {
	events    repository.EventRepository
	engine    *usecase.IdempotencyEngine
	pipeline  *usecase.WebhookPipeline
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
}

// NewRetryWorker creates a retry worker
func NewRetryWorker(
	events repository.EventRepository,
	engine *usecase.IdempotencyEngine,
	pipeline *usecase.WebhookPipeline,
	interval time.Duration,
	batchSize int,
	logger *zap.Logger,
) *RetryWorker {
	return &RetryWorker{
		events:    events,
		engine:    engine,
		pipeline:  pipeline,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until the context is cancelled
func (w *RetryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Retry worker started",
		zap.Duration("interval", w.interval),
		zap.Int("batch_size", w.batchSize))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Retry worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce processes one batch of due events
func (w *RetryWorker) RunOnce(ctx context.Context) {
	records, err := w.events.GetDueForRetry(ctx, time.Now(), w.batchSize)
	if err != nil {
		w.logger.Error("Failed to fetch retryable events", zap.Error(err))
		return
	}

	for _, record := range records {
		holder := uuid.NewString()

		locked, acquired, err := w.engine.AcquireForProcessing(ctx, record.Provider, record.EventID, holder)
		if err != nil {
			w.logger.Error("Failed to claim event for retry",
				zap.String("event_id", record.EventID),
				zap.Error(err))
			continue
		}
		if !acquired {
			continue
		}

		if err := w.pipeline.ProcessLocked(ctx, locked, holder); err != nil {
			w.logger.Error("Retry attempt failed to record outcome",
				zap.String("event_id", locked.EventID),
				zap.Error(err))
		}
	}
}
