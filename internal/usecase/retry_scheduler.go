package usecase

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/loopwire/webhook-service/internal/domain/model"
	"github.com/loopwire/webhook-service/internal/domain/repository"
	"go.uber.org/zap"
)

// RetryScheduler decides when a failed event is retried and when it is
// permanently quarantined. Transient and permanent failures exhaust the
// same retry budget; operators intervene on dead-lettered events.
type RetryScheduler struct {
	events  repository.EventRepository
	metrics *MetricsService
	logger  *zap.Logger

	retryCeiling int
	base         time.Duration
	multiplier   float64
	max          time.Duration

	jitter func(d time.Duration) time.Duration
	now    func() time.Time
}

// NewRetryScheduler creates a retry scheduler with exponential backoff
func NewRetryScheduler(
	events repository.EventRepository,
	metrics *MetricsService,
	retryCeiling int,
	base time.Duration,
	multiplier float64,
	max time.Duration,
	logger *zap.Logger,
) *RetryScheduler {
	return &RetryScheduler{
		events:       events,
		metrics:      metrics,
		logger:       logger,
		retryCeiling: retryCeiling,
		base:         base,
		multiplier:   multiplier,
		max:          max,
		jitter: func(d time.Duration) time.Duration {
			if d <= 0 {
				return 0
			}
			return time.Duration(rand.Int63n(int64(d)))
		},
		now: time.Now,
	}
}

// WithJitter overrides the jitter source. Used by tests.
func (s *RetryScheduler) WithJitter(jitter func(d time.Duration) time.Duration) *RetryScheduler {
	s.jitter = jitter
	return s
}

// ShouldDeadLetter reports whether the record has exhausted its retry budget
func (s *RetryScheduler) ShouldDeadLetter(record *model.WebhookEventRecord) bool {
	return record.RetryCount >= s.retryCeiling
}

// CalculateRetryDelay returns base * multiplier^retryCount plus up to 25%
// random jitter, capped at the configured maximum. Ignoring jitter the
// delay is non-decreasing in retryCount.
func (s *RetryScheduler) CalculateRetryDelay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}

	delay := time.Duration(float64(s.base) * math.Pow(s.multiplier, float64(retryCount)))
	if delay > s.max || delay <= 0 {
		delay = s.max
	}

	delay += s.jitter(delay / 4)
	if delay > s.max {
		delay = s.max
	}

	return delay
}

// RecordFailure counts a failed attempt and routes it: quarantine once the
// retry budget is spent, otherwise schedule the next attempt. The budget
// decision lives here alone.
func (s *RetryScheduler) RecordFailure(ctx context.Context, record *model.WebhookEventRecord, cause error) error {
	record.RetryCount++
	if s.ShouldDeadLetter(record) {
		return s.MoveToDeadLetter(ctx, record, cause.Error())
	}

	// ScheduleRetry counts the attempt itself.
	record.RetryCount--
	return s.ScheduleRetry(ctx, record, cause)
}

// ScheduleRetry records a failed attempt: bumps retry_count, computes the
// next attempt time and returns the event to the queued state.
func (s *RetryScheduler) ScheduleRetry(ctx context.Context, record *model.WebhookEventRecord, cause error) error {
	attempts := record.RetryCount + 1
	nextRetry := s.now().Add(s.CalculateRetryDelay(attempts))
	detail := cause.Error()

	err := s.events.UpdateStatus(ctx, record.Provider, record.EventID, model.ProcessingStatusQueued,
		map[string]interface{}{
			"retry_count":   attempts,
			"last_error":    &detail,
			"next_retry_at": &nextRetry,
			"locked_by":     nil,
			"locked_until":  nil,
		},
		model.LogActionRetryQueued, &detail)
	if err != nil {
		return err
	}

	record.RetryCount = attempts
	record.NextRetryAt = &nextRetry
	record.ProcessingStatus = model.ProcessingStatusQueued

	s.metrics.Record(ctx, record.Provider, model.MetricFailed)

	s.logger.Info("Webhook event scheduled for retry",
		zap.String("event_id", record.EventID),
		zap.String("provider", record.Provider.String()),
		zap.Int("retry_count", attempts),
		zap.Time("next_retry_at", nextRetry))

	return nil
}

// MoveToDeadLetter quarantines the event permanently. Dead-lettered events
// are never picked up again without an explicit administrative requeue.
func (s *RetryScheduler) MoveToDeadLetter(ctx context.Context, record *model.WebhookEventRecord, reason string) error {
	err := s.events.UpdateStatus(ctx, record.Provider, record.EventID, model.ProcessingStatusDeadLettered,
		map[string]interface{}{
			"retry_count":   record.RetryCount,
			"last_error":    &reason,
			"next_retry_at": nil,
			"locked_by":     nil,
			"locked_until":  nil,
		},
		model.LogActionDeadLettered, &reason)
	if err != nil {
		return err
	}

	record.ProcessingStatus = model.ProcessingStatusDeadLettered

	s.metrics.Record(ctx, record.Provider, model.MetricDeadLettered)
	s.metrics.RaiseProcessingFailureAlert(ctx, record.Provider, record.EventID, reason)

	s.logger.Error("Webhook event dead-lettered",
		zap.String("event_id", record.EventID),
		zap.String("provider", record.Provider.String()),
		zap.Int("retry_count", record.RetryCount),
		zap.String("reason", reason))

	return nil
}
