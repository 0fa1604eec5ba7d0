package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/loopwire/webhook-service/internal/domain/model"
	"github.com/loopwire/webhook-service/internal/domain/repository"
	"github.com/loopwire/webhook-service/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// MetricsService maintains per-provider stage counters and raises alerts.
// Counter failures never fail the pipeline; the event outcome is decided by
// the event store alone.
type MetricsService struct {
	metrics repository.MetricRepository
	alerts  repository.AlertRepository
	cache   cache.DedupeCache
	logger  *zap.Logger

	metricWindow   time.Duration
	stormThreshold int
	stormWindow    time.Duration
	now            func() time.Time
}

// NewMetricsService creates a metrics and alerting service
func NewMetricsService(
	metrics repository.MetricRepository,
	alerts repository.AlertRepository,
	dedupeCache cache.DedupeCache,
	metricWindow time.Duration,
	stormThreshold int,
	stormWindow time.Duration,
	logger *zap.Logger,
) *MetricsService {
	return &MetricsService{
		metrics:        metrics,
		alerts:         alerts,
		cache:          dedupeCache,
		logger:         logger,
		metricWindow:   metricWindow,
		stormThreshold: stormThreshold,
		stormWindow:    stormWindow,
		now:            time.Now,
	}
}

// WithClock overrides the service clock. Used by tests.
func (s *MetricsService) WithClock(now func() time.Time) *MetricsService {
	s.now = now
	return s
}

// Record bumps one stage counter for a provider in the current window
func (s *MetricsService) Record(ctx context.Context, provider model.Provider, metric string) {
	window := s.now().Truncate(s.metricWindow)
	if err := s.metrics.Increment(ctx, provider, metric, window, 1); err != nil {
		s.logger.Warn("Failed to record webhook metric",
			zap.String("provider", provider.String()),
			zap.String("metric", metric),
			zap.Error(err))
	}
}

// RecordDuplicate counts a duplicate delivery and checks for a duplicate
// storm. The storm alert is raised once per window: the counter totals are
// read back from the store, and an existing alert inside the window
// suppresses a second one.
func (s *MetricsService) RecordDuplicate(ctx context.Context, provider model.Provider) {
	s.Record(ctx, provider, model.MetricDuplicate)

	since := s.now().Add(-s.stormWindow)
	rows, err := s.metrics.List(ctx, provider, since)
	if err != nil {
		return
	}

	var duplicates int64
	for _, row := range rows {
		if row.MetricName == model.MetricDuplicate {
			duplicates += row.Count
		}
	}
	if duplicates < int64(s.stormThreshold) {
		return
	}

	// One alert per incident, tracked per provider: an alert raised for
	// another provider's storm must not mask this one.
	latest, err := s.alerts.LatestByTypeAndProvider(ctx, model.AlertTypeHighDuplicateVolume, provider)
	if err != nil {
		return
	}
	if latest != nil && latest.CreatedAt.After(since) {
		return
	}

	s.raise(ctx, &model.WebhookAlert{
		Type:     model.AlertTypeHighDuplicateVolume,
		Severity: model.AlertSeverityWarning,
		Provider: provider,
		Message:  fmt.Sprintf("duplicate deliveries exceeded threshold: %d in %s", duplicates, s.stormWindow),
		Detail: model.JSONB{
			"duplicate_count": duplicates,
			"threshold":       s.stormThreshold,
			"window":          s.stormWindow.String(),
		},
	})
}

// RaiseReplayAlert records a replay attack: the same event id presented
// with a different payload. Both hashes are kept for investigation.
func (s *MetricsService) RaiseReplayAlert(ctx context.Context, provider model.Provider, eventID, storedHash, incomingHash string) {
	s.raise(ctx, &model.WebhookAlert{
		Type:     model.AlertTypeReplayAttack,
		Severity: model.AlertSeverityCritical,
		Provider: provider,
		EventID:  &eventID,
		Message:  fmt.Sprintf("payload hash mismatch for previously seen event %s", eventID),
		Detail: model.JSONB{
			"stored_hash":   storedHash,
			"incoming_hash": incomingHash,
		},
	})
}

// RaiseLockTimeoutAlert reports that a lock outlived its timeout and was
// taken over by another holder.
func (s *MetricsService) RaiseLockTimeoutAlert(ctx context.Context, provider model.Provider, eventID, previousHolder string) {
	s.raise(ctx, &model.WebhookAlert{
		Type:     model.AlertTypeLockTimeout,
		Severity: model.AlertSeverityWarning,
		Provider: provider,
		EventID:  &eventID,
		Message:  fmt.Sprintf("processing lock expired and was stolen for event %s", eventID),
		Detail: model.JSONB{
			"previous_holder": previousHolder,
		},
	})
}

// RaiseProcessingFailureAlert reports an event that exhausted its retry
// budget and was dead-lettered.
func (s *MetricsService) RaiseProcessingFailureAlert(ctx context.Context, provider model.Provider, eventID, reason string) {
	s.raise(ctx, &model.WebhookAlert{
		Type:     model.AlertTypeProcessingFailure,
		Severity: model.AlertSeverityCritical,
		Provider: provider,
		EventID:  &eventID,
		Message:  fmt.Sprintf("event %s dead-lettered after exhausting retries", eventID),
		Detail: model.JSONB{
			"reason": reason,
		},
	})
}

// RaiseUnknownEventTypeAlert reports a verified event whose payload carries
// no recognizable event type.
func (s *MetricsService) RaiseUnknownEventTypeAlert(ctx context.Context, provider model.Provider, eventID, eventType string) {
	s.raise(ctx, &model.WebhookAlert{
		Type:     model.AlertTypeUnknownEventType,
		Severity: model.AlertSeverityInfo,
		Provider: provider,
		EventID:  &eventID,
		Message:  fmt.Sprintf("event %s carries unknown event type %q", eventID, eventType),
		Detail: model.JSONB{
			"event_type": eventType,
		},
	})
}

func (s *MetricsService) raise(ctx context.Context, alert *model.WebhookAlert) {
	if err := s.alerts.Create(ctx, alert); err != nil {
		s.logger.Error("Failed to persist webhook alert",
			zap.String("type", string(alert.Type)),
			zap.Error(err))
		return
	}

	s.cache.PublishAlert(ctx, alert)

	s.logger.Warn("Webhook alert raised",
		zap.String("type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)),
		zap.String("provider", alert.Provider.String()))
}
