package repository

import (
	"context"
	"time"

	"github.com/loopwire/webhook-service/internal/apperrors"
	"github.com/loopwire/webhook-service/internal/domain/model"
	domainRepo "github.com/loopwire/webhook-service/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type metricRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewMetricRepository creates a new metric repository
func NewMetricRepository(db *gorm.DB, logger *zap.Logger) domainRepo.MetricRepository {
	return &metricRepository{
		db:     db,
		logger: logger,
	}
}

// Increment bumps the (provider, metric, window) counter with an atomic
// upsert, so concurrent instances never lose increments.
func (r *metricRepository) Increment(ctx context.Context, provider model.Provider, metric string, windowStart time.Time, delta int64) error {
	row := &model.WebhookMetric{
		Provider:    provider,
		MetricName:  metric,
		WindowStart: windowStart,
		Count:       delta,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider"}, {Name: "metric_name"}, {Name: "window_start"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count": gorm.Expr("webhook_metrics.count + ?", delta),
			}),
		}).
		Create(row).Error

	if err != nil {
		r.logger.Error("Failed to increment webhook metric",
			zap.String("provider", provider.String()),
			zap.String("metric", metric),
			zap.Error(err))
		return apperrors.NewAppError(apperrors.ErrUnavailable, "failed to increment webhook metric", err)
	}

	return nil
}

// List returns counters for a provider since the given time
func (r *metricRepository) List(ctx context.Context, provider model.Provider, since time.Time) ([]*model.WebhookMetric, error) {
	var metrics []*model.WebhookMetric

	err := r.db.WithContext(ctx).
		Where("provider = ? AND window_start >= ?", provider, since).
		Order("window_start ASC").
		Find(&metrics).Error

	if err != nil {
		r.logger.Error("Failed to list webhook metrics",
			zap.String("provider", provider.String()),
			zap.Error(err))
		return nil, apperrors.NewAppError(apperrors.ErrUnavailable, "failed to list webhook metrics", err)
	}

	return metrics, nil
}
