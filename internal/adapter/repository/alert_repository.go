package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/loopwire/webhook-service/internal/apperrors"
	"github.com/loopwire/webhook-service/internal/domain/model"
	domainRepo "github.com/loopwire/webhook-service/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type alertRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *gorm.DB, logger *zap.Logger) domainRepo.AlertRepository {
	return &alertRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a new alert. Alerts are write-once; there is no update path.
func (r *alertRepository) Create(ctx context.Context, alert *model.WebhookAlert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}

	if err := r.db.WithContext(ctx).Create(alert).Error; err != nil {
		r.logger.Error("Failed to create webhook alert",
			zap.String("type", string(alert.Type)),
			zap.Error(err))
		return apperrors.NewAppError(apperrors.ErrUnavailable, "failed to create webhook alert", err)
	}

	return nil
}

// LatestByTypeAndProvider returns the newest alert of a type for one
// provider, nil when none exists
func (r *alertRepository) LatestByTypeAndProvider(ctx context.Context, alertType model.AlertType, provider model.Provider) (*model.WebhookAlert, error) {
	var alert model.WebhookAlert

	err := r.db.WithContext(ctx).
		Where("type = ? AND provider = ?", alertType, provider).
		Order("created_at DESC").
		First(&alert).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to read latest webhook alert",
			zap.String("type", string(alertType)),
			zap.String("provider", provider.String()),
			zap.Error(err))
		return nil, apperrors.NewAppError(apperrors.ErrUnavailable, "failed to read latest webhook alert", err)
	}

	return &alert, nil
}

// List returns alerts, optionally filtered by type, newest first
func (r *alertRepository) List(ctx context.Context, alertType *model.AlertType, limit, offset int) ([]*model.WebhookAlert, error) {
	var alerts []*model.WebhookAlert

	query := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset)
	if alertType != nil {
		query = query.Where("type = ?", *alertType)
	}

	if err := query.Find(&alerts).Error; err != nil {
		r.logger.Error("Failed to list webhook alerts", zap.Error(err))
		return nil, apperrors.NewAppError(apperrors.ErrUnavailable, "failed to list webhook alerts", err)
	}

	return alerts, nil
}
