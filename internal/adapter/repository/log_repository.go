package repository

import (
	"context"

	"github.com/loopwire/webhook-service/internal/apperrors"
	"github.com/loopwire/webhook-service/internal/domain/model"
	domainRepo "github.com/loopwire/webhook-service/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type logRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewLogRepository creates a new processing log repository
func NewLogRepository(db *gorm.DB, logger *zap.Logger) domainRepo.LogRepository {
	return &logRepository{
		db:     db,
		logger: logger,
	}
}

// GetByEventID returns the audit trail for one event, oldest first
func (r *logRepository) GetByEventID(ctx context.Context, eventID string, limit int) ([]*model.ProcessingLogEntry, error) {
	var entries []*model.ProcessingLogEntry

	query := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&entries).Error; err != nil {
		r.logger.Error("Failed to get processing log entries",
			zap.String("event_id", eventID),
			zap.Error(err))
		return nil, apperrors.NewAppError(apperrors.ErrUnavailable, "failed to get processing log entries", err)
	}

	return entries, nil
}
