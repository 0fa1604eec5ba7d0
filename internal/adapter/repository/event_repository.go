package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/loopwire/webhook-service/internal/apperrors"
	"github.com/loopwire/webhook-service/internal/domain/model"
	domainRepo "github.com/loopwire/webhook-service/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type eventRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB, logger *zap.Logger) domainRepo.EventRepository {
	return &eventRepository{
		db:     db,
		logger: logger,
	}
}

// InsertIfAbsent inserts the record unless (provider, event_id) already
// exists. The ON CONFLICT DO NOTHING clause makes the existence check and
// the insert one atomic statement, so two concurrent first deliveries can
// never both observe "no record".
func (r *eventRepository) InsertIfAbsent(ctx context.Context, record *model.WebhookEventRecord) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "event_id"}},
			DoNothing: true,
		}).
		Create(record)

	if result.Error != nil {
		r.logger.Error("Failed to insert webhook event",
			zap.String("event_id", record.EventID),
			zap.String("provider", record.Provider.String()),
			zap.Error(result.Error))
		return false, apperrors.NewAppError(apperrors.ErrUnavailable, "failed to insert webhook event", result.Error)
	}

	inserted := result.RowsAffected > 0
	if inserted {
		entry := &model.ProcessingLogEntry{
			EventID:         record.EventID,
			Provider:        record.Provider,
			Action:          model.LogActionReceived,
			ResultingStatus: model.ProcessingStatusReceived,
		}
		if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
			r.logger.Warn("Failed to append received log entry",
				zap.String("event_id", record.EventID),
				zap.Error(err))
		}
	}

	return inserted, nil
}

// GetByEventID retrieves an event record, returning nil when absent
func (r *eventRepository) GetByEventID(ctx context.Context, provider model.Provider, eventID string) (*model.WebhookEventRecord, error) {
	var record model.WebhookEventRecord

	err := r.db.WithContext(ctx).
		Where("provider = ? AND event_id = ?", provider, eventID).
		First(&record).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get webhook event",
			zap.String("event_id", eventID),
			zap.Error(err))
		return nil, apperrors.NewAppError(apperrors.ErrUnavailable, "failed to get webhook event", err)
	}

	return &record, nil
}

// AcquireLock claims the per-event lock with a single conditional UPDATE.
// The WHERE clause admits exactly one winner among concurrent callers:
// the lock must be free, expired, or already held by this holder. The CTE
// pins the row with FOR UPDATE and hands the prior lock state back through
// RETURNING, so the stolen verdict comes from the same statement that
// claimed the lock rather than a separate racy read.
func (r *eventRepository) AcquireLock(ctx context.Context, provider model.Provider, eventID, holder string, until time.Time) (bool, bool, error) {
	now := time.Now()

	var prevLockedBy *string
	var prevLockedUntil *time.Time

	err := r.db.WithContext(ctx).Raw(`
		WITH prev AS (
			SELECT locked_by, locked_until
			FROM webhook_events
			WHERE provider = ? AND event_id = ?
			FOR UPDATE
		)
		UPDATE webhook_events e
		SET locked_by = ?, locked_until = ?
		FROM prev
		WHERE e.provider = ? AND e.event_id = ?
		  AND (e.locked_by IS NULL OR e.locked_by = ? OR e.locked_until < ?)
		RETURNING prev.locked_by, prev.locked_until`,
		provider, eventID, holder, until, provider, eventID, holder, now).
		Row().Scan(&prevLockedBy, &prevLockedUntil)

	if err != nil {
		// No returned row: the event is absent or the lock is held by a
		// live holder. Either way the caller did not get the lock.
		if errors.Is(err, sql.ErrNoRows) {
			return false, false, nil
		}
		r.logger.Error("Failed to acquire event lock",
			zap.String("event_id", eventID),
			zap.String("holder", holder),
			zap.Error(err))
		return false, false, apperrors.NewAppError(apperrors.ErrUnavailable, "failed to acquire event lock", err)
	}

	stolen := prevLockedBy != nil && *prevLockedBy != holder &&
		prevLockedUntil != nil && prevLockedUntil.Before(now)
	return true, stolen, nil
}

// ReleaseLock clears the lock only while still owned by holder
func (r *eventRepository) ReleaseLock(ctx context.Context, provider model.Provider, eventID, holder string) error {
	result := r.db.WithContext(ctx).
		Model(&model.WebhookEventRecord{}).
		Where("provider = ? AND event_id = ? AND locked_by = ?", provider, eventID, holder).
		Updates(map[string]interface{}{
			"locked_by":    nil,
			"locked_until": nil,
		})

	if result.Error != nil {
		r.logger.Error("Failed to release event lock",
			zap.String("event_id", eventID),
			zap.String("holder", holder),
			zap.Error(result.Error))
		return apperrors.NewAppError(apperrors.ErrUnavailable, "failed to release event lock", result.Error)
	}

	return nil
}

// UpdateStatus advances the record and appends the paired audit log entry.
// The status write is authoritative; a failed log append is logged and
// swallowed rather than rolling the transition back.
func (r *eventRepository) UpdateStatus(ctx context.Context, provider model.Provider, eventID string, status model.ProcessingStatus, updates map[string]interface{}, logAction string, logDetail *string) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["processing_status"] = status

	result := r.db.WithContext(ctx).
		Model(&model.WebhookEventRecord{}).
		Where("provider = ? AND event_id = ?", provider, eventID).
		Updates(updates)

	if result.Error != nil {
		r.logger.Error("Failed to update webhook event status",
			zap.String("event_id", eventID),
			zap.String("status", string(status)),
			zap.Error(result.Error))
		return apperrors.NewAppError(apperrors.ErrUnavailable, "failed to update webhook event status", result.Error)
	}

	if result.RowsAffected == 0 {
		return apperrors.NewAppError(apperrors.ErrNotFound, fmt.Sprintf("webhook event not found: %s", eventID), nil)
	}

	entry := &model.ProcessingLogEntry{
		EventID:         eventID,
		Provider:        provider,
		Action:          logAction,
		ResultingStatus: status,
		Detail:          logDetail,
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		r.logger.Warn("Failed to append processing log entry",
			zap.String("event_id", eventID),
			zap.String("action", logAction),
			zap.Error(err))
	}

	return nil
}

// receivedRecoveryGrace is how long a received row may sit unlocked before
// the worker treats its intake as dead and picks the event up itself.
const receivedRecoveryGrace = time.Minute

// GetDueForRetry returns events a worker should attempt, oldest first:
// queued or failed events whose retry time has passed, processing events
// whose lock expired (the holder crashed mid-flight), and received events
// left unlocked past the recovery grace (the intake died before claiming
// the lock). Without the last two, a crash between insert and completion
// would strand the event forever.
func (r *eventRepository) GetDueForRetry(ctx context.Context, now time.Time, limit int) ([]*model.WebhookEventRecord, error) {
	var records []*model.WebhookEventRecord

	query := r.db.WithContext(ctx).
		Where(
			r.db.Where("processing_status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)",
				model.ProcessingStatusQueued,
				model.ProcessingStatusFailed,
				now).
				Or("processing_status = ? AND (locked_until IS NULL OR locked_until < ?)",
					model.ProcessingStatusProcessing,
					now).
				Or("processing_status = ? AND (locked_until IS NULL OR locked_until < ?) AND received_at <= ?",
					model.ProcessingStatusReceived,
					now,
					now.Add(-receivedRecoveryGrace)),
		).
		Order("received_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&records).Error; err != nil {
		r.logger.Error("Failed to get retryable webhook events", zap.Error(err))
		return nil, apperrors.NewAppError(apperrors.ErrUnavailable, "failed to get retryable webhook events", err)
	}

	return records, nil
}

// ListDeadLettered returns dead-lettered events for operational review
func (r *eventRepository) ListDeadLettered(ctx context.Context, limit, offset int) ([]*model.WebhookEventRecord, error) {
	var records []*model.WebhookEventRecord

	err := r.db.WithContext(ctx).
		Where("processing_status = ?", model.ProcessingStatusDeadLettered).
		Order("received_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error

	if err != nil {
		r.logger.Error("Failed to list dead-lettered events", zap.Error(err))
		return nil, apperrors.NewAppError(apperrors.ErrUnavailable, "failed to list dead-lettered events", err)
	}

	return records, nil
}

// Requeue moves a dead-lettered event back to queued with a fresh retry
// budget. The conditional WHERE keeps it a no-op for any other status.
func (r *eventRepository) Requeue(ctx context.Context, provider model.Provider, eventID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.WebhookEventRecord{}).
		Where("provider = ? AND event_id = ? AND processing_status = ?",
			provider, eventID, model.ProcessingStatusDeadLettered).
		Updates(map[string]interface{}{
			"processing_status": model.ProcessingStatusQueued,
			"retry_count":       0,
			"next_retry_at":     time.Now(),
			"locked_by":         nil,
			"locked_until":      nil,
		})

	if result.Error != nil {
		r.logger.Error("Failed to requeue dead-lettered event",
			zap.String("event_id", eventID),
			zap.Error(result.Error))
		return false, apperrors.NewAppError(apperrors.ErrUnavailable, "failed to requeue event", result.Error)
	}

	if result.RowsAffected == 0 {
		return false, nil
	}

	entry := &model.ProcessingLogEntry{
		EventID:         eventID,
		Provider:        provider,
		Action:          model.LogActionRequeued,
		ResultingStatus: model.ProcessingStatusQueued,
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		r.logger.Warn("Failed to append requeue log entry",
			zap.String("event_id", eventID),
			zap.Error(err))
	}

	return true, nil
}
