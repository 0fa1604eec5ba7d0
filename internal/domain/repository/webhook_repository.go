package repository

import (
	"context"
	"time"

	"github.com/loopwire/webhook-service/internal/domain/model"
)

// EventRepository is the durable store for webhook event records. Every
// method that decides between concurrent callers (InsertIfAbsent,
// AcquireLock, the status updates) must be a single conditional operation
// at the storage layer; callers rely on that for correctness because
// instances share no memory.
type EventRepository interface {
	// InsertIfAbsent inserts a new record unless one already exists for
	// (provider, event_id). Returns inserted=true when this call created
	// the row. Check-and-insert is one conditional statement, not a read
	// followed by a write.
	InsertIfAbsent(ctx context.Context, record *model.WebhookEventRecord) (inserted bool, err error)

	// GetByEventID returns the record for (provider, event_id), or nil
	// when none exists.
	GetByEventID(ctx context.Context, provider model.Provider, eventID string) (*model.WebhookEventRecord, error)

	// AcquireLock claims the per-event lock for holder until the given
	// deadline, succeeding only where the lock is free or expired.
	// Returns acquired=false when another holder still owns the lock,
	// stolen=true when an expired lock was taken over.
	AcquireLock(ctx context.Context, provider model.Provider, eventID, holder string, until time.Time) (acquired bool, stolen bool, err error)

	// ReleaseLock clears the lock if still held by holder.
	ReleaseLock(ctx context.Context, provider model.Provider, eventID, holder string) error

	// UpdateStatus moves the record to status, applying extra column
	// updates, and appends the paired ProcessingLogEntry. The log write is
	// best effort: its failure must not undo the status write.
	UpdateStatus(ctx context.Context, provider model.Provider, eventID string, status model.ProcessingStatus, updates map[string]interface{}, logAction string, logDetail *string) error

	// GetDueForRetry returns events a worker should attempt, oldest
	// first: queued or failed events whose next_retry_at has passed,
	// plus received or processing events whose lock is expired or absent
	// long enough that their original handler must be presumed dead.
	GetDueForRetry(ctx context.Context, now time.Time, limit int) ([]*model.WebhookEventRecord, error)

	// ListDeadLettered returns dead-lettered events for the admin surface.
	ListDeadLettered(ctx context.Context, limit, offset int) ([]*model.WebhookEventRecord, error)

	// Requeue moves a dead-lettered event back to queued with a reset
	// retry budget. Only valid from dead_lettered; returns requeued=false
	// otherwise.
	Requeue(ctx context.Context, provider model.Provider, eventID string) (requeued bool, err error)
}

// LogRepository reads the append-only audit trail. Writes happen through
// EventRepository.UpdateStatus so transition and log stay paired.
type LogRepository interface {
	GetByEventID(ctx context.Context, eventID string, limit int) ([]*model.ProcessingLogEntry, error)
}

// AlertRepository persists raised alerts, write-once per incident.
type AlertRepository interface {
	Create(ctx context.Context, alert *model.WebhookAlert) error
	List(ctx context.Context, alertType *model.AlertType, limit, offset int) ([]*model.WebhookAlert, error)

	// LatestByTypeAndProvider returns the newest alert of the given type
	// for the provider, or nil when none exists. Suppression windows are
	// tracked per provider, so this must never mix providers.
	LatestByTypeAndProvider(ctx context.Context, alertType model.AlertType, provider model.Provider) (*model.WebhookAlert, error)
}

// MetricRepository maintains aggregated per-provider counters.
type MetricRepository interface {
	// Increment atomically adds delta to (provider, metric, windowStart),
	// creating the row when absent.
	Increment(ctx context.Context, provider model.Provider, metric string, windowStart time.Time, delta int64) error
	List(ctx context.Context, provider model.Provider, since time.Time) ([]*model.WebhookMetric, error)
}
