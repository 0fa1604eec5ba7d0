package usecase

import (
	"context"
	"time"

	"github.com/loopwire/webhook-service/internal/apperrors"
	"github.com/loopwire/webhook-service/internal/domain/model"
	"github.com/loopwire/webhook-service/internal/domain/repository"
	"github.com/loopwire/webhook-service/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// Decision is the idempotency verdict for one delivery
type Decision string

const (
	DecisionNew          Decision = "new"
	DecisionDuplicate    Decision = "duplicate"
	DecisionReplayAttack Decision = "replay_attack"
)

// IdempotencyEngine guarantees each unique event is acted upon at most once
// across stateless instances. All mutual exclusion lives in the store:
// registration is a conditional insert and the per-event lock a conditional
// update. The redis cache is a read hint only.
type IdempotencyEngine struct {
	events  repository.EventRepository
	metrics *MetricsService
	cache   cache.DedupeCache
	logger  *zap.Logger

	lockTimeout time.Duration
	now         func() time.Time
}

// NewIdempotencyEngine creates the engine
func NewIdempotencyEngine(
	events repository.EventRepository,
	metrics *MetricsService,
	dedupeCache cache.DedupeCache,
	lockTimeout time.Duration,
	logger *zap.Logger,
) *IdempotencyEngine {
	return &IdempotencyEngine{
		events:      events,
		metrics:     metrics,
		cache:       dedupeCache,
		logger:      logger,
		lockTimeout: lockTimeout,
		now:         time.Now,
	}
}

// WithClock overrides the engine clock. Used by tests.
func (e *IdempotencyEngine) WithClock(now func() time.Time) *IdempotencyEngine {
	e.now = now
	return e
}

// Register decides NEW, DUPLICATE or REPLAY_ATTACK for a verified delivery
// and, for NEW, durably creates the event record in the same conditional
// insert that performed the existence check.
func (e *IdempotencyEngine) Register(ctx context.Context, provider model.Provider, eventID, eventType, payloadHash string, payload model.JSONB) (Decision, *model.WebhookEventRecord, error) {
	// Fast path: a cache hit means the event is very likely known, so the
	// insert can be skipped. The store still decides; a stale or missing
	// cache entry just falls through to the conditional insert.
	if cachedHash, seen := e.cache.Lookup(ctx, provider, eventID); seen {
		existing, err := e.events.GetByEventID(ctx, provider, eventID)
		if err != nil {
			return "", nil, err
		}
		if existing != nil {
			return e.classifyExisting(ctx, existing, payloadHash), existing, nil
		}
		e.logger.Debug("Dedupe cache entry without store record, falling through",
			zap.String("event_id", eventID),
			zap.String("cached_hash", cachedHash))
	}

	record := &model.WebhookEventRecord{
		EventID:            eventID,
		Provider:           provider,
		EventType:          eventType,
		PayloadHash:        payloadHash,
		Payload:            payload,
		VerificationStatus: model.VerificationStatusVerified,
		ProcessingStatus:   model.ProcessingStatusReceived,
		ReceivedAt:         e.now(),
	}

	inserted, err := e.events.InsertIfAbsent(ctx, record)
	if err != nil {
		return "", nil, err
	}

	if inserted {
		e.cache.Remember(ctx, provider, eventID, payloadHash, 2*time.Hour)
		return DecisionNew, record, nil
	}

	existing, err := e.events.GetByEventID(ctx, provider, eventID)
	if err != nil {
		return "", nil, err
	}
	if existing == nil {
		// The row vanishing between conflict and read would mean a deleted
		// event, which the store never does.
		return "", nil, apperrors.NewAppError(apperrors.ErrUnavailable, "webhook event disappeared after conflict", nil)
	}

	return e.classifyExisting(ctx, existing, payloadHash), existing, nil
}

// classifyExisting compares the stored payload hash against the incoming
// one. The stored hash is never overwritten: a mismatch is a forgery
// attempt, not a data update.
func (e *IdempotencyEngine) classifyExisting(ctx context.Context, existing *model.WebhookEventRecord, payloadHash string) Decision {
	if existing.PayloadHash == payloadHash {
		e.metrics.RecordDuplicate(ctx, existing.Provider)
		return DecisionDuplicate
	}

	e.metrics.Record(ctx, existing.Provider, model.MetricReplayAttack)
	e.metrics.RaiseReplayAlert(ctx, existing.Provider, existing.EventID, existing.PayloadHash, payloadHash)

	e.logger.Error("Replay attack detected: payload hash mismatch",
		zap.String("event_id", existing.EventID),
		zap.String("provider", existing.Provider.String()))

	return DecisionReplayAttack
}

// AcquireForProcessing claims the per-event lock and re-reads the record.
// It returns acquired=false when another holder is still in flight, and
// a nil record when the event turned out to be terminal: a stolen lock must
// re-check that processing did not already complete before repeating work.
func (e *IdempotencyEngine) AcquireForProcessing(ctx context.Context, provider model.Provider, eventID, holder string) (*model.WebhookEventRecord, bool, error) {
	before, err := e.events.GetByEventID(ctx, provider, eventID)
	if err != nil {
		return nil, false, err
	}
	if before == nil || before.ProcessingStatus.IsTerminal() {
		return nil, false, nil
	}

	until := e.now().Add(e.lockTimeout)
	acquired, stolen, err := e.events.AcquireLock(ctx, provider, eventID, holder, until)
	if err != nil {
		return nil, false, err
	}
	if !acquired {
		return nil, false, nil
	}

	if stolen {
		previousHolder := ""
		if before.LockedBy != nil {
			previousHolder = *before.LockedBy
		}
		e.metrics.RaiseLockTimeoutAlert(ctx, provider, eventID, previousHolder)
	}

	// Re-check after winning the lock: a slow previous holder may have
	// completed between the read above and the conditional update.
	record, err := e.events.GetByEventID(ctx, provider, eventID)
	if err != nil {
		return nil, false, err
	}
	if record == nil || record.ProcessingStatus.IsTerminal() {
		if relErr := e.events.ReleaseLock(ctx, provider, eventID, holder); relErr != nil {
			e.logger.Warn("Failed to release lock on terminal event",
				zap.String("event_id", eventID),
				zap.Error(relErr))
		}
		return nil, false, nil
	}

	return record, true, nil
}

// Release gives the lock back without a status change
func (e *IdempotencyEngine) Release(ctx context.Context, provider model.Provider, eventID, holder string) error {
	return e.events.ReleaseLock(ctx, provider, eventID, holder)
}
