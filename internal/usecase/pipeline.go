package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/loopwire/webhook-service/internal/apperrors"
	"github.com/loopwire/webhook-service/internal/domain/model"
	"github.com/loopwire/webhook-service/internal/domain/processor"
	"github.com/loopwire/webhook-service/internal/infrastructure/crypto"
	"github.com/loopwire/webhook-service/internal/verifier"
	"go.uber.org/zap"
)

// DeliveryResult is the pipeline verdict handed to the HTTP layer
type DeliveryResult string

const (
	// ResultProcessed: new event, verified, persisted and handed to the
	// processor (whatever the processor outcome, delivery succeeded).
	ResultProcessed DeliveryResult = "processed"
	// ResultDuplicate: benign redelivery of a known payload, or the event
	// is currently locked by another instance. Reported as success.
	ResultDuplicate DeliveryResult = "duplicate"
	// ResultReplayRejected: same event id, different payload. Never
	// processed; reported as rejected without internal detail.
	ResultReplayRejected DeliveryResult = "replay_rejected"
)

// VerificationError carries the verifier category for a rejected delivery.
// It never wraps payload or signature contents.
type VerificationError struct {
	Result verifier.Result
}

func (e *VerificationError) Error() string {
	return "signature verification failed: " + string(e.Result)
}

// ProviderSettings is a resolved provider configuration
type ProviderSettings struct {
	Secret    string
	Tolerance time.Duration
}

// WebhookPipeline runs a delivery end to end: verify, hash, register,
// lock, dispatch, record outcome. It owns no state beyond configuration;
// everything shared lives in the store.
type WebhookPipeline struct {
	providers map[model.Provider]*verifier.SignatureVerifier
	engine    *IdempotencyEngine
	scheduler *RetryScheduler
	metrics   *MetricsService
	proc      processor.EventProcessor
	logger    *zap.Logger

	now func() time.Time
}

// NewWebhookPipeline creates the delivery pipeline
func NewWebhookPipeline(
	providers map[model.Provider]ProviderSettings,
	engine *IdempotencyEngine,
	scheduler *RetryScheduler,
	metrics *MetricsService,
	proc processor.EventProcessor,
	logger *zap.Logger,
) *WebhookPipeline {
	verifiers := make(map[model.Provider]*verifier.SignatureVerifier, len(providers))
	for p, settings := range providers {
		verifiers[p] = verifier.New(settings.Secret, settings.Tolerance)
	}

	return &WebhookPipeline{
		providers: verifiers,
		engine:    engine,
		scheduler: scheduler,
		metrics:   metrics,
		proc:      proc,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleDelivery processes one inbound webhook request. The raw body has
// already been read exactly once by the caller. Returned errors are coded:
// UNAUTHENTICATED maps to 401, UNAVAILABLE to 500.
func (p *WebhookPipeline) HandleDelivery(ctx context.Context, prov model.Provider, rawBody []byte, signatureHeader string) (DeliveryResult, error) {
	v, ok := p.providers[prov]
	if !ok {
		// No secret means no verification is possible. Same response as a
		// bad signature so probing reveals nothing.
		return "", apperrors.NewAppError(apperrors.ErrUnauthenticated, "unknown provider", nil)
	}

	p.metrics.Record(ctx, prov, model.MetricReceived)

	// Verification runs before any durable write. Unverified input never
	// reaches the store.
	if result := v.Verify(rawBody, signatureHeader); result != verifier.ResultValid {
		p.metrics.Record(ctx, prov, model.MetricVerificationFailed)
		p.logger.Warn("Webhook signature rejected",
			zap.String("provider", prov.String()),
			zap.String("reason", string(result)))
		return "", &VerificationError{Result: result}
	}
	p.metrics.Record(ctx, prov, model.MetricVerified)

	payloadHash := crypto.HashPayload(rawBody)
	eventID, eventType, payload := parseEnvelope(rawBody)
	if eventID == "" {
		return "", apperrors.NewAppError(apperrors.ErrInvalidArgument, "payload carries no event id", nil)
	}

	decision, record, err := p.engine.Register(ctx, prov, eventID, eventType, payloadHash, payload)
	if err != nil {
		return "", err
	}

	switch decision {
	case DecisionReplayAttack:
		return ResultReplayRejected, nil
	case DecisionDuplicate:
		if record.ProcessingStatus.IsTerminal() {
			// The provider already got its event handled; repeat the success.
			return ResultDuplicate, nil
		}
		// Non-terminal redelivery: the first delivery either crashed
		// before finishing or is still in flight. The lock below tells
		// those apart, so a stranded event is picked back up here
		// instead of being acknowledged and forgotten.
	case DecisionNew:
		if eventType == "" {
			p.metrics.RaiseUnknownEventTypeAlert(ctx, prov, eventID, eventType)
		}
	}

	return p.attempt(ctx, record)
}

// attempt claims the lock and runs the processor once. A lost lock race is
// reported as duplicate: some other instance is doing the work.
func (p *WebhookPipeline) attempt(ctx context.Context, record *model.WebhookEventRecord) (DeliveryResult, error) {
	holder := uuid.NewString()

	locked, acquired, err := p.engine.AcquireForProcessing(ctx, record.Provider, record.EventID, holder)
	if err != nil {
		return "", err
	}
	if !acquired {
		return ResultDuplicate, nil
	}

	if err := p.ProcessLocked(ctx, locked, holder); err != nil {
		return "", err
	}

	return ResultProcessed, nil
}

// ProcessLocked dispatches a locked event to the external processor and
// records the outcome. Callers must hold the lock under holder. Shared by
// the intake path and the retry worker.
func (p *WebhookPipeline) ProcessLocked(ctx context.Context, record *model.WebhookEventRecord, holder string) error {
	events := p.engine.events

	if err := events.UpdateStatus(ctx, record.Provider, record.EventID, model.ProcessingStatusProcessing,
		nil, model.LogActionProcessing, nil); err != nil {
		return err
	}

	procErr := p.proc.Process(ctx, record, record.Payload)
	if procErr == nil {
		now := p.now()
		detail := record.EventType
		if err := events.UpdateStatus(ctx, record.Provider, record.EventID, model.ProcessingStatusCompleted,
			map[string]interface{}{
				"processed_at": &now,
				"locked_by":    nil,
				"locked_until": nil,
			},
			model.LogActionCompleted, &detail); err != nil {
			return err
		}

		p.metrics.Record(ctx, record.Provider, model.MetricProcessed)

		p.logger.Info("Webhook event processed",
			zap.String("event_id", record.EventID),
			zap.String("provider", record.Provider.String()),
			zap.String("event_type", record.EventType))
		return nil
	}

	p.logger.Warn("Webhook processor failed",
		zap.String("event_id", record.EventID),
		zap.String("provider", record.Provider.String()),
		zap.Int("retry_count", record.RetryCount),
		zap.Error(procErr))

	return p.scheduler.RecordFailure(ctx, record, procErr)
}

// parseEnvelope extracts the provider's event id and semantic type from the
// payload. Anything unparseable is kept verbatim under "raw" so the stored
// record still holds the exact bytes' content for investigation.
func parseEnvelope(rawBody []byte) (eventID, eventType string, payload model.JSONB) {
	if err := json.Unmarshal(rawBody, &payload); err != nil || payload == nil {
		return "", "", model.JSONB{"raw": string(rawBody)}
	}

	if id, ok := payload["id"].(string); ok {
		eventID = id
	}
	if t, ok := payload["type"].(string); ok {
		eventType = t
	}
	return eventID, eventType, payload
}
