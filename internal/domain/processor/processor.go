package processor

import (
	"context"

	"github.com/loopwire/webhook-service/internal/domain/model"
)

// EventProcessor is the external business-logic collaborator. It receives a
// verified, persisted event record plus the parsed payload and reports
// success or failure. It is not assumed to be idempotent; the pipeline's
// locking and dedup guarantee it is invoked at most once per unique event.
type EventProcessor interface {
	Process(ctx context.Context, record *model.WebhookEventRecord, payload model.JSONB) error
}

// Func adapts a plain function to EventProcessor.
type Func func(ctx context.Context, record *model.WebhookEventRecord, payload model.JSONB) error

func (f Func) Process(ctx context.Context, record *model.WebhookEventRecord, payload model.JSONB) error {
	return f(ctx, record, payload)
}
