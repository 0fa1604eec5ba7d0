package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/loopwire/webhook-service/internal/domain/model"
	"github.com/loopwire/webhook-service/internal/domain/processor"
	"go.uber.org/zap"
)

// HTTPDispatcher hands a verified, persisted event to the downstream
// business-logic service over HTTP. A non-2xx response or transport error
// is a processing failure; the pipeline's retry scheduler owns what happens
// next.
type HTTPDispatcher struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewHTTPDispatcher creates a dispatcher targeting url
func NewHTTPDispatcher(url string, timeout time.Duration, logger *zap.Logger) *HTTPDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPDispatcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type dispatchEnvelope struct {
	EventID   string      `json:"event_id"`
	Provider  string      `json:"provider"`
	EventType string      `json:"event_type"`
	Payload   model.JSONB `json:"payload"`
}

// Process implements processor.EventProcessor
func (d *HTTPDispatcher) Process(ctx context.Context, record *model.WebhookEventRecord, payload model.JSONB) error {
	body, err := json.Marshal(dispatchEnvelope{
		EventID:   record.EventID,
		Provider:  record.Provider.String(),
		EventType: record.EventType,
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("downstream dispatch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("downstream responded %d", resp.StatusCode)
	}

	return nil
}

// LogOnly returns a processor that records the handoff and succeeds. Used
// when no downstream URL is configured, typically in development.
func LogOnly(logger *zap.Logger) processor.EventProcessor {
	return processor.Func(func(_ context.Context, record *model.WebhookEventRecord, _ model.JSONB) error {
		logger.Info("Event handed off (log-only dispatcher)",
			zap.String("event_id", record.EventID),
			zap.String("provider", record.Provider.String()),
			zap.String("event_type", record.EventType))
		return nil
	})
}
