package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/loopwire/webhook-service/internal/apperrors"
	"github.com/loopwire/webhook-service/internal/domain/model"
	"github.com/loopwire/webhook-service/internal/usecase"
	"go.uber.org/zap"
)

// SignatureHeader carries the provider's signed envelope:
// t=<unix>,v1=<hmac>[,v1=<hmac>...]
const SignatureHeader = "Webhook-Signature"

// DeliveryPipeline is the part of the pipeline the intake endpoint needs
type DeliveryPipeline interface {
	HandleDelivery(ctx context.Context, provider model.Provider, rawBody []byte, signatureHeader string) (usecase.DeliveryResult, error)
}

// WebhookHandler is the thin intake endpoint. It reads the raw body once
// and delegates everything to the pipeline; the response is purely the
// status matrix.
type WebhookHandler struct {
	logger   *zap.Logger
	pipeline DeliveryPipeline
}

// NewWebhookHandler creates the intake handler
func NewWebhookHandler(logger *zap.Logger, pipeline DeliveryPipeline) *WebhookHandler {
	return &WebhookHandler{
		logger:   logger,
		pipeline: pipeline,
	}
}

// HandleWebhook processes POST /webhooks/:provider
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	ctx := c.Request().Context()
	provider := model.Provider(c.Param("provider"))

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Error("Error reading request body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Error reading request body"})
	}
	if len(body) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Empty request body"})
	}

	signature := c.Request().Header.Get(SignatureHeader)

	result, err := h.pipeline.HandleDelivery(ctx, provider, body, signature)
	if err != nil {
		var verr *usecase.VerificationError
		if errors.As(err, &verr) {
			// The category is logged by the pipeline; the caller only
			// learns that authentication failed.
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error": "Webhook signature verification failed",
			})
		}

		switch apperrors.CodeOf(err) {
		case apperrors.ErrUnauthenticated:
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error": "Webhook signature verification failed",
			})
		case apperrors.ErrInvalidArgument:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid webhook payload"})
		default:
			// Store trouble: a 500 tells the provider to redeliver. The
			// verified event was not silently dropped.
			h.logger.Error("Webhook delivery failed",
				zap.String("provider", provider.String()),
				zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Temporary processing failure"})
		}
	}

	if result == usecase.ResultReplayRejected {
		// Rejected without detail: the caller learns nothing about the
		// stored record.
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error": "Webhook signature verification failed",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
