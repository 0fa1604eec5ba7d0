package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/loopwire/webhook-service/internal/domain/model"
	"github.com/loopwire/webhook-service/internal/domain/repository"
	"go.uber.org/zap"
)

// AdminHandler exposes the operational surface: dead-letter review and
// requeue, the audit trail, alerts and metrics. All routes sit behind the
// JWT middleware.
type AdminHandler struct {
	logger  *zap.Logger
	events  repository.EventRepository
	logs    repository.LogRepository
	alerts  repository.AlertRepository
	metrics repository.MetricRepository
}

// NewAdminHandler creates the admin handler
func NewAdminHandler(
	logger *zap.Logger,
	events repository.EventRepository,
	logs repository.LogRepository,
	alerts repository.AlertRepository,
	metrics repository.MetricRepository,
) *AdminHandler {
	return &AdminHandler{
		logger:  logger,
		events:  events,
		logs:    logs,
		alerts:  alerts,
		metrics: metrics,
	}
}

func paginationParams(c echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListDeadLettered handles GET /api/v1/internal/dead-letter
func (h *AdminHandler) ListDeadLettered(c echo.Context) error {
	limit, offset := paginationParams(c)

	records, err := h.events.ListDeadLettered(c.Request().Context(), limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to list dead-lettered events"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"events": records,
		"count":  len(records),
	})
}

// RequeueDeadLettered handles POST /api/v1/internal/dead-letter/:provider/:event_id/requeue.
// Requeueing is the only way out of the dead-letter state and is always an
// explicit operator action.
func (h *AdminHandler) RequeueDeadLettered(c echo.Context) error {
	provider := model.Provider(c.Param("provider"))
	eventID := c.Param("event_id")

	requeued, err := h.events.Requeue(c.Request().Context(), provider, eventID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to requeue event"})
	}
	if !requeued {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "No dead-lettered event with that id"})
	}

	h.logger.Info("Dead-lettered event requeued by operator",
		zap.String("event_id", eventID),
		zap.String("provider", provider.String()))

	return c.JSON(http.StatusOK, echo.Map{"requeued": true})
}

// GetEventLog handles GET /api/v1/internal/events/:event_id/log
func (h *AdminHandler) GetEventLog(c echo.Context) error {
	eventID := c.Param("event_id")

	entries, err := h.logs.GetByEventID(c.Request().Context(), eventID, 200)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to read processing log"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"event_id": eventID,
		"entries":  entries,
	})
}

// ListAlerts handles GET /api/v1/internal/alerts
func (h *AdminHandler) ListAlerts(c echo.Context) error {
	limit, offset := paginationParams(c)

	var alertType *model.AlertType
	if t := c.QueryParam("type"); t != "" {
		at := model.AlertType(t)
		alertType = &at
	}

	alerts, err := h.alerts.List(c.Request().Context(), alertType, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to list alerts"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetMetrics handles GET /api/v1/internal/metrics?provider=stripe&since=1h
func (h *AdminHandler) GetMetrics(c echo.Context) error {
	provider := model.Provider(c.QueryParam("provider"))
	if provider == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provider query parameter is required"})
	}

	since := time.Now().Add(-time.Hour)
	if s := c.QueryParam("since"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid since duration"})
		}
		since = time.Now().Add(-d)
	}

	rows, err := h.metrics.List(c.Request().Context(), provider, since)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to read metrics"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"provider": provider,
		"metrics":  rows,
	})
}
