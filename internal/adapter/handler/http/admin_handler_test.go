package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/loopwire/webhook-service/internal/domain/model"
)

type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) InsertIfAbsent(ctx context.Context, record *model.WebhookEventRecord) (bool, error) {
	args := m.Called(ctx, record)
	return args.Bool(0), args.Error(1)
}

func (m *MockEventRepository) GetByEventID(ctx context.Context, provider model.Provider, eventID string) (*model.WebhookEventRecord, error) {
	args := m.Called(ctx, provider, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WebhookEventRecord), args.Error(1)
}

func (m *MockEventRepository) AcquireLock(ctx context.Context, provider model.Provider, eventID, holder string, until time.Time) (bool, bool, error) {
	args := m.Called(ctx, provider, eventID, holder, until)
	return args.Bool(0), args.Bool(1), args.Error(2)
}

func (m *MockEventRepository) ReleaseLock(ctx context.Context, provider model.Provider, eventID, holder string) error {
	args := m.Called(ctx, provider, eventID, holder)
	return args.Error(0)
}

func (m *MockEventRepository) UpdateStatus(ctx context.Context, provider model.Provider, eventID string, status model.ProcessingStatus, updates map[string]interface{}, logAction string, logDetail *string) error {
	args := m.Called(ctx, provider, eventID, status, updates, logAction, logDetail)
	return args.Error(0)
}

func (m *MockEventRepository) GetDueForRetry(ctx context.Context, now time.Time, limit int) ([]*model.WebhookEventRecord, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.WebhookEventRecord), args.Error(1)
}

func (m *MockEventRepository) ListDeadLettered(ctx context.Context, limit, offset int) ([]*model.WebhookEventRecord, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.WebhookEventRecord), args.Error(1)
}

func (m *MockEventRepository) Requeue(ctx context.Context, provider model.Provider, eventID string) (bool, error) {
	args := m.Called(ctx, provider, eventID)
	return args.Bool(0), args.Error(1)
}

type MockLogRepository struct {
	mock.Mock
}

func (m *MockLogRepository) Append(ctx context.Context, entry *model.ProcessingLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLogRepository) GetByEventID(ctx context.Context, eventID string, limit int) ([]*model.ProcessingLogEntry, error) {
	args := m.Called(ctx, eventID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ProcessingLogEntry), args.Error(1)
}

type MockAlertRepository struct {
	mock.Mock
}

func (m *MockAlertRepository) Create(ctx context.Context, alert *model.WebhookAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *MockAlertRepository) List(ctx context.Context, alertType *model.AlertType, limit, offset int) ([]*model.WebhookAlert, error) {
	args := m.Called(ctx, alertType, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.WebhookAlert), args.Error(1)
}

func (m *MockAlertRepository) LatestByTypeAndProvider(ctx context.Context, alertType model.AlertType, provider model.Provider) (*model.WebhookAlert, error) {
	args := m.Called(ctx, alertType, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WebhookAlert), args.Error(1)
}

type MockMetricRepository struct {
	mock.Mock
}

func (m *MockMetricRepository) Increment(ctx context.Context, provider model.Provider, metric string, windowStart time.Time, delta int64) error {
	args := m.Called(ctx, provider, metric, windowStart, delta)
	return args.Error(0)
}

func (m *MockMetricRepository) List(ctx context.Context, provider model.Provider, since time.Time) ([]*model.WebhookMetric, error) {
	args := m.Called(ctx, provider, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.WebhookMetric), args.Error(1)
}

type adminFixture struct {
	events  *MockEventRepository
	logs    *MockLogRepository
	alerts  *MockAlertRepository
	metrics *MockMetricRepository
	handler *AdminHandler
}

func newAdminFixture() *adminFixture {
	f := &adminFixture{
		events:  new(MockEventRepository),
		logs:    new(MockLogRepository),
		alerts:  new(MockAlertRepository),
		metrics: new(MockMetricRepository),
	}
	f.handler = NewAdminHandler(zap.NewNop(), f.events, f.logs, f.alerts, f.metrics)
	return f
}

func adminRequest(target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAdminHandler_RequeueDeadLettered(t *testing.T) {
	t.Run("requeues an existing dead-lettered event", func(t *testing.T) {
		f := newAdminFixture()
		f.events.On("Requeue", mock.Anything, model.ProviderStripe, "evt_1").Return(true, nil)

		c, rec := adminRequest("/api/v1/internal/dead-letter/stripe/evt_1/requeue")
		c.SetParamNames("provider", "event_id")
		c.SetParamValues("stripe", "evt_1")

		assert.NoError(t, f.handler.RequeueDeadLettered(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"requeued":true`)
	})

	t.Run("non-dead-lettered event returns 404", func(t *testing.T) {
		f := newAdminFixture()
		f.events.On("Requeue", mock.Anything, model.ProviderStripe, "evt_missing").Return(false, nil)

		c, rec := adminRequest("/api/v1/internal/dead-letter/stripe/evt_missing/requeue")
		c.SetParamNames("provider", "event_id")
		c.SetParamValues("stripe", "evt_missing")

		assert.NoError(t, f.handler.RequeueDeadLettered(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("store failure returns 500", func(t *testing.T) {
		f := newAdminFixture()
		f.events.On("Requeue", mock.Anything, model.ProviderStripe, "evt_1").Return(false, errors.New("connection refused"))

		c, rec := adminRequest("/api/v1/internal/dead-letter/stripe/evt_1/requeue")
		c.SetParamNames("provider", "event_id")
		c.SetParamValues("stripe", "evt_1")

		assert.NoError(t, f.handler.RequeueDeadLettered(c))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestAdminHandler_ListDeadLettered(t *testing.T) {
	t.Run("returns dead-lettered events with default pagination", func(t *testing.T) {
		f := newAdminFixture()
		f.events.On("ListDeadLettered", mock.Anything, 50, 0).Return([]*model.WebhookEventRecord{
			{EventID: "evt_1", Provider: model.ProviderStripe, ProcessingStatus: model.ProcessingStatusDeadLettered},
		}, nil)

		c, rec := adminRequest("/api/v1/internal/dead-letter")

		assert.NoError(t, f.handler.ListDeadLettered(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"count":1`)
	})

	t.Run("out-of-range limit falls back to default", func(t *testing.T) {
		f := newAdminFixture()
		f.events.On("ListDeadLettered", mock.Anything, 50, 0).Return([]*model.WebhookEventRecord{}, nil)

		c, rec := adminRequest("/api/v1/internal/dead-letter?limit=9999")

		assert.NoError(t, f.handler.ListDeadLettered(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		f.events.AssertExpectations(t)
	})
}

func TestAdminHandler_GetEventLog(t *testing.T) {
	f := newAdminFixture()
	f.logs.On("GetByEventID", mock.Anything, "evt_1", 200).Return([]*model.ProcessingLogEntry{
		{EventID: "evt_1", Action: model.LogActionReceived},
		{EventID: "evt_1", Action: model.LogActionCompleted},
	}, nil)

	c, rec := adminRequest("/api/v1/internal/events/evt_1/log")
	c.SetParamNames("event_id")
	c.SetParamValues("evt_1")

	assert.NoError(t, f.handler.GetEventLog(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), model.LogActionReceived)
}

func TestAdminHandler_ListAlerts(t *testing.T) {
	t.Run("filters by alert type", func(t *testing.T) {
		f := newAdminFixture()
		f.alerts.On("List", mock.Anything, mock.MatchedBy(func(at *model.AlertType) bool {
			return at != nil && *at == model.AlertTypeReplayAttack
		}), 50, 0).Return([]*model.WebhookAlert{
			{Type: model.AlertTypeReplayAttack, Severity: model.AlertSeverityCritical},
		}, nil)

		c, rec := adminRequest("/api/v1/internal/alerts?type=replay_attack")

		assert.NoError(t, f.handler.ListAlerts(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "replay_attack")
	})

	t.Run("no filter lists everything", func(t *testing.T) {
		f := newAdminFixture()
		f.alerts.On("List", mock.Anything, (*model.AlertType)(nil), 50, 0).Return([]*model.WebhookAlert{}, nil)

		c, rec := adminRequest("/api/v1/internal/alerts")

		assert.NoError(t, f.handler.ListAlerts(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		f.alerts.AssertExpectations(t)
	})
}

func TestAdminHandler_GetMetrics(t *testing.T) {
	t.Run("provider is required", func(t *testing.T) {
		f := newAdminFixture()

		c, rec := adminRequest("/api/v1/internal/metrics")

		assert.NoError(t, f.handler.GetMetrics(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.metrics.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid since duration is rejected", func(t *testing.T) {
		f := newAdminFixture()

		c, rec := adminRequest("/api/v1/internal/metrics?provider=stripe&since=yesterday")

		assert.NoError(t, f.handler.GetMetrics(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns counters for the window", func(t *testing.T) {
		f := newAdminFixture()
		f.metrics.On("List", mock.Anything, model.ProviderStripe, mock.Anything).Return([]*model.WebhookMetric{
			{Provider: model.ProviderStripe, MetricName: model.MetricReceived, Count: 120},
			{Provider: model.ProviderStripe, MetricName: model.MetricProcessed, Count: 118},
		}, nil)

		c, rec := adminRequest("/api/v1/internal/metrics?provider=stripe&since=2h")

		assert.NoError(t, f.handler.GetMetrics(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), model.MetricReceived)
	})
}
