package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/loopwire/webhook-service/internal/domain/model"
	"github.com/loopwire/webhook-service/internal/infrastructure/cache"
	"github.com/loopwire/webhook-service/internal/usecase"
)

func TestMetricsService_Record(t *testing.T) {
	ctx := context.Background()

	t.Run("increments the counter in the truncated window", func(t *testing.T) {
		mockAlerts := new(MockAlertRepository)
		mockMetrics := new(MockMetricRepository)

		fixed := time.Date(2025, 3, 14, 10, 32, 45, 0, time.UTC)
		service := usecase.NewMetricsService(mockMetrics, mockAlerts, cache.Noop(), time.Minute, 50, 5*time.Minute, zap.NewNop()).
			WithClock(func() time.Time { return fixed })

		window := time.Date(2025, 3, 14, 10, 32, 0, 0, time.UTC)
		mockMetrics.On("Increment", ctx, model.ProviderStripe, model.MetricReceived, window, int64(1)).Return(nil).Once()

		service.Record(ctx, model.ProviderStripe, model.MetricReceived)

		mockMetrics.AssertExpectations(t)
	})

	t.Run("counter failure is swallowed", func(t *testing.T) {
		mockAlerts := new(MockAlertRepository)
		mockMetrics := new(MockMetricRepository)

		service := usecase.NewMetricsService(mockMetrics, mockAlerts, cache.Noop(), time.Minute, 50, 5*time.Minute, zap.NewNop())

		mockMetrics.On("Increment", ctx, model.ProviderStripe, model.MetricReceived, mock.Anything, int64(1)).
			Return(errors.New("connection refused"))

		// Must not panic or surface the error anywhere.
		service.Record(ctx, model.ProviderStripe, model.MetricReceived)
	})
}

func TestMetricsService_RecordDuplicate(t *testing.T) {
	ctx := context.Background()

	newService := func(mockMetrics *MockMetricRepository, mockAlerts *MockAlertRepository) *usecase.MetricsService {
		return usecase.NewMetricsService(mockMetrics, mockAlerts, cache.Noop(), time.Minute, 50, 5*time.Minute, zap.NewNop())
	}

	t.Run("below threshold raises nothing", func(t *testing.T) {
		mockAlerts := new(MockAlertRepository)
		mockMetrics := new(MockMetricRepository)
		service := newService(mockMetrics, mockAlerts)

		mockMetrics.On("Increment", ctx, model.ProviderStripe, model.MetricDuplicate, mock.Anything, int64(1)).Return(nil)
		mockMetrics.On("List", ctx, model.ProviderStripe, mock.Anything).Return([]*model.WebhookMetric{
			{Provider: model.ProviderStripe, MetricName: model.MetricDuplicate, Count: 12},
		}, nil)

		service.RecordDuplicate(ctx, model.ProviderStripe)

		mockAlerts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("storm threshold raises a warning alert", func(t *testing.T) {
		mockAlerts := new(MockAlertRepository)
		mockMetrics := new(MockMetricRepository)
		service := newService(mockMetrics, mockAlerts)

		mockMetrics.On("Increment", ctx, model.ProviderStripe, model.MetricDuplicate, mock.Anything, int64(1)).Return(nil)
		mockMetrics.On("List", ctx, model.ProviderStripe, mock.Anything).Return([]*model.WebhookMetric{
			{Provider: model.ProviderStripe, MetricName: model.MetricDuplicate, Count: 30},
			{Provider: model.ProviderStripe, MetricName: model.MetricDuplicate, Count: 25},
			{Provider: model.ProviderStripe, MetricName: model.MetricReceived, Count: 900},
		}, nil)
		mockAlerts.On("LatestByTypeAndProvider", ctx, model.AlertTypeHighDuplicateVolume, model.ProviderStripe).Return(nil, nil)
		mockAlerts.On("Create", ctx, mock.MatchedBy(func(a *model.WebhookAlert) bool {
			return a.Type == model.AlertTypeHighDuplicateVolume &&
				a.Severity == model.AlertSeverityWarning &&
				a.Detail["duplicate_count"] == int64(55)
		})).Return(nil).Once()

		service.RecordDuplicate(ctx, model.ProviderStripe)

		mockAlerts.AssertExpectations(t)
	})

	t.Run("non-duplicate counters do not trip the storm check", func(t *testing.T) {
		mockAlerts := new(MockAlertRepository)
		mockMetrics := new(MockMetricRepository)
		service := newService(mockMetrics, mockAlerts)

		mockMetrics.On("Increment", ctx, model.ProviderStripe, model.MetricDuplicate, mock.Anything, int64(1)).Return(nil)
		mockMetrics.On("List", ctx, model.ProviderStripe, mock.Anything).Return([]*model.WebhookMetric{
			{Provider: model.ProviderStripe, MetricName: model.MetricReceived, Count: 5000},
			{Provider: model.ProviderStripe, MetricName: model.MetricDuplicate, Count: 3},
		}, nil)

		service.RecordDuplicate(ctx, model.ProviderStripe)

		mockAlerts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("recent storm alert suppresses a second one in the same window", func(t *testing.T) {
		mockAlerts := new(MockAlertRepository)
		mockMetrics := new(MockMetricRepository)
		service := newService(mockMetrics, mockAlerts)

		mockMetrics.On("Increment", ctx, model.ProviderStripe, model.MetricDuplicate, mock.Anything, int64(1)).Return(nil)
		mockMetrics.On("List", ctx, model.ProviderStripe, mock.Anything).Return([]*model.WebhookMetric{
			{Provider: model.ProviderStripe, MetricName: model.MetricDuplicate, Count: 80},
		}, nil)
		mockAlerts.On("LatestByTypeAndProvider", ctx, model.AlertTypeHighDuplicateVolume, model.ProviderStripe).Return(&model.WebhookAlert{
			Type:      model.AlertTypeHighDuplicateVolume,
			Provider:  model.ProviderStripe,
			CreatedAt: time.Now().Add(-time.Minute),
		}, nil)

		service.RecordDuplicate(ctx, model.ProviderStripe)

		mockAlerts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("stale storm alert outside the window does not suppress", func(t *testing.T) {
		mockAlerts := new(MockAlertRepository)
		mockMetrics := new(MockMetricRepository)
		service := newService(mockMetrics, mockAlerts)

		mockMetrics.On("Increment", ctx, model.ProviderStripe, model.MetricDuplicate, mock.Anything, int64(1)).Return(nil)
		mockMetrics.On("List", ctx, model.ProviderStripe, mock.Anything).Return([]*model.WebhookMetric{
			{Provider: model.ProviderStripe, MetricName: model.MetricDuplicate, Count: 80},
		}, nil)
		mockAlerts.On("LatestByTypeAndProvider", ctx, model.AlertTypeHighDuplicateVolume, model.ProviderStripe).Return(&model.WebhookAlert{
			Type:      model.AlertTypeHighDuplicateVolume,
			Provider:  model.ProviderStripe,
			CreatedAt: time.Now().Add(-time.Hour),
		}, nil)
		mockAlerts.On("Create", ctx, mock.MatchedBy(func(a *model.WebhookAlert) bool {
			return a.Type == model.AlertTypeHighDuplicateVolume
		})).Return(nil).Once()

		service.RecordDuplicate(ctx, model.ProviderStripe)

		mockAlerts.AssertExpectations(t)
	})

	t.Run("suppression is tracked per provider during concurrent storms", func(t *testing.T) {
		mockAlerts := new(MockAlertRepository)
		mockMetrics := new(MockMetricRepository)
		service := newService(mockMetrics, mockAlerts)

		mockMetrics.On("Increment", ctx, mock.Anything, model.MetricDuplicate, mock.Anything, int64(1)).Return(nil)
		mockMetrics.On("List", ctx, model.ProviderStripe, mock.Anything).Return([]*model.WebhookMetric{
			{Provider: model.ProviderStripe, MetricName: model.MetricDuplicate, Count: 90},
		}, nil)
		mockMetrics.On("List", ctx, model.ProviderToss, mock.Anything).Return([]*model.WebhookMetric{
			{Provider: model.ProviderToss, MetricName: model.MetricDuplicate, Count: 70},
		}, nil)

		// Stripe already alerted this window; toss has not.
		mockAlerts.On("LatestByTypeAndProvider", ctx, model.AlertTypeHighDuplicateVolume, model.ProviderStripe).Return(&model.WebhookAlert{
			Type:      model.AlertTypeHighDuplicateVolume,
			Provider:  model.ProviderStripe,
			CreatedAt: time.Now().Add(-time.Minute),
		}, nil)
		mockAlerts.On("LatestByTypeAndProvider", ctx, model.AlertTypeHighDuplicateVolume, model.ProviderToss).Return(nil, nil)
		mockAlerts.On("Create", ctx, mock.MatchedBy(func(a *model.WebhookAlert) bool {
			return a.Type == model.AlertTypeHighDuplicateVolume && a.Provider == model.ProviderToss
		})).Return(nil).Once()

		// Stripe's storm stays suppressed across repeated duplicates while
		// toss's raises its own alert exactly once from this call.
		service.RecordDuplicate(ctx, model.ProviderStripe)
		service.RecordDuplicate(ctx, model.ProviderToss)
		service.RecordDuplicate(ctx, model.ProviderStripe)

		mockAlerts.AssertExpectations(t)
		mockAlerts.AssertNumberOfCalls(t, "Create", 1)
	})
}
