package usecase_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/loopwire/webhook-service/internal/domain/model"
)

// MockEventRepository is a mock implementation of repository.EventRepository
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

// MockAlertRepository is a mock implementation of repository.AlertRepository
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

// MockMetricRepository is a mock implementation of repository.MetricRepository
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

// MockProcessor is a mock implementation of processor.EventProcessor
type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Process(ctx context.Context, record *model.WebhookEventRecord, payload model.JSONB) error {
	args := m.Called(ctx, record, payload)
	return args.Error(0)
}
