package database

import (
	"github.com/loopwire/webhook-service/internal/adapter/repository"
	domainRepo "github.com/loopwire/webhook-service/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	Event  domainRepo.EventRepository
	Log    domainRepo.LogRepository
	Alert  domainRepo.AlertRepository
	Metric domainRepo.MetricRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Event:  repository.NewEventRepository(db, logger),
		Log:    repository.NewLogRepository(db, logger),
		Alert:  repository.NewAlertRepository(db, logger),
		Metric: repository.NewMetricRepository(db, logger),
	}
}
