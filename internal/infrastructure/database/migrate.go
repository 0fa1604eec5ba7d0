package database

import (
	"fmt"

	"github.com/loopwire/webhook-service/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	// Create custom types BEFORE auto-migrate
	if err := createCustomTypes(db); err != nil {
		logger.Error("Failed to create custom types", zap.Error(err))
		return err
	}

	// Auto-migrate all models
	err := db.AutoMigrate(
		&model.WebhookEventRecord{},
		&model.ProcessingLogEntry{},
		&model.WebhookAlert{},
		&model.WebhookMetric{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	// Create custom indexes and constraints
	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createCustomTypes creates the postgres enum types the models reference
func createCustomTypes(db *gorm.DB) error {
	types := map[string][]string{
		"processing_status": {
			"received", "queued", "processing", "completed", "failed", "dead_lettered",
		},
		"verification_status": {"verified"},
		"webhook_alert_type": {
			"replay_attack", "high_duplicate_volume", "processing_failure",
			"lock_timeout", "unknown_event_type",
		},
	}

	for name, values := range types {
		stmt := fmt.Sprintf(`DO $$ BEGIN
			CREATE TYPE %s AS ENUM (%s);
		EXCEPTION WHEN duplicate_object THEN NULL;
		END $$`, name, quoteEnumValues(values))
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create type %s: %w", name, err)
		}
	}

	return nil
}

func quoteEnumValues(values []string) string {
	quoted := ""
	for i, v := range values {
		if i > 0 {
			quoted += ", "
		}
		quoted += "'" + v + "'"
	}
	return quoted
}

// createCustomIndexes creates indexes GORM doesn't handle automatically
func createCustomIndexes(db *gorm.DB) error {
	// Partial index for the retry worker's due scan
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_webhook_events_retry_due ON webhook_events (next_retry_at) WHERE processing_status IN ('queued', 'failed')`).Error; err != nil {
		return err
	}

	// Partial index for the worker's stranded-event recovery scan
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_webhook_events_stalled ON webhook_events (received_at) WHERE processing_status IN ('received', 'processing')`).Error; err != nil {
		return err
	}

	// Partial index for dead-letter review
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_webhook_events_dead_letter ON webhook_events (received_at) WHERE processing_status = 'dead_lettered'`).Error; err != nil {
		return err
	}

	return nil
}
