package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// AlertType classifies an operational or security anomaly
type AlertType string

const (
	AlertTypeReplayAttack        AlertType = "replay_attack"
	AlertTypeHighDuplicateVolume AlertType = "high_duplicate_volume"
	AlertTypeProcessingFailure   AlertType = "processing_failure"
	AlertTypeLockTimeout         AlertType = "lock_timeout"
	AlertTypeUnknownEventType    AlertType = "unknown_event_type"
)

// Scan implements sql.Scanner interface
func (a *AlertType) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*a = AlertType(v)
	case []byte:
		*a = AlertType(v)
	default:
		*a = ""
	}
	return nil
}

// Value implements driver.Valuer interface
func (a AlertType) Value() (driver.Value, error) {
	return string(a), nil
}

// AlertSeverity of a raised alert
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// WebhookAlert is a write-once record of an actionable anomaly, one row per
// incident. Read by operational tooling, never mutated by the pipeline.
type WebhookAlert struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Type      AlertType     `gorm:"type:webhook_alert_type;not null;index" json:"type"`
	Severity  AlertSeverity `gorm:"not null;size:20" json:"severity"`
	Provider  Provider      `gorm:"not null;size:50;index" json:"provider"`
	EventID   *string       `gorm:"size:255;index" json:"event_id,omitempty"`
	Message   string        `gorm:"not null" json:"message"`
	Detail    JSONB         `gorm:"type:jsonb;default:'{}'" json:"detail"`
	CreatedAt time.Time     `gorm:"not null;default:now();index" json:"created_at"`
}

// TableName specifies the table name for GORM
func (WebhookAlert) TableName() string {
	return "webhook_alerts"
}
