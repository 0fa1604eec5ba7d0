package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ProcessingStatus represents the processing state of a webhook event
type ProcessingStatus string

const (
	ProcessingStatusReceived     ProcessingStatus = "received"
	ProcessingStatusQueued       ProcessingStatus = "queued"
	ProcessingStatusProcessing   ProcessingStatus = "processing"
	ProcessingStatusCompleted    ProcessingStatus = "completed"
	ProcessingStatusFailed       ProcessingStatus = "failed"
	ProcessingStatusDeadLettered ProcessingStatus = "dead_lettered"
)

// IsTerminal reports whether the status is permanent. Terminal events are
// never picked up again by a lock holder or the retry worker.
func (s ProcessingStatus) IsTerminal() bool {
	return s == ProcessingStatusCompleted || s == ProcessingStatusDeadLettered
}

// Scan implements sql.Scanner interface
func (s *ProcessingStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = ProcessingStatus(v)
	case []byte:
		*s = ProcessingStatus(v)
	default:
		*s = ProcessingStatusReceived
	}
	return nil
}

// Value implements driver.Valuer interface
func (s ProcessingStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// VerificationStatus of a stored event. Only verified events reach the
// store, so the column carries a single value today; it exists so the
// audit trail is explicit about why a row was allowed in.
type VerificationStatus string

const (
	VerificationStatusVerified VerificationStatus = "verified"
)

// Scan implements sql.Scanner interface
func (s *VerificationStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = VerificationStatus(v)
	case []byte:
		*s = VerificationStatus(v)
	default:
		*s = VerificationStatusVerified
	}
	return nil
}

// Value implements driver.Valuer interface
func (s VerificationStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// WebhookEventRecord is the durable record of one unique (provider, event_id)
// delivery. Rows are inserted once after signature verification and never
// deleted; payload_hash is compared, never overwritten, on later deliveries.
type WebhookEventRecord struct {
	ID                 int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID            string             `gorm:"not null;size:255;uniqueIndex:idx_webhook_events_provider_event" json:"event_id"`
	Provider           Provider           `gorm:"not null;size:50;uniqueIndex:idx_webhook_events_provider_event" json:"provider"`
	EventType          string             `gorm:"not null;size:100;index" json:"event_type"`
	PayloadHash        string             `gorm:"not null;size:64" json:"payload_hash"`
	Payload            JSONB              `gorm:"type:jsonb;not null" json:"payload"`
	VerificationStatus VerificationStatus `gorm:"type:verification_status;not null;default:'verified'" json:"verification_status"`
	ProcessingStatus   ProcessingStatus   `gorm:"type:processing_status;not null;default:'received';index" json:"processing_status"`
	RetryCount         int                `gorm:"not null;default:0" json:"retry_count"`
	LastError          *string            `json:"last_error,omitempty"`
	LockedBy           *string            `gorm:"size:64" json:"locked_by,omitempty"`
	LockedUntil        *time.Time         `json:"locked_until,omitempty"`
	ReceivedAt         time.Time          `gorm:"not null;default:now()" json:"received_at"`
	ProcessedAt        *time.Time         `json:"processed_at,omitempty"`
	NextRetryAt        *time.Time         `json:"next_retry_at,omitempty"`
}

// TableName specifies the table name for GORM
func (WebhookEventRecord) TableName() string {
	return "webhook_events"
}

// JSONB represents a JSONB database type
type JSONB map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONB) Scan(src interface{}) error {
	if src == nil {
		*j = nil
		return nil
	}

	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		*j = make(JSONB)
		return nil
	}
}
