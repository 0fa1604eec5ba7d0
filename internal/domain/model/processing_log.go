package model

import "time"

// Log actions recorded for each state transition.
const (
	LogActionReceived     = "received"
	LogActionProcessing   = "processing_started"
	LogActionCompleted    = "processing_completed"
	LogActionFailed       = "processing_failed"
	LogActionRetryQueued  = "retry_scheduled"
	LogActionDeadLettered = "dead_lettered"
	LogActionRequeued     = "manually_requeued"
)

// ProcessingLogEntry is one row of the append-only audit trail. Entries are
// never updated or deleted; they are the forensic record of every action
// taken on an event.
type ProcessingLogEntry struct {
	ID              int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID         string           `gorm:"not null;size:255;index" json:"event_id"`
	Provider        Provider         `gorm:"not null;size:50" json:"provider"`
	Action          string           `gorm:"not null;size:100" json:"action"`
	ResultingStatus ProcessingStatus `gorm:"type:processing_status;not null" json:"resulting_status"`
	Detail          *string          `json:"detail,omitempty"`
	CreatedAt       time.Time        `gorm:"not null;default:now();index" json:"created_at"`
}

// TableName specifies the table name for GORM
func (ProcessingLogEntry) TableName() string {
	return "webhook_processing_log"
}
