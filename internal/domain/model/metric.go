package model

import "time"

// Metric names, one per pipeline stage transition. Each counter is bumped
// exactly once per transition regardless of the event's final outcome.
const (
	MetricReceived           = "received"
	MetricVerified           = "verified"
	MetricVerificationFailed = "verification_failed"
	MetricDuplicate          = "duplicate"
	MetricReplayAttack       = "replay_attack"
	MetricProcessed          = "processed"
	MetricFailed             = "failed"
	MetricDeadLettered       = "dead_lettered"
)

// WebhookMetric is an aggregated counter keyed by (provider, metric,
// window_start). Incremented atomically at the storage layer.
type WebhookMetric struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider    Provider  `gorm:"not null;size:50;uniqueIndex:idx_webhook_metrics_key" json:"provider"`
	MetricName  string    `gorm:"not null;size:100;uniqueIndex:idx_webhook_metrics_key" json:"metric_name"`
	WindowStart time.Time `gorm:"not null;uniqueIndex:idx_webhook_metrics_key" json:"window_start"`
	Count       int64     `gorm:"not null;default:0" json:"count"`
}

// TableName specifies the table name for GORM
func (WebhookMetric) TableName() string {
	return "webhook_metrics"
}
