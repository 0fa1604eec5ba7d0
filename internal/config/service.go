package config

import "time"

type ServiceConfig struct {
	Name           string                    `yaml:"name"`
	Environment    string                    `yaml:"environment"`
	Version        string                    `yaml:"version"`
	AdminJWTSecret string                    `yaml:"admin_jwt_secret"`
	Providers      map[string]ProviderConfig `yaml:"providers" validate:"required,min=1"`
	Downstream     DownstreamConfig          `yaml:"downstream"`
}

// DownstreamConfig points at the business-logic service that consumes
// verified events. An empty URL falls back to the log-only dispatcher.
type DownstreamConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ProviderConfig carries the per-provider verification settings. Providers
// share the signature algorithm and differ only here.
type ProviderConfig struct {
	WebhookSecret      string        `yaml:"webhook_secret" validate:"required"`
	SignatureTolerance time.Duration `yaml:"signature_tolerance"`
}

// PipelineConfig holds the idempotency, locking and retry knobs. Nothing
// here is hardcoded elsewhere; zero values are filled by applyDefaults.
type PipelineConfig struct {
	LockTimeout       time.Duration `yaml:"lock_timeout"`
	RetryCeiling      int           `yaml:"retry_ceiling"`
	BackoffBase       time.Duration `yaml:"backoff_base"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	BackoffMax        time.Duration `yaml:"backoff_max"`

	// Duplicate storm detection
	DuplicateStormThreshold int           `yaml:"duplicate_storm_threshold"`
	DuplicateStormWindow    time.Duration `yaml:"duplicate_storm_window"`

	// Retry worker
	WorkerPollInterval time.Duration `yaml:"worker_poll_interval"`
	WorkerBatchSize    int           `yaml:"worker_batch_size"`

	// Metric aggregation window
	MetricWindow time.Duration `yaml:"metric_window"`
}

func (c *PipelineConfig) applyDefaults() {
	if c.LockTimeout <= 0 {
		c.LockTimeout = 30 * time.Second
	}
	if c.RetryCeiling <= 0 {
		c.RetryCeiling = 5
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 30 * time.Second
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = 2
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 6 * time.Hour
	}
	if c.DuplicateStormThreshold <= 0 {
		c.DuplicateStormThreshold = 50
	}
	if c.DuplicateStormWindow <= 0 {
		c.DuplicateStormWindow = 5 * time.Minute
	}
	if c.WorkerPollInterval <= 0 {
		c.WorkerPollInterval = 15 * time.Second
	}
	if c.WorkerBatchSize <= 0 {
		c.WorkerBatchSize = 20
	}
	if c.MetricWindow <= 0 {
		c.MetricWindow = time.Minute
	}
}

// RedisConfig holds the optional redis settings for the advisory dedupe
// cache and alert channel. Disabled when Addr is empty.
type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	AlertChannel string `yaml:"alert_channel"`
}
