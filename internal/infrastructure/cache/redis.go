package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/loopwire/webhook-service/internal/domain/model"
	"go.uber.org/zap"
)

// DedupeCache is an advisory fast path in front of the durable store. It
// remembers recently seen (provider, event_id) hashes and publishes raised
// alerts on a pub/sub channel. The store remains ground truth: a cache hit
// is only a hint and every decision is confirmed against the database, so
// redis being down or cold never affects correctness.
type DedupeCache interface {
	Remember(ctx context.Context, provider model.Provider, eventID, payloadHash string, ttl time.Duration)
	Lookup(ctx context.Context, provider model.Provider, eventID string) (payloadHash string, seen bool)
	PublishAlert(ctx context.Context, alert *model.WebhookAlert)
	Close() error
}

type redisCache struct {
	client       *redis.Client
	alertChannel string
	logger       *zap.Logger
}

// NewRedisCache connects to redis and returns a DedupeCache
func NewRedisCache(addr, password string, db int, alertChannel string, logger *zap.Logger) (DedupeCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisCache{
		client:       client,
		alertChannel: alertChannel,
		logger:       logger,
	}, nil
}

func dedupeKey(provider model.Provider, eventID string) string {
	return fmt.Sprintf("webhook:seen:%s:%s", provider, eventID)
}

// Remember records the payload hash of a seen event. Failures are logged
// and ignored.
func (c *redisCache) Remember(ctx context.Context, provider model.Provider, eventID, payloadHash string, ttl time.Duration) {
	if err := c.client.Set(ctx, dedupeKey(provider, eventID), payloadHash, ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache webhook event id",
			zap.String("event_id", eventID),
			zap.Error(err))
	}
}

// Lookup returns the cached payload hash for an event id, if present
func (c *redisCache) Lookup(ctx context.Context, provider model.Provider, eventID string) (string, bool) {
	val, err := c.client.Get(ctx, dedupeKey(provider, eventID)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Failed to look up webhook event id in cache",
				zap.String("event_id", eventID),
				zap.Error(err))
		}
		return "", false
	}
	return val, true
}

// PublishAlert pushes a raised alert onto the operational channel.
// Best effort; the durable alert row is already written.
func (c *redisCache) PublishAlert(ctx context.Context, alert *model.WebhookAlert) {
	if c.alertChannel == "" {
		return
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		c.logger.Warn("Failed to marshal alert for publication", zap.Error(err))
		return
	}

	if err := c.client.Publish(ctx, c.alertChannel, payload).Err(); err != nil {
		c.logger.Warn("Failed to publish alert",
			zap.String("type", string(alert.Type)),
			zap.Error(err))
	}
}

// Close closes the redis client
func (c *redisCache) Close() error {
	return c.client.Close()
}

// Noop returns a DedupeCache that does nothing, used when redis is not
// configured.
func Noop() DedupeCache {
	return noopCache{}
}

type noopCache struct{}

func (noopCache) Remember(context.Context, model.Provider, string, string, time.Duration) {}
func (noopCache) Lookup(context.Context, model.Provider, string) (string, bool)           { return "", false }
func (noopCache) PublishAlert(context.Context, *model.WebhookAlert)                       {}
func (noopCache) Close() error                                                            { return nil }
