package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/metrics"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/models"
)

// ErrNoAlert is returned when a device has no cached alert.
var ErrNoAlert = errors.New("no cached alert for device")

const latestKeyPrefix = "itap:alerts:latest:"

// AlertCache keeps the latest alert per device in Redis with a TTL, for the
// dashboard and query API collaborators. Writes are best-effort: the engine
// never blocks evaluation or delivery on the cache.
type AlertCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAlertCache connects to Redis at addr.
func NewAlertCache(addr string, ttl time.Duration) *AlertCache {
	return &AlertCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

// StoreLatest records alert as the device's most recent alert.
func (c *AlertCache) StoreLatest(ctx context.Context, alert *models.AlertEvent) error {
	data, err := json.Marshal(alert)
	if err != nil {
		metrics.CacheWritesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("marshal alert: %w", err)
	}

	if err := c.client.Set(ctx, latestKeyPrefix+alert.DeviceID, data, c.ttl).Err(); err != nil {
		metrics.CacheWritesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("cache alert for %s: %w", alert.DeviceID, err)
	}

	metrics.CacheWritesTotal.WithLabelValues("success").Inc()
	return nil
}

// Latest returns the most recent cached alert for a device.
func (c *AlertCache) Latest(ctx context.Context, deviceID string) (*models.AlertEvent, error) {
	data, err := c.client.Get(ctx, latestKeyPrefix+deviceID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoAlert
	}
	if err != nil {
		return nil, fmt.Errorf("fetch alert for %s: %w", deviceID, err)
	}

	var alert models.AlertEvent
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, fmt.Errorf("decode cached alert for %s: %w", deviceID, err)
	}
	return &alert, nil
}

// Ping verifies connectivity.
func (c *AlertCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (c *AlertCache) Close() error {
	return c.client.Close()
}
