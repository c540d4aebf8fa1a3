package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"salonpos/backend/internal/domain"
)

const (
	// metricsSchema is bumped whenever FinancialMetrics changes shape, so
	// snapshots written by an older build read as misses.
	metricsSchema = 1

	// Snapshot keys carry the state version and are never reused after a
	// mutation. The cap bounds how long superseded snapshots occupy memory.
	maxMetricsTTL = 15 * time.Minute
)

// RedisMetricsCache keeps metrics snapshots in Redis under the MetricsKey
// namespace.
type RedisMetricsCache struct {
	client *redis.Client
}

type metricsEntry struct {
	Schema  int                     `json:"schema"`
	Metrics domain.FinancialMetrics `json:"metrics"`
}

func NewRedisMetricsCache(addr string, password string, db int) *RedisMetricsCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisMetricsCache{client: client}
}

func (c *RedisMetricsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisMetricsCache) Close() error {
	return c.client.Close()
}

// Get treats an unreadable or outdated snapshot as a miss and drops it.
func (c *RedisMetricsCache) Get(ctx context.Context, key string) (*domain.FinancialMetrics, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	metrics, ok := decodeMetrics(raw)
	if !ok {
		log.Printf("[cache] WARN: dropping unreadable metrics snapshot key=%s", key)
		if err := c.client.Del(ctx, key).Err(); err != nil {
			log.Printf("[cache] WARN: drop key=%s failed: %v", key, err)
		}
		return nil, false, nil
	}
	return metrics, true, nil
}

func (c *RedisMetricsCache) Set(ctx context.Context, key string, value *domain.FinancialMetrics, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	if err := checkKey(key); err != nil {
		return err
	}
	payload, err := encodeMetrics(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, snapshotTTL(ttl)).Err()
}

func checkKey(key string) error {
	if !strings.HasPrefix(key, keyPrefix) {
		return fmt.Errorf("metrics cache key %q outside %s namespace", key, keyPrefix)
	}
	return nil
}

func snapshotTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > maxMetricsTTL {
		return maxMetricsTTL
	}
	return ttl
}

func encodeMetrics(m *domain.FinancialMetrics) ([]byte, error) {
	return json.Marshal(metricsEntry{Schema: metricsSchema, Metrics: *m})
}

func decodeMetrics(raw []byte) (*domain.FinancialMetrics, bool) {
	var entry metricsEntry
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Schema != metricsSchema {
		return nil, false
	}
	return &entry.Metrics, true
}
