package cache

import (
	"context"
	"fmt"
	"time"

	"salonpos/backend/internal/domain"
)

// MetricsCache stores computed metrics snapshots. A miss is (nil, false, nil).
type MetricsCache interface {
	Get(ctx context.Context, key string) (*domain.FinancialMetrics, bool, error)
	Set(ctx context.Context, key string, value *domain.FinancialMetrics, ttl time.Duration) error
}

// keyPrefix namespaces every metrics snapshot key.
const keyPrefix = "salonpos:metrics:"

// MetricsKey identifies a snapshot by the state generation and version it was
// computed from plus the requested range, so any mutation naturally misses.
func MetricsKey(generation string, version uint64, start string, end string) string {
	return fmt.Sprintf("%s%s:%d:%s:%s", keyPrefix, generation, version, start, end)
}

type NoopMetricsCache struct{}

func (NoopMetricsCache) Get(_ context.Context, _ string) (*domain.FinancialMetrics, bool, error) {
	return nil, false, nil
}

func (NoopMetricsCache) Set(_ context.Context, _ string, _ *domain.FinancialMetrics, _ time.Duration) error {
	return nil
}
