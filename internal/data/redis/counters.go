// Package redis keeps the risk engine's sliding-window counters in Redis so
// every gateway and worker node sees the same velocity.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const defaultKeyPrefix = "risk:"

// CounterStore records hits as members of a sorted set scored by unix millis
type CounterStore struct {
	client redis.Cmdable
	logger *slog.Logger
	prefix string
	member func(at time.Time) string
}

// NewCounterStore returns a counter store on the given client
func NewCounterStore(client redis.Cmdable, logger *slog.Logger) *CounterStore {
	return &CounterStore{
		client: client,
		logger: logger,
		prefix: defaultKeyPrefix,
		member: func(at time.Time) string {
			return fmt.Sprintf("%d-%s", at.UnixMilli(), uuid.NewString())
		},
	}
}

// Hit adds one event at the given instant, trims members older than
// retention and refreshes the key expiry
func (c *CounterStore) Hit(ctx context.Context, key string, at time.Time, retention time.Duration) error {
	k := c.prefix + key
	cutoff := at.Add(-retention).UnixMilli()

	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, k, &redis.Z{Score: float64(at.UnixMilli()), Member: c.member(at)})
		pipe.ZRemRangeByScore(ctx, k, "-inf", "("+strconv.FormatInt(cutoff, 10))
		pipe.Expire(ctx, k, retention)
		return nil
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to record risk counter hit", "key", key, "error", err)
		return fmt.Errorf("failed to record hit for %s: %w", key, err)
	}
	return nil
}

// Count returns the hits recorded at or after since
func (c *CounterStore) Count(ctx context.Context, key string, since time.Time) (int64, error) {
	n, err := c.client.ZCount(ctx, c.prefix+key, strconv.FormatInt(since.UnixMilli(), 10), "+inf").Result()
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to read risk counter", "key", key, "error", err)
		return 0, fmt.Errorf("failed to count hits for %s: %w", key, err)
	}
	return n, nil
}
