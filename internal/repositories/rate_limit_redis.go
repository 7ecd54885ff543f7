package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vin-sipoi/jengahacks-api/internal/models"
)

// RedisCounterStore is the optional Redis backend for fixed-window
// counters. INCR is atomic, which gives the same race-free
// check-and-increment contract as the Postgres upsert; keys expire two
// windows after creation so no sweeper is needed.
type RedisCounterStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCounterStore creates a counter store on an existing client.
// ttl should be at least twice the largest rate-limit window.
func NewRedisCounterStore(rdb *redis.Client, ttl time.Duration) *RedisCounterStore {
	return &RedisCounterStore{
		rdb:    rdb,
		prefix: "ratelimit",
		ttl:    ttl,
	}
}

func (s *RedisCounterStore) key(identifier string, dim models.Dimension, windowStart time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%d", s.prefix, dim, identifier, windowStart.Unix())
}

// Increment bumps the window counter and returns the count after the
// increment.
func (s *RedisCounterStore) Increment(ctx context.Context, identifier string, dim models.Dimension, windowStart time.Time) (int, error) {
	key := s.key(identifier, dim, windowStart)

	pipe := s.rdb.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return int(incr.Val()), nil
}

// Get returns the current attempt count for the window without side
// effects.
func (s *RedisCounterStore) Get(ctx context.Context, identifier string, dim models.Dimension, windowStart time.Time) (int, error) {
	count, err := s.rdb.Get(ctx, s.key(identifier, dim, windowStart)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rate limit counter: %w", err)
	}
	return count, nil
}

// DeleteBefore is a no-op for Redis: keys carry their own TTL.
func (s *RedisCounterStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
