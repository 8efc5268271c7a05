package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore is a CounterStore shared by every instance pointing at the
// same Redis.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a RedisStore. Keys are namespaced under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Incr implements CounterStore. The expiry is only set by the hit that opens
// the window, so the window does not slide.
func (s *RedisStore) Incr(ctx context.Context, key string, d time.Duration) (int64, error) {
	key = s.prefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}

	// PTTL reports -1 for a key without expiry.
	if incr.Val() == 1 || ttl.Val() < 0 {
		if err := s.client.PExpire(ctx, key, d).Err(); err != nil {
			return 0, fmt.Errorf("redis pexpire: %w", err)
		}
	}
	return incr.Val(), nil
}
