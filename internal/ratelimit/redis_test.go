package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	s := NewRedisStore(client, "test:"+uuid.NewString()+":")

	for want := int64(1); want <= 3; want++ {
		n, err := s.Incr(ctx, "k", 200*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	ttl, err := client.PTTL(ctx, s.prefix+"k").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	time.Sleep(300 * time.Millisecond)
	n, err := s.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
