package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_FixedWindow(t *testing.T) {
	s := NewMemoryStore()
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := s.Incr(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	n, err := s.Incr(ctx, "other", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "keys are independent")

	clock = clock.Add(59 * time.Second)
	n, _ = s.Incr(ctx, "k", time.Minute)
	assert.Equal(t, int64(4), n)

	clock = clock.Add(time.Second)
	n, _ = s.Incr(ctx, "k", time.Minute)
	assert.Equal(t, int64(1), n, "a new window starts at resetAt")
}

func TestMemoryStore_Sweep(t *testing.T) {
	s := NewMemoryStore()
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	ctx := context.Background()

	_, _ = s.Incr(ctx, "short", time.Second)
	_, _ = s.Incr(ctx, "long", time.Hour)
	require.Equal(t, 2, s.Len())

	clock = clock.Add(2 * time.Second)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 0, s.Sweep())
}
