package monitoring

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatCollector(t *testing.T) {
	c, err := NewStatCollector(zerolog.Nop())
	require.NoError(t, err)

	first := c.Latest()
	assert.False(t, first.CollectedAt.IsZero(), "Latest collects when empty")
	assert.Greater(t, first.Goroutines, 0)
	assert.GreaterOrEqual(t, first.UptimeSeconds, int64(0))

	second := c.Collect()
	assert.False(t, second.CollectedAt.Before(first.CollectedAt))
	assert.Equal(t, second, c.Latest())
}
