package monitoring

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (s *countingSweeper) Sweep() int {
	s.calls.Add(1)
	return 1
}

type recordingPruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (p *recordingPruner) DeleteEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoffs = append(p.cutoffs, cutoff)
	return 3, p.err
}

func (p *recordingPruner) first() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.cutoffs) == 0 {
		return time.Time{}, false
	}
	return p.cutoffs[0], true
}

func TestScheduler_RejectsBadSpec(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	err := s.Every("not a schedule", "bad", func() {})
	assert.Error(t, err)
}

func TestScheduler_SweepEvery(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	sw := &countingSweeper{}
	require.NoError(t, s.SweepEvery("@every 1s", "ratelimit", sw))

	s.Run()
	assert.Eventually(t, func() bool { return sw.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestScheduler_RecoversPanickingJob(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	var after atomic.Int32
	require.NoError(t, s.Every("@every 1s", "panics", func() { panic("boom") }))
	require.NoError(t, s.Every("@every 1s", "counts", func() { after.Add(1) }))

	s.Run()
	assert.Eventually(t, func() bool { return after.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestScheduler_PruneEvery(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	p := &recordingPruner{}
	require.NoError(t, s.PruneEvery("@every 1s", "security-event-retention", p, 24*time.Hour))

	start := time.Now()
	s.Run()
	assert.Eventually(t, func() bool {
		_, ok := p.first()
		return ok
	}, 3*time.Second, 50*time.Millisecond)
	s.Stop()

	cutoff, _ := p.first()
	assert.WithinDuration(t, start.Add(-24*time.Hour), cutoff, 5*time.Second)
}

func TestScheduler_PruneEveryKeepsRunningAfterError(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	p := &recordingPruner{err: errors.New("database is locked")}
	require.NoError(t, s.PruneEvery("@every 1s", "security-event-retention", p, time.Hour))

	s.Run()
	assert.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.cutoffs) >= 2
	}, 4*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestScheduler_PruneEveryRejectsZeroRetention(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	assert.Error(t, s.PruneEvery("@every 1h", "retention", &recordingPruner{}, 0))
}
