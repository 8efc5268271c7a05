package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper drops expired state and reports how many entries it removed.
type Sweeper interface {
	Sweep() int
}

// Pruner deletes stored records older than cutoff.
type Pruner interface {
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// pruneTimeout bounds a single retention pass.
const pruneTimeout = 30 * time.Second

// Scheduler runs periodic housekeeping jobs.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cronLogger{log}))),
		log:  log,
	}
}

// Every schedules job under spec, a standard cron expression or a
// descriptor such as "@every 1m".
func (s *Scheduler) Every(spec, name string, job func()) error {
	if _, err := s.cron.AddFunc(spec, func() {
		s.log.Debug().Str("job", name).Msg("Running job")
		job()
	}); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// SweepEvery schedules periodic sweeps of sw.
func (s *Scheduler) SweepEvery(spec, name string, sw Sweeper) error {
	return s.Every(spec, name, func() {
		if n := sw.Sweep(); n > 0 {
			s.log.Info().Str("job", name).Int("removed", n).Msg("Swept expired entries")
		}
	})
}

// PruneEvery schedules deletion of records older than retention.
func (s *Scheduler) PruneEvery(spec, name string, p Pruner, retention time.Duration) error {
	if retention <= 0 {
		return fmt.Errorf("schedule %s: retention must be positive", name)
	}
	return s.Every(spec, name, func() {
		ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
		defer cancel()
		n, err := p.DeleteEventsBefore(ctx, time.Now().Add(-retention))
		if err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("Failed to prune old records")
			return
		}
		if n > 0 {
			s.log.Info().Str("job", name).Int64("removed", n).Msg("Pruned old records")
		}
	})
}

// Run starts the scheduler in its own goroutine.
func (s *Scheduler) Run() {
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Starting background scheduler")
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Stopped background scheduler")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
