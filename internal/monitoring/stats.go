package monitoring

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats is a snapshot of this process's resource usage.
type ProcessStats struct {
	UptimeSeconds  int64     `json:"uptime_seconds"`
	MemoryRSSBytes uint64    `json:"memory_rss_bytes"`
	CPUPercent     float64   `json:"cpu_percent"`
	Goroutines     int       `json:"goroutines"`
	CollectedAt    time.Time `json:"collected_at"`
}

// StatCollector periodically samples process stats.
type StatCollector struct {
	proc    *process.Process
	started time.Time
	log     zerolog.Logger

	mu     sync.RWMutex
	latest ProcessStats
}

// NewStatCollector creates a collector for the current process.
func NewStatCollector(log zerolog.Logger) (*StatCollector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &StatCollector{
		proc:    proc,
		started: time.Now(),
		log:     log.With().Str("component", "stats").Logger(),
	}, nil
}

// Collect samples the process and stores the result as the latest snapshot.
// Fields that cannot be read are left at zero.
func (c *StatCollector) Collect() ProcessStats {
	now := time.Now()
	stats := ProcessStats{
		UptimeSeconds: int64(now.Sub(c.started).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		CollectedAt:   now.UTC(),
	}
	if mem, err := c.proc.MemoryInfo(); err == nil {
		stats.MemoryRSSBytes = mem.RSS
	} else {
		c.log.Warn().Err(err).Msg("Failed to read memory info")
	}
	if cpu, err := c.proc.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	} else {
		c.log.Warn().Err(err).Msg("Failed to read cpu usage")
	}

	c.mu.Lock()
	c.latest = stats
	c.mu.Unlock()
	return stats
}

// Latest returns the most recent snapshot, collecting one if none exists.
func (c *StatCollector) Latest() ProcessStats {
	c.mu.RLock()
	stats := c.latest
	c.mu.RUnlock()
	if stats.CollectedAt.IsZero() {
		return c.Collect()
	}
	return stats
}
