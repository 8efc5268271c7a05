package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/isdelr/tasks-be/internal/monitoring"
	"github.com/rs/zerolog/hlog"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// StatsSource provides the latest process stats.
type StatsSource interface {
	Latest() monitoring.ProcessStats
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Database       string    `json:"database"`
	UptimeSeconds  int64     `json:"uptime_seconds"`
	MemoryRSSBytes uint64    `json:"memory_rss_bytes"`
	Goroutines     int       `json:"goroutines"`
}

// HealthHandler serves liveness information.
type HealthHandler struct {
	db    Pinger
	stats StatsSource
}

// NewHealthHandler creates a HealthHandler. stats may be nil.
func NewHealthHandler(db Pinger, stats StatsSource) *HealthHandler {
	return &HealthHandler{db: db, stats: stats}
}

// Check reports process health; it answers 503 when the database is down.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Database: "ok", Timestamp: time.Now().UTC()}
	if h.stats != nil {
		s := h.stats.Latest()
		resp.UptimeSeconds = s.UptimeSeconds
		resp.MemoryRSSBytes = s.MemoryRSSBytes
		resp.Goroutines = s.Goroutines
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Health check: database unreachable")
		resp.Status, resp.Database = "unhealthy", "unreachable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// Root answers the welcome message.
func Root(w http.ResponseWriter, r *http.Request) {
	hlog.FromRequest(r).Info().Msg("Root endpoint accessed")
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Welcome to the Todo API"})
}
