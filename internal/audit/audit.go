// Package audit records security-relevant events: every event is logged
// under component=security and, when a store is configured, persisted.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/tasks-be/internal/models"
	"github.com/rs/zerolog"
)

// persistTimeout caps how long a request waits on one audit write.
const persistTimeout = 2 * time.Second

// EventStore persists events.
type EventStore interface {
	CreateEvent(ctx context.Context, event models.Event) error
}

// Recorder writes security events to the log and the event store.
type Recorder struct {
	log   zerolog.Logger
	store EventStore
}

// NewRecorder creates a Recorder. store may be nil to only log.
func NewRecorder(log zerolog.Logger, store EventStore) *Recorder {
	return &Recorder{log: log.With().Str("component", "security").Logger(), store: store}
}

// LoginAttempt records a login, successful or not. email is logged but only
// the outcome is persisted.
func (r *Recorder) LoginAttempt(ctx context.Context, ip, email string, userID string, success bool) {
	level := zerolog.InfoLevel
	if !success {
		level = zerolog.WarnLevel
	}
	r.log.WithLevel(level).
		Str("event_type", models.EventLoginAttempt).
		Str("ip_address", ip).
		Str("user_email", email).
		Bool("success", success).
		Msg("login attempt")

	msg := "login failed"
	if success {
		msg = "login succeeded"
	}
	r.persist(ctx, models.EventLoginAttempt, level, msg, userID, ip)
}

// FailedAuth records a rejected bearer token.
func (r *Recorder) FailedAuth(ctx context.Context, ip, method, reason string) {
	r.log.Warn().
		Str("event_type", models.EventFailedAuth).
		Str("ip_address", ip).
		Str("auth_method", method).
		Str("reason", reason).
		Msg("authentication failed")
	r.persist(ctx, models.EventFailedAuth, zerolog.WarnLevel, fmt.Sprintf("%s: %s", method, reason), "", ip)
}

// UnauthorizedAccess records a request for a resource the caller may not touch.
func (r *Recorder) UnauthorizedAccess(ctx context.Context, ip, userID, resource, action string) {
	r.log.Warn().
		Str("event_type", models.EventUnauthorizedAccess).
		Str("ip_address", ip).
		Str("user_id", userID).
		Str("resource", resource).
		Str("action", action).
		Msg("unauthorized access")
	r.persist(ctx, models.EventUnauthorizedAccess, zerolog.WarnLevel, fmt.Sprintf("%s %s", action, resource), userID, ip)
}

// UserRegistration records a new account.
func (r *Recorder) UserRegistration(ctx context.Context, ip, email, userID string) {
	r.log.Info().
		Str("event_type", models.EventUserRegistration).
		Str("ip_address", ip).
		Str("user_email", email).
		Str("user_id", userID).
		Msg("user registered")
	r.persist(ctx, models.EventUserRegistration, zerolog.InfoLevel, "user registered", userID, ip)
}

// DataAccess logs a task operation. It is not persisted.
func (r *Recorder) DataAccess(userID, resource, action string, success bool) {
	r.log.Debug().
		Str("event_type", models.EventDataAccess).
		Str("user_id", userID).
		Str("resource", resource).
		Str("action", action).
		Bool("success", success).
		Msg("data access")
}

func (r *Recorder) persist(ctx context.Context, typ string, level zerolog.Level, msg, userID, ip string) {
	if r.store == nil {
		return
	}
	event := models.Event{Type: typ, Level: level.String(), Message: msg, IPAddress: ip}
	if userID != "" {
		event.UserID = &userID
	}
	// The audit row is kept even when the client has gone away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := r.store.CreateEvent(ctx, event); err != nil {
		r.log.Error().Err(err).Str("event_type", typ).Msg("failed to persist security event")
	}
}
