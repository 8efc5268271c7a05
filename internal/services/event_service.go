package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/tasks-be/internal/models"
	"github.com/jmoiron/sqlx"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(ctx context.Context, event models.Event) error
	GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error)
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventService persists security events.
type EventService struct {
	db *sqlx.DB
}

// NewEventService creates a new EventService.
func NewEventService(db *sqlx.DB) *EventService {
	return &EventService{db: db}
}

// CreateEvent stores a new event. ID and CreatedAt are filled in when empty.
func (s *EventService) CreateEvent(ctx context.Context, event models.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO security_events (id, type, level, message, user_id, ip_address, created_at)
		 VALUES (:id, :type, :level, :message, :user_id, :ip_address, :created_at)`, event)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetRecentEvents retrieves the most recent events from the database.
func (s *EventService) GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	events := []models.Event{}
	err := s.db.SelectContext(ctx, &events,
		s.db.Rebind(`SELECT id, type, level, message, user_id, ip_address, created_at
		 FROM security_events ORDER BY created_at DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return events, nil
}

// DeleteEventsBefore removes events created before cutoff and returns how
// many rows went.
func (s *EventService) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM security_events WHERE created_at < ?`), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
