package models

import "time"

// Security event types recorded by the audit trail.
const (
	EventLoginAttempt       = "login_attempt"
	EventFailedAuth         = "failed_authentication"
	EventUnauthorizedAccess = "unauthorized_access"
	EventUserRegistration   = "user_registration"
	EventDataAccess         = "data_access"
)

// Event represents a security-relevant action in the system.
type Event struct {
	ID        string    `json:"id" db:"id"`
	Type      string    `json:"type" db:"type"`
	Level     string    `json:"level" db:"level"` // e.g., "info", "warn"
	Message   string    `json:"message" db:"message"`
	UserID    *string   `json:"user_id,omitempty" db:"user_id"`
	IPAddress string    `json:"ip_address" db:"ip_address"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
