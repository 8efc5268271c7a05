package auth

import (
	"context"

	"github.com/isdelr/tasks-be/internal/models"
)

type contextKey string

const (
	userIDKey = contextKey("userID")
	userKey   = contextKey("user")
)

// WithUserID returns a copy of ctx carrying the authenticated subject.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the subject stored by the authentication middleware.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// WithUser returns a copy of ctx carrying the full authenticated user.
func WithUser(ctx context.Context, user models.User) context.Context {
	ctx = WithUserID(ctx, user.ID)
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user stored by the user-loading middleware.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey).(models.User)
	return user, ok
}
