package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/isdelr/tasks-be/internal/apperror"
	"github.com/isdelr/tasks-be/internal/models"
)

// TokenCookie is the cookie set at login and read when no Authorization
// header is present.
const TokenCookie = "token"

// credentialsMessage is the one message every authentication failure carries.
const credentialsMessage = "Could not validate credentials"

var (
	errMissingToken = errors.New("missing token")
	errUnknownUser  = errors.New("unknown user")
)

// UserLookup loads a user record by ID.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (models.User, error)
}

// FailureRecorder is told about rejected requests.
type FailureRecorder interface {
	FailedAuth(ctx context.Context, ip, method, reason string)
	UnauthorizedAccess(ctx context.Context, ip, userID, resource, action string)
}

type nopRecorder struct{}

func (nopRecorder) FailedAuth(context.Context, string, string, string)                  {}
func (nopRecorder) UnauthorizedAccess(context.Context, string, string, string, string) {}

// Resolver turns presented tokens into identities.
type Resolver struct {
	codec    *TokenCodec
	users    UserLookup
	recorder FailureRecorder
}

// NewResolver creates a Resolver. users is only needed for the user-loading
// variant; recorder may be nil.
func NewResolver(codec *TokenCodec, users UserLookup, recorder FailureRecorder) *Resolver {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Resolver{codec: codec, users: users, recorder: recorder}
}

// ResolveIdentity decodes token and returns its subject without touching
// the user store. A deleted user's unexpired token still resolves here.
func (r *Resolver) ResolveIdentity(token string) (string, error) {
	if token == "" {
		return "", apperror.NewUnauthenticated(credentialsMessage, errMissingToken)
	}
	subject, err := r.codec.Decode(token)
	if err != nil {
		return "", apperror.NewUnauthenticated(credentialsMessage, err)
	}
	return subject, nil
}

// ResolveUser decodes token and loads the matching user record.
func (r *Resolver) ResolveUser(ctx context.Context, token string) (models.User, error) {
	subject, err := r.ResolveIdentity(token)
	if err != nil {
		return models.User{}, err
	}
	user, err := r.users.GetUserByID(ctx, subject)
	if err != nil {
		if apperror.IsNotFound(err) {
			return models.User{}, apperror.NewUnauthenticated(credentialsMessage, fmt.Errorf("%w: %s", errUnknownUser, subject))
		}
		return models.User{}, err
	}
	return user, nil
}

// TokenFromRequest extracts the bearer token from the Authorization header,
// falling back to the token cookie.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(TokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// Authenticate creates a middleware that rejects requests without a valid
// token and stores the subject in the request context.
func (r *Resolver) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		subject, err := r.ResolveIdentity(TokenFromRequest(req))
		if err != nil {
			r.reject(w, req, err)
			return
		}
		next.ServeHTTP(w, req.WithContext(WithUserID(req.Context(), subject)))
	})
}

// AuthenticateUser is Authenticate plus a user lookup; the loaded user is
// stored in the request context.
func (r *Resolver) AuthenticateUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		user, err := r.ResolveUser(req.Context(), TokenFromRequest(req))
		if err != nil {
			r.reject(w, req, err)
			return
		}
		next.ServeHTTP(w, req.WithContext(WithUser(req.Context(), user)))
	})
}

// RequireRole creates a middleware passing only users holding role. It must
// run after AuthenticateUser.
func (r *Resolver) RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			user, ok := UserFromContext(req.Context())
			if !ok || user.Role != role {
				r.recorder.UnauthorizedAccess(req.Context(), req.RemoteAddr, user.ID, req.URL.Path, req.Method)
				apperror.Write(w, apperror.NewForbidden("Insufficient permissions", nil))
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func (r *Resolver) reject(w http.ResponseWriter, req *http.Request, err error) {
	if apperror.IsUnauthenticated(err) {
		reason := "invalid token"
		switch {
		case errors.Is(err, ErrTokenExpired):
			reason = "token expired"
		case errors.Is(err, errMissingToken):
			reason = errMissingToken.Error()
		case errors.Is(err, errUnknownUser):
			reason = errUnknownUser.Error()
		}
		r.recorder.FailedAuth(req.Context(), req.RemoteAddr, "bearer", reason)
	}
	apperror.Write(w, err)
}
