package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/tasks-be/internal/apperror"
	"github.com/isdelr/tasks-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers map[string]models.User

func (s stubUsers) GetUserByID(_ context.Context, id string) (models.User, error) {
	u, ok := s[id]
	if !ok {
		return models.User{}, apperror.NewNotFound("User not found", nil)
	}
	return u, nil
}

type failingUsers struct{}

func (failingUsers) GetUserByID(context.Context, string) (models.User, error) {
	return models.User{}, errors.New("db down")
}

type recordedFailure struct {
	kind   string
	userID string
	reason string
}

type spyRecorder struct {
	mu     sync.Mutex
	events []recordedFailure
}

func (s *spyRecorder) FailedAuth(_ context.Context, _, _, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedFailure{kind: "failed_auth", reason: reason})
}

func (s *spyRecorder) UnauthorizedAccess(_ context.Context, _, userID, _, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedFailure{kind: "unauthorized", userID: userID})
}

func TestResolveIdentity(t *testing.T) {
	codec := newTestCodec(t)
	r := NewResolver(codec, nil, nil)

	good, err := codec.Issue("u-1", time.Minute)
	require.NoError(t, err)

	sub, err := r.ResolveIdentity(good)
	require.NoError(t, err)
	assert.Equal(t, "u-1", sub)

	other, err := NewTokenCodec("another-secret", "HS256")
	require.NoError(t, err)
	forged, err := other.Issue("u-1", time.Minute)
	require.NoError(t, err)

	codec.now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, err := codec.Issue("u-1", time.Minute)
	require.NoError(t, err)
	codec.now = time.Now

	for name, tok := range map[string]string{"empty": "", "garbage": "abc", "forged": forged, "expired": stale} {
		t.Run(name, func(t *testing.T) {
			_, err := r.ResolveIdentity(tok)
			require.True(t, apperror.IsUnauthenticated(err), "got %v", err)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "Could not validate credentials", appErr.Message)
		})
	}
}

func TestResolveUser(t *testing.T) {
	codec := newTestCodec(t)
	alice := models.User{ID: "u-alice", Email: "alice@example.com", Role: models.RoleUser}
	r := NewResolver(codec, stubUsers{alice.ID: alice}, nil)

	tok, err := codec.Issue(alice.ID, time.Minute)
	require.NoError(t, err)
	got, err := r.ResolveUser(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	// A valid token for a user that no longer exists.
	ghost, err := codec.Issue("u-ghost", time.Minute)
	require.NoError(t, err)
	_, err = r.ResolveUser(context.Background(), ghost)
	assert.True(t, apperror.IsUnauthenticated(err))

	r = NewResolver(codec, failingUsers{}, nil)
	_, err = r.ResolveUser(context.Background(), tok)
	require.Error(t, err)
	assert.False(t, apperror.IsUnauthenticated(err), "store failures are not auth failures")
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{"bearer", "Bearer abc", "", "abc"},
		{"lowercase scheme", "bearer abc", "", "abc"},
		{"other scheme", "Basic abc", "", ""},
		{"no space", "Bearerabc", "", ""},
		{"cookie fallback", "", "from-cookie", "from-cookie"},
		{"header wins", "Bearer abc", "from-cookie", "abc"},
		{"nothing", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tt.cookie})
			}
			assert.Equal(t, tt.want, TokenFromRequest(req))
		})
	}
}

func TestAuthenticate(t *testing.T) {
	codec := newTestCodec(t)
	spy := &spyRecorder{}
	r := NewResolver(codec, nil, spy)

	var seen string
	h := r.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		seen, _ = UserIDFromContext(req.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tok, err := codec.Issue("u-1", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u-1", seen)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	assert.JSONEq(t, `{"detail":"Could not validate credentials"}`, rec.Body.String())

	require.Len(t, spy.events, 1)
	assert.Equal(t, recordedFailure{kind: "failed_auth", reason: "missing token"}, spy.events[0])
}

func TestAuthenticateUser(t *testing.T) {
	codec := newTestCodec(t)
	alice := models.User{ID: "u-alice", Email: "alice@example.com", Role: models.RoleAdmin}
	spy := &spyRecorder{}
	r := NewResolver(codec, stubUsers{alice.ID: alice}, spy)

	var seen models.User
	h := r.AuthenticateUser(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		seen, _ = UserFromContext(req.Context())
	}))

	tok, err := codec.Issue(alice.ID, time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tok})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, alice, seen)

	ghost, err := codec.Issue("u-ghost", time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+ghost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Len(t, spy.events, 1)
	assert.Equal(t, "unknown user", spy.events[0].reason)
}

func TestRequireRole(t *testing.T) {
	codec := newTestCodec(t)
	admin := models.User{ID: "u-admin", Role: models.RoleAdmin}
	plain := models.User{ID: "u-plain", Role: models.RoleUser}
	r := NewResolver(codec, stubUsers{admin.ID: admin, plain.ID: plain}, nil)

	h := r.AuthenticateUser(r.RequireRole(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	for id, want := range map[string]int{admin.ID: http.StatusNoContent, plain.ID: http.StatusForbidden} {
		tok, err := codec.Issue(id, time.Minute)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, id)
	}
}
