package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct{}

func (brokenStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("store down")
}

func TestLimiter_Allow(t *testing.T) {
	l := New(NewMemoryStore(), 2, time.Minute, zerolog.Nop())
	ctx := context.Background()

	for i, want := range []bool{true, true, false, false} {
		ok, err := l.Allow(ctx, "ip")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "hit %d", i+1)
	}
}

func TestLimiter_Middleware(t *testing.T) {
	l := New(NewMemoryStore(), 1, time.Minute, zerolog.Nop())
	h := l.Middleware("auth")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1111").Code)

	rec := do("10.0.0.1:2222")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "port is not part of the key")
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"detail":"Rate limit exceeded. Please try again later."}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, do("10.0.0.2:1111").Code)
}

func TestLimiter_MiddlewareFailsOpen(t *testing.T) {
	l := New(brokenStore{}, 1, time.Minute, zerolog.Nop())
	h := l.Middleware("auth")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
