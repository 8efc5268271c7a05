// Package ratelimit caps how many requests a client may make in a fixed
// time window.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/isdelr/tasks-be/internal/apperror"
	"github.com/rs/zerolog"
)

// CounterStore counts hits per key. Incr returns the count for the current
// window, starting a new window when none is open.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter allows at most limit hits per key per window.
type Limiter struct {
	store  CounterStore
	limit  int
	window time.Duration
	log    zerolog.Logger
}

// New creates a Limiter.
func New(store CounterStore, limit int, window time.Duration, log zerolog.Logger) *Limiter {
	return &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		log:    log.With().Str("component", "ratelimit").Logger(),
	}
}

// Allow records a hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		return false, err
	}
	return n <= int64(l.limit), nil
}

// Middleware rejects requests over the limit with 429, keyed by client IP
// under the given prefix. A failing store lets requests through.
func (l *Limiter) Middleware(prefix string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := prefix + ":" + clientIP(r)
			ok, err := l.Allow(r.Context(), key)
			if err != nil {
				l.log.Error().Err(err).Str("key", key).Msg("rate limit store failed")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				l.log.Warn().Str("key", key).Msg("rate limit exceeded")
				w.Header().Set("Retry-After", retryAfter(l.window))
				apperror.Write(w, apperror.New(apperror.TooManyRequests, "Rate limit exceeded. Please try again later.", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr == "" {
			return "unknown"
		}
		return r.RemoteAddr
	}
	return host
}

func retryAfter(window time.Duration) string {
	secs := int64(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
