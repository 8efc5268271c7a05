package api

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/isdelr/tasks-be/internal/apperror"
	"github.com/isdelr/tasks-be/internal/auth"
)

var blockedPathFragments = []string{"/etc/", "/proc/", "/dev/"}

var allowedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodPatch:   true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

var sqlInjectionPattern = regexp.MustCompile(`(?i)(union\s+select|drop\s+\w+|delete\s+from|insert\s+into|update\s+\w+\s+set|exec\s*\(|script\s*:|alert\s*\(|eval\s*\()`)

// securityHeaders adds the standard hardening headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		next.ServeHTTP(w, r)
	})
}

// requestValidator rejects requests probing for system paths, using unknown
// methods, or carrying SQL in their query string.
func requestValidator(recorder auth.FailureRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := strings.ToLower(r.URL.Path)
			for _, fragment := range blockedPathFragments {
				if strings.Contains(path, fragment) {
					recorder.UnauthorizedAccess(r.Context(), r.RemoteAddr, "", path, "access")
					apperror.Write(w, apperror.NewForbidden("Forbidden path", nil))
					return
				}
			}

			if !allowedMethods[r.Method] {
				recorder.UnauthorizedAccess(r.Context(), r.RemoteAddr, "", path, r.Method)
				apperror.Write(w, apperror.New(apperror.MethodNotAllowed, "Method not allowed", nil))
				return
			}

			if suspiciousQuery(r.URL.Query()) {
				recorder.UnauthorizedAccess(r.Context(), r.RemoteAddr, "", path, "query_param")
				apperror.Write(w, apperror.NewBadRequest("Potential SQL injection detected in query parameters", nil))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func suspiciousQuery(values url.Values) bool {
	for key, vals := range values {
		if sqlInjectionPattern.MatchString(key) {
			return true
		}
		for _, v := range vals {
			if sqlInjectionPattern.MatchString(v) {
				return true
			}
		}
	}
	return false
}
