package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/tasks-be/internal/apperror"
)

// AssertOwner checks that the user ID addressed by a request path is the
// authenticated one. The comparison is exact: no case folding, no trimming.
func AssertOwner(pathUserID, tokenUserID string) error {
	if pathUserID != tokenUserID {
		return apperror.NewForbidden("URL user_id does not match authenticated user_id", nil)
	}
	return nil
}

// RequireOwner creates a middleware comparing the chi URL parameter param
// against the subject stored by Authenticate. It must run after Authenticate.
func (r *Resolver) RequireOwner(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			subject, _ := UserIDFromContext(req.Context())
			if err := AssertOwner(chi.URLParam(req, param), subject); err != nil {
				r.recorder.UnauthorizedAccess(req.Context(), req.RemoteAddr, subject, req.URL.Path, req.Method)
				apperror.Write(w, err)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
