package handlers

import (
	"net/http"
	"time"

	"github.com/isdelr/tasks-be/internal/apperror"
	"github.com/isdelr/tasks-be/internal/audit"
	"github.com/isdelr/tasks-be/internal/auth"
	"github.com/isdelr/tasks-be/internal/services"
	"github.com/rs/zerolog/hlog"
)

// UserHandler handles HTTP requests for registration and login.
type UserHandler struct {
	service  services.UserServiceProvider
	recorder *audit.Recorder
	cookie   CookieOptions
}

// CookieOptions controls the token cookie set at login.
type CookieOptions struct {
	TTL    time.Duration
	Secure bool
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider, recorder *audit.Recorder, cookie CookieOptions) *UserHandler {
	if cookie.TTL <= 0 {
		cookie.TTL = auth.DefaultTokenTTL
	}
	return &UserHandler{service: service, recorder: recorder, cookie: cookie}
}

// CredentialsPayload is the body of register and login requests.
type CredentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Register handles new user registration.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload CredentialsPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.service.Register(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if apperror.IsConflict(err) {
			hlog.FromRequest(r).Warn().Str("email", payload.Email).Msg("Duplicate registration")
		}
		writeError(w, r, err)
		return
	}

	h.recorder.UserRegistration(r.Context(), r.RemoteAddr, user.Email, user.ID)
	writeJSON(w, http.StatusCreated, user)
}

// Login handles user authentication and token issuance.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload CredentialsPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	token, user, err := h.service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if apperror.IsUnauthenticated(err) {
			h.recorder.LoginAttempt(r.Context(), r.RemoteAddr, payload.Email, "", false)
		}
		writeError(w, r, err)
		return
	}
	h.recorder.LoginAttempt(r.Context(), r.RemoteAddr, user.Email, user.ID, true)

	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    token,
		Expires:  time.Now().Add(h.cookie.TTL),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})

	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Me returns the user loaded by the AuthenticateUser middleware.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, apperror.NewInternal("Internal server error", nil))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Logout clears the token cookie. Issued tokens stay valid until they expire.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
	writeJSON(w, http.StatusOK, MessageResponse{Message: h.service.Logout()})
}
