package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/isdelr/tasks-be/internal/apperror"
	"github.com/rs/zerolog/hlog"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// MessageResponse is the body of acknowledgement-only endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs server-side failures and renders err.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if apperror.TypeOf(err) == apperror.InternalError {
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	apperror.Write(w, err)
}

// decodeJSON decodes a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.NewBadRequest("Request body is required", err)
		}
		return apperror.NewBadRequest("Invalid request body", err)
	}
	return nil
}
