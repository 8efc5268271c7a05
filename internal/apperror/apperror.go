// Package apperror defines the error taxonomy shared by every layer and its
// mapping onto HTTP responses.
package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the category of an application error.
type ErrorType int

const (
	// InternalError is for unexpected failures (database down, bugs).
	InternalError ErrorType = iota
	// Unauthenticated means a missing, invalid or expired token, or bad credentials.
	Unauthenticated
	// Forbidden means an authenticated caller may not act on the addressed resource.
	Forbidden
	// NotFound covers both absent resources and resources owned by someone else.
	NotFound
	// Conflict means the resource already exists.
	Conflict
	// ValidationFailed is a field length or shape violation.
	ValidationFailed
	// BadRequest is an undecodable request.
	BadRequest
	// TooManyRequests is a rate limit rejection.
	TooManyRequests
	// Unavailable means a dependency such as the database is unreachable.
	Unavailable
	// MethodNotAllowed is a request using an HTTP method the API never serves.
	MethodNotAllowed
)

// AppError carries a type, a client-safe message and an optional cause.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code for the error type.
func (e *AppError) StatusCode() int {
	switch e.Type {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		// Duplicate registration is answered with 400, not 409.
		return http.StatusBadRequest
	case ValidationFailed, BadRequest:
		return http.StatusBadRequest
	case TooManyRequests:
		return http.StatusTooManyRequests
	case Unavailable:
		return http.StatusServiceUnavailable
	case MethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

func New(t ErrorType, message string, err error) *AppError {
	return &AppError{Type: t, Message: message, Err: err}
}

func NewUnauthenticated(message string, err error) *AppError {
	return New(Unauthenticated, message, err)
}

func NewForbidden(message string, err error) *AppError {
	return New(Forbidden, message, err)
}

func NewNotFound(message string, err error) *AppError {
	return New(NotFound, message, err)
}

func NewConflict(message string, err error) *AppError {
	return New(Conflict, message, err)
}

func NewValidation(message string, err error) *AppError {
	return New(ValidationFailed, message, err)
}

func NewBadRequest(message string, err error) *AppError {
	return New(BadRequest, message, err)
}

func NewInternal(message string, err error) *AppError {
	return New(InternalError, message, err)
}

// TypeOf returns the type of the first AppError in err's chain, or
// InternalError when there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return InternalError
}

func IsUnauthenticated(err error) bool { return err != nil && TypeOf(err) == Unauthenticated }
func IsForbidden(err error) bool       { return err != nil && TypeOf(err) == Forbidden }
func IsNotFound(err error) bool        { return err != nil && TypeOf(err) == NotFound }
func IsConflict(err error) bool        { return err != nil && TypeOf(err) == Conflict }
func IsValidation(err error) bool      { return err != nil && TypeOf(err) == ValidationFailed }

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Write renders err as a JSON error response. Errors that are not an
// AppError become a 500 with a generic message so internals never leak.
func Write(w http.ResponseWriter, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = NewInternal("Internal server error", err)
	}

	if appErr.Type == Unauthenticated {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode())
	_ = json.NewEncoder(w).Encode(ErrorResponse{Detail: appErr.Message})
}
