package errors

import (
	"fmt"
	"net/http"
)

// APIError represents a custom error type for API responses
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details string `json:"details,omitempty"`
}

// Error returns the error message
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code, message string, status int, details ...string) *APIError {
	err := &APIError{
		Code:    code,
		Message: message,
		Status:  status,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

// WithDetails returns a copy of e carrying details. Sentinels are never mutated.
func (e *APIError) WithDetails(details string) *APIError {
	cp := *e
	cp.Details = details
	return &cp
}

var (
	ErrInvalidInput      = NewAPIError("INVALID_INPUT", "Invalid request data", http.StatusBadRequest)
	ErrInvalidCoordinate = NewAPIError("INVALID_COORDINATE", "Latitude must be within [-90, 90] and longitude within [-180, 180]", http.StatusBadRequest)
	ErrInvalidHitKind    = NewAPIError("INVALID_KIND", "Invalid kind. Must be one of: enter_radius, open_card, manual_click", http.StatusBadRequest)
	ErrUnauthorized      = NewAPIError("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrNotFound          = NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrUnknownPOI        = NewAPIError("UNKNOWN_POI", "Point of interest not found", http.StatusNotFound)
	ErrSessionNotFound   = NewAPIError("SESSION_NOT_FOUND", "Tracking session not found or expired", http.StatusNotFound)
	ErrMethodNotAllowed  = NewAPIError("METHOD_NOT_ALLOWED", "Method not allowed", http.StatusMethodNotAllowed)
	ErrConflict          = NewAPIError("CONFLICT", "Resource conflict", http.StatusConflict)
	ErrRateLimited       = NewAPIError("RATE_LIMITED", "Rate limit exceeded", http.StatusTooManyRequests)
	ErrTooManySessions   = NewAPIError("TOO_MANY_SESSIONS", "Too many active tracking sessions, try again later", http.StatusServiceUnavailable)
	ErrInternal          = NewAPIError("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
)

func Wrap(err error, code, message string, status int) *APIError {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr
	}
	return NewAPIError(code, message, status, err.Error())
}
