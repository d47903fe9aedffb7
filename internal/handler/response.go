// Package handler contains the HTTP handlers of the JSON API.
//
// A handler is the glue between HTTP and the services. It parses path
// values, query parameters and the body, calls one service method, and
// writes the result. Business rules live in internal/service; the shape of
// aggregation results is fixed in normalize.go.
package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError, so the API has one
// error shape:
//
//	{"error": "not_found", "message": "group not found with id abc123"}
//
// Validation errors add the offending input:
//
//	{"error": "validation_error", "message": "...", "field": "userIds"}

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/sakif/steam-arena/internal/apperror"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable kind
	Message string `json:"message"`         // human-readable description
	Field   string `json:"field,omitempty"` // set for validation errors
}

// writeJSON sets the headers, then the status, then encodes the body.
// Header changes after the first Write are ignored by net/http.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are gone already; all we can do is log.
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError maps a domain error to its HTTP status.
//
//	ErrValidation → 400 validation_error
//	ErrNotFound   → 404 not_found
//	ErrConflict   → 409 conflict
//	ErrUpstream   → 502 upstream_error
//	anything else → 500 internal_error, with a generic message
//
// errors.As finds the *AppError anywhere in a fmt.Errorf("...: %w") chain.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, kind := statusFor(err)
		if status == http.StatusInternalServerError {
			writeInternalError(w, logger, err)
			return
		}
		writeJSON(w, status, ErrorResponse{Error: kind, Message: appErr.Message, Field: appErr.Field})
		return
	}
	writeInternalError(w, logger, err)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUpstream):
		return http.StatusBadGateway, "upstream_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeInternalError logs the real cause and answers with a message that never
// leaks SQL or file paths.
func writeInternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("request failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// NotFound answers unknown routes in the API error shape.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{
		Error:   "not_found",
		Message: "no route for " + r.Method + " " + r.URL.Path,
	})
}

// MethodNotAllowed answers a known route called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error:   "method_not_allowed",
		Message: r.Method + " is not supported on " + r.URL.Path,
	})
}
