package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kozaktomas/photo-library/internal/avatar"
	"github.com/kozaktomas/photo-library/internal/database"
	"github.com/kozaktomas/photo-library/internal/ingest"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// errDatabaseQuery is the message of failed read queries.
const errDatabaseQuery = "Database query failed"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondNull sends a JSON null, the body of lookups that found nothing.
func respondNull(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("null\n"))
}

// ErrorDesc describes one error of a cause chain.
type ErrorDesc struct {
	Description string     `json:"description"`
	Cause       *ErrorDesc `json:"cause,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error       string     `json:"error"`
	Description string     `json:"description"`
	Cause       *ErrorDesc `json:"cause,omitempty"`
	PhotoID     int64      `json:"photo_id,omitempty"`
}

// describe renders err and its Unwrap chain. Each level gets its own
// message with the wrapped error's text trimmed off.
func describe(err error) *ErrorDesc {
	if err == nil {
		return nil
	}
	inner := errors.Unwrap(err)
	msg := err.Error()
	if inner != nil {
		msg = strings.TrimSuffix(msg, ": "+inner.Error())
	}
	return &ErrorDesc{Description: msg, Cause: describe(inner)}
}

// respondError sends an error response without a cause.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Description: message})
}

// respondFailure sends message as the error with err as its cause chain.
// An empty message promotes err's own description. The status is derived
// from err.
func respondFailure(w http.ResponseWriter, message string, err error) {
	cause := describe(err)
	if message == "" && cause != nil {
		message, cause = cause.Description, cause.Cause
	}
	body := ErrorResponse{
		Error:       message,
		Description: message,
		Cause:       cause,
	}
	var ie *ingest.Error
	if errors.As(err, &ie) && ie.Kind == ingest.PhotoAlreadyPosted {
		body.PhotoID = ie.PhotoID
	}
	respondJSON(w, statusFor(err), body)
}

// statusError pins the HTTP status of a request failure.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string {
	return e.err.Error()
}

func withStatus(status int, err error) error {
	return &statusError{status: status, err: err}
}

// statusFor maps a failure onto an HTTP status code.
func statusFor(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	if kind, ok := ingest.KindOf(err); ok {
		switch {
		case kind.InputError():
			return http.StatusBadRequest
		case kind == ingest.PhotoAlreadyPosted:
			return http.StatusConflict
		case kind == ingest.OperationCancelled:
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}

	switch {
	case errors.Is(err, database.ErrSelfMerge):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNoSuchRecord), errors.Is(err, avatar.ErrNotFound):
		return http.StatusNotFound
	case database.IsCancelled(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
