// Package httputil holds the JSON response helpers shared by HTTP handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"rosterclaim/pkg/platform/sentinel"
)

// maxBodyBytes bounds request bodies the helpers decode.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err onto a status and error code. Descriptions are returned
// for client errors only; server errors never leak their cause.
func WriteError(w http.ResponseWriter, err error) {
	status, code := StatusFor(err)
	body := ErrorResponse{Error: code}
	if status < http.StatusInternalServerError {
		body.Description = err.Error()
	}
	WriteJSON(w, status, body)
}

// WriteFailure writes a server error with a fixed, caller-chosen message.
func WriteFailure(w http.ResponseWriter, status int, description string) {
	_, code := statusCode(status)
	WriteJSON(w, status, ErrorResponse{Error: code, Description: description})
}

// StatusFor maps sentinel errors onto HTTP statuses and error codes.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, sentinel.ErrInvalidState):
		return statusCode(http.StatusBadRequest)
	case errors.Is(err, sentinel.ErrNotFound):
		return statusCode(http.StatusNotFound)
	case errors.Is(err, sentinel.ErrConflict):
		return statusCode(http.StatusConflict)
	case errors.Is(err, sentinel.ErrUnavailable):
		return statusCode(http.StatusServiceUnavailable)
	default:
		return statusCode(http.StatusInternalServerError)
	}
}

func statusCode(status int) (int, string) {
	switch status {
	case http.StatusBadRequest:
		return status, "bad_request"
	case http.StatusNotFound:
		return status, "not_found"
	case http.StatusConflict:
		return status, "conflict"
	case http.StatusServiceUnavailable:
		return status, "unavailable"
	default:
		return status, "internal_error"
	}
}

// ErrBadRequest marks malformed request input.
var ErrBadRequest = errors.New("bad request")

// Decode reads a JSON body into T, rejecting unknown fields and trailing data.
func Decode[T any](r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("%w: invalid request body: %w", ErrBadRequest, err)
	}
	if dec.More() {
		return v, fmt.Errorf("%w: unexpected data after request body", ErrBadRequest)
	}
	return v, nil
}
