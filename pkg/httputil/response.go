// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/authplane/authplane/pkg/errdefs"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// ErrorResponse is the error envelope returned by every endpoint. Op names
// the operation that failed so the UI can attribute the error.
type ErrorResponse struct {
	Error string `json:"error"`
	Op    string `json:"op,omitempty"`
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteError maps an error onto the taxonomy and writes the envelope,
// preserving the originating operation name.
func WriteError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusForKind(errdefs.KindOf(err)))

	resp := ErrorResponse{Error: err.Error(), Op: errdefs.OpOf(err)}
	var e *errdefs.Error
	if errors.As(err, &e) {
		if e.Message != "" {
			resp.Error = e.Message
		} else if e.Err != nil {
			resp.Error = e.Err.Error()
		}
	}
	json.NewEncoder(w).Encode(resp)
}

// StatusForKind maps an error kind onto an HTTP status code.
func StatusForKind(kind errdefs.Kind) int {
	switch kind {
	case errdefs.KindInvalidInput, errdefs.KindInvalidParent:
		return http.StatusBadRequest
	case errdefs.KindNotFound:
		return http.StatusNotFound
	case errdefs.KindNotEditable:
		return http.StatusLocked
	case errdefs.KindConflict:
		return http.StatusConflict
	case errdefs.KindTimeout:
		return http.StatusGatewayTimeout
	case errdefs.KindUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
