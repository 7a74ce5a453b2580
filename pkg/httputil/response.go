// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/platinummonkey/bukget/pkg/observability"
)

// ContentTypeJSON is the content type of every API response
const ContentTypeJSON = "application/json"

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteNotFoundError writes a not found error response (404 Not Found)
func WriteNotFoundError(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteInternalError logs err with the request logger and answers 500 without
// leaking the error text
func WriteInternalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.FromContext(r.Context()).
		WithError(err).
		Error("request failed")
	WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
}

// WriteNotImplemented writes a not implemented error (501)
func WriteNotImplemented(w http.ResponseWriter) {
	WriteErrorMessage(w, http.StatusNotImplemented, "not implemented")
}

// WriteRedirect answers 302 to location. The body stays empty so the JSON content
// type set by the header middleware is not replaced with text/html.
func WriteRedirect(w http.ResponseWriter, location string) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusFound)
}
