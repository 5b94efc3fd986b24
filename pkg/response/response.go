// Package response writes the JSON bodies the application server returns.
// Errors use a flat envelope with a numeric code, for example:
//
//	{"code":101,"error":"object not found"}
package response

import (
	"encoding/json"
	"net/http"
)

// Error codes carried in the envelope.
const (
	CodeInternal       = 1
	CodeInvalidJSON    = 107
	CodeObjectNotFound = 101
	CodeInvalidClass   = 103
	CodeUnauthorized   = 119
	CodeInvalidQuery   = 102
)

type errorEnvelope struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// OK sends a 200 with v.
func OK(w http.ResponseWriter, v interface{}) {
	JSON(w, http.StatusOK, v)
}

// Created sends a 201 with v.
func Created(w http.ResponseWriter, v interface{}) {
	JSON(w, http.StatusCreated, v)
}

// Error sends an error envelope.
func Error(w http.ResponseWriter, status, code int, message string) {
	JSON(w, status, errorEnvelope{Code: code, Error: message})
}

// Unauthorized sends a 403 with the unauthorized code.
func Unauthorized(w http.ResponseWriter) {
	Error(w, http.StatusForbidden, CodeUnauthorized, "unauthorized")
}

// NotFound sends a 404 for a missing object.
func NotFound(w http.ResponseWriter) {
	Error(w, http.StatusNotFound, CodeObjectNotFound, "object not found")
}

// Internal sends a 500.
func Internal(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, CodeInternal, "internal server error")
}
