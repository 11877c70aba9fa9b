// Package respond writes JSON responses and the service's error envelope.
package respond

import (
	"encoding/json"
	"net/http"
)

// Problem is the error body returned for every non-2xx response.
type Problem struct {
	Type   string              `json:"type"`
	Detail string              `json:"detail"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// Error types used in Problem.Type.
const (
	TypeValidation       = "validation_failed"
	TypeInvalidRequest   = "invalid_request"
	TypeNotFound         = "not_found"
	TypeUnauthorized     = "unauthorized"
	TypeForbidden        = "forbidden"
	TypeMethodNotAllowed = "method_not_allowed"
	TypeServerError      = "server_error"
)

// WriteJSON writes payload with the given status code. A payload that cannot be encoded
// produces a 500 Problem instead of a partial body.
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(Problem{Type: TypeServerError, Detail: "internal server error"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// WriteError writes a Problem without field details.
func WriteError(w http.ResponseWriter, status int, kind, detail string) {
	WriteJSON(w, status, Problem{Type: kind, Detail: detail})
}

// WriteFieldErrors writes a 400 Problem naming the offending fields.
func WriteFieldErrors(w http.ResponseWriter, detail string, fields map[string][]string) {
	WriteJSON(w, http.StatusBadRequest, Problem{Type: TypeValidation, Detail: detail, Fields: fields})
}

// WriteInvalidQuery writes a 400 Problem for unusable query parameters.
func WriteInvalidQuery(w http.ResponseWriter, params map[string][]string) {
	WriteJSON(w, http.StatusBadRequest, Problem{Type: TypeInvalidRequest, Detail: "invalid query", Fields: params})
}

// WriteServerError hides the underlying cause; callers log it.
func WriteServerError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, TypeServerError, "internal server error")
}
