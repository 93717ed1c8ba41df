// Package httputil writes the JSON envelopes the HTTP handlers share.
//
// Error responses carry an "error" code and, when safe, an
// "error_description". Two masking rules apply at this boundary:
//   - internal errors never expose their description
//   - permission and not-found failures collapse into one uniform
//     "not permitted" response so callers cannot probe for the existence of
//     other estates' data
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "heirloom/pkg/domain-errors"
)

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error onto an HTTP status and masked body.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)

	var de *dErrors.Error
	description := ""
	if e, ok := err.(*dErrors.Error); ok {
		de = e
		description = de.Message
	}

	switch code {
	case dErrors.CodeValidation:
		WriteJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: string(code), Description: description})
	case dErrors.CodeBadRequest:
		WriteJSON(w, http.StatusBadRequest, errorResponse{Error: string(code), Description: description})
	case dErrors.CodeStateConflict:
		// Retryable "already processed" signal, not a generic failure.
		WriteJSON(w, http.StatusConflict, errorResponse{Error: string(code), Description: "already processed"})
	case dErrors.CodePermissionDenied, dErrors.CodeNotFound:
		// Uniform outward message; do not reveal whether the entity exists.
		WriteJSON(w, http.StatusNotFound, errorResponse{Error: string(dErrors.CodePermissionDenied), Description: "not permitted"})
	case dErrors.CodeUnauthorized:
		WriteJSON(w, http.StatusUnauthorized, errorResponse{Error: string(code), Description: description})
	case dErrors.CodeTimeout:
		WriteJSON(w, http.StatusGatewayTimeout, errorResponse{Error: string(code)})
	default:
		WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: string(dErrors.CodeInternal)})
	}
}
