package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/booomerangs/relay/pkg/api"
)

// HTTPStatusFromError maps an APIError type to the corresponding HTTP
// status code. Adapter-level error types never reach the transport layer
// (the dispatcher absorbs them); anything unexpected maps to 500.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api. It sets the Content-Type header and writes
// the HTTP status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an error response, deriving the HTTP status code
// from the error type. Non-APIError values become opaque server errors so
// internal details do not leak to clients.
func WriteAPIError(w http.ResponseWriter, err error) {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		apiErr = api.NewServerError("internal server error")
	}
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
