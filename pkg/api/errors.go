package api

import "fmt"

// ErrorType represents the category of an API error.
type ErrorType string

const (
	// ErrorTypeInvalidRequest marks malformed input to the dispatcher itself.
	// This is the only error type surfaced to callers.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeTimeout marks a single adapter attempt that exceeded its
	// configured timeout. Absorbed by the dispatcher (retry, then cascade).
	ErrorTypeTimeout ErrorType = "adapter_timeout"

	// ErrorTypeTransport marks a network or HTTP failure reaching a provider.
	// Absorbed by the dispatcher.
	ErrorTypeTransport ErrorType = "adapter_transport_error"

	// ErrorTypeMalformedResponse marks a provider response whose content
	// could not be normalized. Absorbed by the dispatcher.
	ErrorTypeMalformedResponse ErrorType = "adapter_malformed_response"

	// ErrorTypeServerError marks internal failures (marshaling, panics).
	ErrorTypeServerError ErrorType = "server_error"
)

// APIError represents a structured error with type, param, and message.
type APIError struct {
	Type    ErrorType `json:"type"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse wraps an APIError for JSON serialization as the top-level
// error response body.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewValidationError creates an APIError for invalid dispatch input.
func NewValidationError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewTimeoutError creates an APIError for an attempt that exceeded its timeout.
func NewTimeoutError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeTimeout,
		Message: message,
	}
}

// NewTransportError creates an APIError for a network or HTTP failure.
func NewTransportError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeTransport,
		Message: message,
	}
}

// NewMalformedResponseError creates an APIError for a provider response
// that could not be normalized into content.
func NewMalformedResponseError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeMalformedResponse,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// IsValidation reports whether err is an APIError of type invalid_request.
func IsValidation(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Type == ErrorTypeInvalidRequest
}
