package api

import "strings"

// ValidatePayload checks that a dispatch payload is non-empty after
// trimming whitespace. This is the only input constraint the dispatcher
// enforces itself; everything else is the adapter's concern.
func ValidatePayload(payload string) error {
	if strings.TrimSpace(payload) == "" {
		return NewValidationError("message", "message must not be empty")
	}
	return nil
}
