package api

import (
	"strings"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "with param",
			err:  NewValidationError("message", "message must not be empty"),
			want: "invalid_request: message must not be empty (param: message)",
		},
		{
			name: "without param",
			err:  NewTimeoutError("attempt exceeded 5s"),
			want: "adapter_timeout: attempt exceeded 5s",
		},
		{
			name: "transport",
			err:  NewTransportError("connection refused"),
			want: "adapter_transport_error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(NewValidationError("message", "empty")) {
		t.Error("expected IsValidation to be true for validation error")
	}
	if IsValidation(NewTransportError("boom")) {
		t.Error("expected IsValidation to be false for transport error")
	}
	if IsValidation(nil) {
		t.Error("expected IsValidation to be false for nil")
	}
}

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"normal message", "hello there", false},
		{"empty", "", true},
		{"whitespace only", "   \t\n  ", true},
		{"single character", "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(tt.payload)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePayload(%q) error = %v, wantErr %v", tt.payload, err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "invalid_request") {
				t.Errorf("validation error should carry invalid_request type, got %v", err)
			}
		})
	}
}
