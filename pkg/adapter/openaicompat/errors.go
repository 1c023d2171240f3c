package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/booomerangs/relay/pkg/api"
)

// mapHTTPError converts a non-2xx backend response into an APIError,
// extracting a descriptive message from the body when one is present.
func mapHTTPError(resp *http.Response) *api.APIError {
	message := extractErrorMessage(resp.Body)
	if message == "" {
		message = fmt.Sprintf("backend returned HTTP %d", resp.StatusCode)
	}
	return api.NewTransportError(message)
}

// mapNetworkError classifies a transport-level failure. A deadline that
// expired (either on the attempt context or inside the HTTP client) is a
// timeout; everything else is a transport error.
func mapNetworkError(ctx context.Context, err error) *api.APIError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return api.NewTimeoutError("attempt exceeded adapter timeout")
	}
	return api.NewTransportError(fmt.Sprintf("backend connection error: %s", err.Error()))
}

// extractErrorMessage tries to parse the body as a backend error envelope.
func extractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp chatErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}

	return ""
}
