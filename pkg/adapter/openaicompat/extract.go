package openaicompat

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/booomerangs/relay/pkg/api"
)

// ExtractContent normalizes a backend response body into (content, model).
// It accepts, in order of preference:
//
//  1. the canonical Chat Completions envelope (choices[0].message.content,
//     or the legacy choices[0].text),
//  2. the ad hoc envelopes seen in the wild: response, output, text, reply,
//  3. a bare JSON string,
//  4. a raw plain-text body.
//
// A body that yields no non-empty content is a malformed-response error,
// which the dispatcher treats like any other failed attempt.
func ExtractContent(body []byte, rejectMarkup bool) (string, string, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", "", api.NewMalformedResponseError("empty response body")
	}

	// Canonical Chat Completions shape.
	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err == nil && len(chat.Choices) > 0 {
		if content := strings.TrimSpace(chat.Choices[0].Message.Content); content != "" {
			return content, chat.Model, nil
		}
		if content := strings.TrimSpace(chat.Choices[0].Text); content != "" {
			return content, chat.Model, nil
		}
	}

	// Alternative envelopes.
	var alt altResponse
	if err := json.Unmarshal(body, &alt); err == nil {
		for _, candidate := range []string{alt.Response, alt.Output, alt.Text, alt.Reply} {
			if content := strings.TrimSpace(candidate); content != "" {
				return content, alt.Model, nil
			}
		}
	}

	// Bare JSON string.
	var raw string
	if err := json.Unmarshal(body, &raw); err == nil {
		if content := strings.TrimSpace(raw); content != "" {
			return content, "", nil
		}
		return "", "", api.NewMalformedResponseError("empty string response")
	}

	// Raw text body. JSON-looking bodies that reached this point carry no
	// recognizable content field, so they are malformed rather than prose.
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return "", "", api.NewMalformedResponseError("no content field in response")
	}
	if rejectMarkup && strings.HasPrefix(trimmed, "<") {
		return "", "", api.NewMalformedResponseError("backend returned markup instead of content")
	}
	if !utf8.ValidString(trimmed) {
		return "", "", api.NewMalformedResponseError("response body is not valid text")
	}

	return trimmed, "", nil
}
