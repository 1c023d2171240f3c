package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/booomerangs/relay/pkg/api"
)

// TestChatCascades verifies that a request survives the broken primary
// backend and is answered by the healthy secondary.
func TestChatCascades(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/chat", api.ChatRequest{
		Message: "hello",
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, readBody(t, resp))
	}

	var chat api.ChatResponse
	decodeJSON(t, resp, &chat)

	if !chat.Success {
		t.Error("success = false, want true")
	}
	if chat.Provider != "secondary" {
		t.Errorf("provider = %q, want secondary", chat.Provider)
	}
	if chat.Response != "Hello from mock!" {
		t.Errorf("response = %q, want %q", chat.Response, "Hello from mock!")
	}
}

// TestChatPinnedBrokenProviderFallsBack verifies that pinning the broken
// adapter still produces an answer, from the guaranteed local fallback.
func TestChatPinnedBrokenProviderFallsBack(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/chat", api.ChatRequest{
		Message:  "hello",
		Provider: "primary",
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, readBody(t, resp))
	}

	var chat api.ChatResponse
	decodeJSON(t, resp, &chat)

	if chat.Provider != "fallback" {
		t.Errorf("provider = %q, want fallback", chat.Provider)
	}
	if chat.Response == "" {
		t.Error("fallback response is empty")
	}
}

// TestChatEmptyMessageRejected verifies request validation surfaces as a
// structured 400.
func TestChatEmptyMessageRejected(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/chat", api.ChatRequest{Message: "   "})

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	var errResp api.ErrorResponse
	decodeJSON(t, resp, &errResp)
	if errResp.Error == nil || errResp.Error.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("unexpected error payload: %+v", errResp.Error)
	}
}

// TestImageGeneration verifies the image kind routes to the image adapter
// and returns a URL.
func TestImageGeneration(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/image", api.ImageRequest{
		Prompt: "a lighthouse at dusk",
		Style:  "realistic",
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, readBody(t, resp))
	}

	var img api.ImageResponse
	decodeJSON(t, resp, &img)

	if img.Provider != "pollinations" {
		t.Errorf("provider = %q, want pollinations", img.Provider)
	}
	if !strings.Contains(img.ImageURL, "lighthouse") {
		t.Errorf("imageUrl = %q, want prompt embedded", img.ImageURL)
	}
}

// TestProvidersListing verifies all registered adapters are reported.
func TestProvidersListing(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/providers")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Providers []api.ProviderInfo `json:"providers"`
	}
	decodeJSON(t, resp, &body)

	names := map[string]bool{}
	for _, p := range body.Providers {
		names[p.Name] = true
	}
	for _, want := range []string{"primary", "secondary", "pollinations"} {
		if !names[want] {
			t.Errorf("provider %q missing from listing: %+v", want, body.Providers)
		}
	}
}

// TestSessionHistoryRoundTrip creates a session, chats against it, and
// reads back the recorded exchange.
func TestSessionHistoryRoundTrip(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/sessions", map[string]string{"title": "integration"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d, want 201", resp.StatusCode)
	}
	var session api.Session
	decodeJSON(t, resp, &session)
	if session.ID == "" {
		t.Fatal("session ID is empty")
	}

	resp = postJSON(t, testEnv.BaseURL()+"/chat", api.ChatRequest{
		Message:   "remember this",
		SessionID: session.ID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d, want 200: %s", resp.StatusCode, readBody(t, resp))
	}
	resp.Body.Close()

	resp = getURL(t, testEnv.BaseURL()+"/sessions/"+session.ID+"/messages")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want 200", resp.StatusCode)
	}
	var history struct {
		Messages []*api.Message `json:"messages"`
	}
	decodeJSON(t, resp, &history)

	if len(history.Messages) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(history.Messages))
	}
	if history.Messages[0].Role != api.RoleUser || history.Messages[0].Content != "remember this" {
		t.Errorf("unexpected user message: %+v", history.Messages[0])
	}
	if history.Messages[1].Role != api.RoleAssistant || history.Messages[1].Provider != "secondary" {
		t.Errorf("unexpected assistant message: %+v", history.Messages[1])
	}
}

// TestUnknownSessionRejected verifies an invalid sessionId is a 400.
func TestUnknownSessionRejected(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/chat", api.ChatRequest{
		Message:   "hello",
		SessionID: "does-not-exist",
	})

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}
