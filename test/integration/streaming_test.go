package integration

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/booomerangs/relay/pkg/api"
)

// sseEvent is one parsed server-sent event.
type sseEvent struct {
	name string
	data string
}

// readSSE consumes the response body and returns all events up to and
// including the [DONE] sentinel.
func readSSE(t *testing.T, resp *http.Response) []sseEvent {
	t.Helper()
	defer resp.Body.Close()

	var events []sseEvent
	var current sseEvent

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if current.name != "" || current.data != "" {
				events = append(events, current)
				if current.data == "[DONE]" {
					return events
				}
				current = sseEvent{}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("reading SSE stream: %v", err)
	}
	return events
}

// TestStreamingCascades verifies a streamed chat survives the broken
// primary and is delivered natively by the secondary backend.
func TestStreamingCascades(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/chat/stream", api.ChatRequest{
		Message: "hello",
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, readBody(t, resp))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	events := readSSE(t, resp)
	if len(events) < 3 {
		t.Fatalf("got %d events, want at least info+update+complete: %+v", len(events), events)
	}

	if events[0].name != "info" {
		t.Fatalf("first event = %q, want info", events[0].name)
	}
	var info api.StreamInfo
	if err := json.Unmarshal([]byte(events[0].data), &info); err != nil {
		t.Fatalf("decoding info: %v", err)
	}
	if info.Provider != "secondary" {
		t.Errorf("info provider = %q, want secondary", info.Provider)
	}

	var text strings.Builder
	var sawComplete, sawDone bool
	for _, ev := range events[1:] {
		switch {
		case ev.name == "update":
			var upd api.StreamUpdate
			if err := json.Unmarshal([]byte(ev.data), &upd); err != nil {
				t.Fatalf("decoding update: %v", err)
			}
			text.WriteString(upd.Chunk)
		case ev.name == "complete":
			sawComplete = true
		case ev.data == "[DONE]":
			sawDone = true
		}
	}

	if text.String() != "Hello from mock!" {
		t.Errorf("streamed text = %q, want %q", text.String(), "Hello from mock!")
	}
	if !sawComplete {
		t.Error("no complete event in stream")
	}
	if !sawDone {
		t.Error("no [DONE] sentinel in stream")
	}
}

// TestStreamingFallback verifies the stream variant of the guaranteed
// fallback when the pinned adapter cannot answer.
func TestStreamingFallback(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/chat/stream", api.ChatRequest{
		Message:  "hello",
		Provider: "primary",
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, readBody(t, resp))
	}

	events := readSSE(t, resp)
	if len(events) == 0 {
		t.Fatal("no events received")
	}

	var info api.StreamInfo
	if err := json.Unmarshal([]byte(events[0].data), &info); err != nil {
		t.Fatalf("decoding info: %v", err)
	}
	if info.Provider != "fallback" {
		t.Errorf("info provider = %q, want fallback", info.Provider)
	}

	var text strings.Builder
	for _, ev := range events {
		if ev.name == "update" {
			var upd api.StreamUpdate
			if err := json.Unmarshal([]byte(ev.data), &upd); err != nil {
				t.Fatalf("decoding update: %v", err)
			}
			if text.Len() > 0 {
				text.WriteString(" ")
			}
			text.WriteString(upd.Chunk)
		}
	}
	if text.Len() == 0 {
		t.Error("fallback stream produced no text")
	}
}

// TestStreamingValidationErrorIsJSON verifies a bad request fails before
// any SSE output.
func TestStreamingValidationErrorIsJSON(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/chat/stream", api.ChatRequest{Message: ""})

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	resp.Body.Close()
}
