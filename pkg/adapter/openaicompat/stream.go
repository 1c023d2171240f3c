package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/booomerangs/relay/pkg/adapter"
	"github.com/booomerangs/relay/pkg/api"
)

// parseSSEStream reads Chat Completions SSE chunks from body, translates
// each to an adapter.Event, and sends them on ch. The channel is NOT closed
// by this function; the caller is responsible for closing it.
//
// Expected format:
//
//	data: {"choices":[{"delta":{"content":"..."}}]}\n
//	\n
//	data: [DONE]\n
//	\n
//
// Malformed chunks are logged and skipped. Context cancellation stops
// reading immediately.
func parseSSEStream(ctx context.Context, body io.Reader, defaultModel string, ch chan<- adapter.Event) {
	scanner := bufio.NewScanner(body)
	first := true

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")

		if payload == "[DONE]" {
			ch <- adapter.Event{Done: true}
			return
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Warn("skipping malformed SSE chunk",
				"error", err.Error(),
				"data", truncate(payload, 200),
			)
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			ch <- adapter.Event{Done: true}
			return
		}

		if choice.Delta.Content == nil || *choice.Delta.Content == "" {
			continue
		}

		ev := adapter.Event{Delta: *choice.Delta.Content}
		if first {
			ev.Model = chunk.Model
			if ev.Model == "" {
				ev.Model = defaultModel
			}
			first = false
		}
		ch <- ev
	}

	if err := scanner.Err(); err != nil {
		// Cancellation is not an error from our perspective.
		if ctx.Err() != nil {
			return
		}
		ch <- adapter.Event{Err: api.NewTransportError("SSE stream read error: " + err.Error())}
		return
	}

	// Stream ended without [DONE] or finish_reason. Treat as done: some
	// backends simply close the connection.
	ch <- adapter.Event{Done: true}
}

// truncate limits a string to maxLen characters for log output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
