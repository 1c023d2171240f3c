// Command mock-backend runs a configurable OpenAI-compatible chat server
// for exercising the relay cascade locally. It can be told to fail, stall,
// or answer slowly so that retry, timeout, and fallback behavior can be
// observed end to end.
//
// Configuration:
//
//	MOCK_PORT      - Listen port (default: 9090)
//	MOCK_FAIL_N    - Fail the first N requests with HTTP 500 (default: 0)
//	MOCK_DELAY_MS  - Delay before answering, in milliseconds (default: 0)
//	MOCK_MODEL     - Model name reported in responses (default: "mock-model")
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"
)

func main() {
	port := envOrDefault("MOCK_PORT", "9090")
	model := envOrDefault("MOCK_MODEL", "mock-model")

	failN, err := strconv.Atoi(envOrDefault("MOCK_FAIL_N", "0"))
	if err != nil {
		slog.Error("invalid MOCK_FAIL_N", "error", err)
		os.Exit(1)
	}
	delayMS, err := strconv.Atoi(envOrDefault("MOCK_DELAY_MS", "0"))
	if err != nil {
		slog.Error("invalid MOCK_DELAY_MS", "error", err)
		os.Exit(1)
	}

	backend := &mockBackend{
		model:     model,
		failFirst: int64(failN),
		delay:     time.Duration(delayMS) * time.Millisecond,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", backend.handleChatCompletions)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting",
			"port", port, "fail_first", failN, "delay_ms", delayMS)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

type mockBackend struct {
	model     string
	failFirst int64
	delay     time.Duration

	requests atomic.Int64
}

// --- Request/response types ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Index        int     `json:"index"`
	Message      chatMsg `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// --- Handler ---

func (b *mockBackend) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	n := b.requests.Add(1)

	if n <= b.failFirst {
		slog.Info("failing request on purpose", "request", n, "fail_first", b.failFirst)
		http.Error(w, `{"error":{"message":"simulated backend failure","type":"server_error"}}`, http.StatusInternalServerError)
		return
	}

	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-r.Context().Done():
			return
		}
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}

	model := req.Model
	if model == "" {
		model = b.model
	}

	text := b.replyFor(&req)

	if req.Stream {
		b.streamResponse(w, model, text)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResponse{
		ID:     fmt.Sprintf("chatcmpl-mock-%d", n),
		Object: "chat.completion",
		Model:  model,
		Choices: []chatChoice{
			{
				Index:        0,
				Message:      chatMsg{Role: "assistant", Content: text},
				FinishReason: "stop",
			},
		},
	})
}

// replyFor echoes a deterministic answer derived from the last user message.
func (b *mockBackend) replyFor(req *chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return "You said: " + req.Messages[i].Content
		}
	}
	return "Hello from the mock backend."
}

// --- Streaming ---

func (b *mockBackend) streamResponse(w http.ResponseWriter, model, text string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Role chunk first, then content split into small pieces.
	writeChunk(w, model, map[string]any{"role": "assistant"}, nil)
	flusher.Flush()

	const pieceSize = 8
	for i := 0; i < len(text); i += pieceSize {
		end := i + pieceSize
		if end > len(text) {
			end = len(text)
		}
		writeChunk(w, model, map[string]any{"content": text[i:end]}, nil)
		flusher.Flush()
	}

	stop := "stop"
	writeChunk(w, model, map[string]any{}, &stop)
	flusher.Flush()

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeChunk(w http.ResponseWriter, model string, delta map[string]any, finishReason *string) {
	chunk := map[string]any{
		"id":     "chatcmpl-mock-stream",
		"object": "chat.completion.chunk",
		"model":  model,
		"choices": []any{
			map[string]any{
				"index":         0,
				"delta":         delta,
				"finish_reason": finishReason,
			},
		},
	}
	data, _ := json.Marshal(chunk)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
