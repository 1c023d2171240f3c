package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/booomerangs/relay/pkg/adapter"
	"github.com/booomerangs/relay/pkg/api"
	"github.com/booomerangs/relay/pkg/dispatch"
	"github.com/booomerangs/relay/pkg/storage"
	"github.com/booomerangs/relay/pkg/transport"
)

// Dispatcher is the cascade entry point the adapter hands requests to.
// Implemented by dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error)
	DispatchStream(ctx context.Context, req *dispatch.Request) (<-chan dispatch.StreamChunk, error)
}

// Adapter serves the relay API over HTTP. It routes requests to the
// dispatcher and serializes results.
type Adapter struct {
	dispatcher Dispatcher
	store      transport.HistoryStore // nil when history is disabled
	registry   *adapter.Registry
	mux        *http.ServeMux
	config     Config
	logger     *slog.Logger
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 1 << 20, // 1 MB
	}
}

// NewAdapter creates an HTTP adapter. The HistoryStore is optional; when
// nil, session handling is disabled and sessionId fields are ignored.
func NewAdapter(d Dispatcher, store transport.HistoryStore, registry *adapter.Registry, cfg Config, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}

	a := &Adapter{
		dispatcher: d,
		store:      store,
		registry:   registry,
		mux:        http.NewServeMux(),
		config:     cfg,
		logger:     logger,
	}

	a.mux.HandleFunc("POST /chat", a.handleChat)
	a.mux.HandleFunc("POST /chat/stream", a.handleChatStream)
	a.mux.HandleFunc("POST /image", a.handleImage)
	a.mux.HandleFunc("GET /providers", a.handleProviders)
	a.mux.HandleFunc("POST /sessions", a.handleCreateSession)
	a.mux.HandleFunc("GET /sessions/{id}/messages", a.handleListMessages)
	a.mux.HandleFunc("GET /healthz", a.handleHealthz)

	return a
}

// Handler returns the http.Handler for this adapter. Use this to
// integrate with an http.Server or test with httptest.
func (a *Adapter) Handler() http.Handler {
	return a.mux
}

// decodeJSON reads a size-limited JSON body into v.
func (a *Adapter) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/json") {
		transport.WriteErrorResponse(w,
			api.NewValidationError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewValidationError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return false
		}
		transport.WriteErrorResponse(w,
			api.NewValidationError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return false
	}

	return true
}

// resolveSession validates the optional sessionId and returns it, or ""
// when history is disabled or no session was requested. A sessionId
// pointing at an unknown session is a validation error.
func (a *Adapter) resolveSession(ctx context.Context, w http.ResponseWriter, sessionID string) (string, bool) {
	if sessionID == "" || a.store == nil {
		return "", true
	}

	if _, err := a.store.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteAPIError(w, api.NewValidationError("sessionId", "unknown session"))
			return "", false
		}
		a.logger.Error("session lookup failed", "error", err, "session_id", sessionID)
		transport.WriteAPIError(w, api.NewServerError("history unavailable"))
		return "", false
	}

	return sessionID, true
}

// recordExchange persists the user message and the assistant reply.
// History failures are logged, never surfaced: the answer was already
// produced.
func (a *Adapter) recordExchange(ctx context.Context, sessionID, userText string, res *dispatch.Result) {
	if sessionID == "" || a.store == nil {
		return
	}

	msgs := []*api.Message{
		{SessionID: sessionID, Role: api.RoleUser, Content: userText},
		{SessionID: sessionID, Role: api.RoleAssistant, Content: res.Content, Provider: res.AdapterName},
	}
	for _, m := range msgs {
		if err := a.store.AppendMessage(ctx, m); err != nil {
			a.logger.Error("appending history message failed",
				"error", err, "session_id", sessionID, "role", m.Role)
			return
		}
	}
}

// handleChat handles POST /chat.
func (a *Adapter) handleChat(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}

	sessionID, ok := a.resolveSession(r.Context(), w, req.SessionID)
	if !ok {
		return
	}

	dreq := &dispatch.Request{
		Payload:       req.Message,
		Kind:          adapter.KindText,
		PinnedAdapter: req.Provider,
	}
	if req.Options != nil {
		dreq.Options = *req.Options
	}

	res, err := a.dispatcher.Dispatch(r.Context(), dreq)
	if err != nil {
		if r.Context().Err() != nil {
			// Client went away; nothing to write.
			return
		}
		transport.WriteAPIError(w, err)
		return
	}

	a.recordExchange(r.Context(), sessionID, req.Message, res)

	transport.WriteJSON(w, http.StatusOK, api.ChatResponse{
		Success:   res.Success,
		Response:  res.Content,
		Provider:  res.AdapterName,
		Model:     res.ModelName,
		SessionID: sessionID,
	})
}

// handleChatStream handles POST /chat/stream as a server-sent event
// stream: one "info" event announcing the live provider, "update" events
// carrying chunks, and a terminal "complete" event.
func (a *Adapter) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}

	sessionID, ok := a.resolveSession(r.Context(), w, req.SessionID)
	if !ok {
		return
	}

	dreq := &dispatch.Request{
		Payload:       req.Message,
		Kind:          adapter.KindText,
		PinnedAdapter: req.Provider,
	}
	if req.Options != nil {
		dreq.Options = *req.Options
	}

	ch, err := a.dispatcher.DispatchStream(r.Context(), dreq)
	if err != nil {
		transport.WriteAPIError(w, err)
		return
	}

	sse := newSSEWriter(w)
	var full strings.Builder
	var provider string
	var writeFailed, completed bool

	for chunk := range ch {
		if writeFailed {
			// Keep draining so the dispatcher can finish; the client is gone.
			continue
		}

		switch {
		case chunk.Info:
			provider = chunk.Provider
			err = sse.WriteEvent(api.StreamEventInfo, api.StreamInfo{
				Provider: chunk.Provider,
				Model:    chunk.Model,
			})
		case chunk.Done:
			completed = true
			err = sse.WriteEvent(api.StreamEventComplete, api.StreamComplete{
				Provider: chunk.Provider,
				Model:    chunk.Model,
			})
			if err == nil {
				err = sse.WriteDone()
			}
		default:
			full.WriteString(chunk.Text)
			err = sse.WriteEvent(api.StreamEventUpdate, api.StreamUpdate{
				Chunk:    chunk.Text,
				Provider: chunk.Provider,
				Model:    chunk.Model,
			})
		}

		if err != nil {
			writeFailed = true
			a.logger.Debug("stream write failed, client disconnected",
				"error", err, "provider", provider)
		}
	}

	if completed && !writeFailed {
		a.recordExchange(r.Context(), sessionID, req.Message, &dispatch.Result{
			Content:     full.String(),
			AdapterName: provider,
		})
	}
}

// handleImage handles POST /image.
func (a *Adapter) handleImage(w http.ResponseWriter, r *http.Request) {
	var req api.ImageRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}

	res, err := a.dispatcher.Dispatch(r.Context(), &dispatch.Request{
		Payload:       req.Prompt,
		Kind:          adapter.KindImage,
		PinnedAdapter: req.Provider,
		Options:       api.Options{Style: req.Style},
	})
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		transport.WriteAPIError(w, err)
		return
	}

	transport.WriteJSON(w, http.StatusOK, api.ImageResponse{
		Success:  res.Success,
		ImageURL: res.Content,
		Provider: res.AdapterName,
	})
}

// handleProviders handles GET /providers.
func (a *Adapter) handleProviders(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]any{
		"providers": a.registry.List(),
	})
}

// handleCreateSession handles POST /sessions.
func (a *Adapter) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		transport.WriteAPIError(w, api.NewValidationError("", "history is disabled"))
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if !a.decodeJSON(w, r, &req) {
		return
	}

	session, err := a.store.CreateSession(r.Context(), req.Title)
	if err != nil {
		a.logger.Error("creating session failed", "error", err)
		transport.WriteAPIError(w, api.NewServerError("could not create session"))
		return
	}

	transport.WriteJSON(w, http.StatusCreated, session)
}

// handleListMessages handles GET /sessions/{id}/messages.
func (a *Adapter) handleListMessages(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		transport.WriteAPIError(w, api.NewValidationError("", "history is disabled"))
		return
	}

	id := r.PathValue("id")
	msgs, err := a.store.ListMessages(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteErrorResponse(w,
				api.NewValidationError("id", "unknown session"),
				http.StatusNotFound,
			)
			return
		}
		a.logger.Error("listing messages failed", "error", err, "session_id", id)
		transport.WriteAPIError(w, api.NewServerError("history unavailable"))
		return
	}

	if msgs == nil {
		msgs = []*api.Message{}
	}
	transport.WriteJSON(w, http.StatusOK, map[string]any{
		"sessionId": id,
		"messages":  msgs,
	})
}

// handleHealthz handles GET /healthz.
func (a *Adapter) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if a.store != nil {
		if err := a.store.HealthCheck(r.Context()); err != nil {
			transport.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"reason": "history store unreachable",
			})
			return
		}
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
