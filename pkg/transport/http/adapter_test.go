package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/booomerangs/relay/pkg/adapter"
	"github.com/booomerangs/relay/pkg/api"
	"github.com/booomerangs/relay/pkg/dispatch"
	"github.com/booomerangs/relay/pkg/storage/memory"
	"github.com/booomerangs/relay/pkg/transport"
)

// fakeDispatcher scripts the responses the handlers see.
type fakeDispatcher struct {
	result *dispatch.Result
	err    error
	chunks []dispatch.StreamChunk

	lastReq *dispatch.Request
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeDispatcher) DispatchStream(ctx context.Context, req *dispatch.Request) (<-chan dispatch.StreamChunk, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan dispatch.StreamChunk)
	go func() {
		defer close(out)
		for _, c := range f.chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// listAdapter is a registry entry that is never dispatched; only its
// metadata matters for GET /providers.
type listAdapter struct {
	name     string
	kind     adapter.Kind
	priority int
	stream   bool
}

func (l *listAdapter) Name() string         { return l.name }
func (l *listAdapter) Kind() adapter.Kind   { return l.kind }
func (l *listAdapter) Profile() adapter.Profile {
	return adapter.Profile{Priority: l.priority}
}
func (l *listAdapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{Streaming: l.stream}
}
func (l *listAdapter) Complete(ctx context.Context, req *adapter.Request) (*adapter.Result, error) {
	return nil, errors.New("not dispatchable")
}
func (l *listAdapter) Stream(ctx context.Context, req *adapter.Request) (<-chan adapter.Event, error) {
	return nil, errors.New("not dispatchable")
}
func (l *listAdapter) Close() error { return nil }

func testRegistry(t *testing.T) *adapter.Registry {
	t.Helper()
	reg, err := adapter.NewRegistry([]adapter.Entry{
		{Adapter: &listAdapter{name: "qwen", kind: adapter.KindText, priority: 1, stream: true}, Available: true},
		{Adapter: &listAdapter{name: "gigachat", kind: adapter.KindText, priority: 2}, Available: false},
		{Adapter: &listAdapter{name: "pollinations", kind: adapter.KindImage, priority: 1}, Available: true},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func newTestAdapter(t *testing.T, d Dispatcher, store transport.HistoryStore) *Adapter {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAdapter(d, store, testRegistry(t), Config{}, logger)
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatSuccess(t *testing.T) {
	fd := &fakeDispatcher{result: &dispatch.Result{
		Success: true, Content: "hi there", AdapterName: "qwen", ModelName: "qwen-plus",
	}}
	a := newTestAdapter(t, fd, nil)

	rec := postJSON(t, a.Handler(), "/chat", `{"message":"hello","provider":"qwen"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}
	var resp api.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Success || resp.Response != "hi there" || resp.Provider != "qwen" || resp.Model != "qwen-plus" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if fd.lastReq.Payload != "hello" || fd.lastReq.PinnedAdapter != "qwen" || fd.lastReq.Kind != adapter.KindText {
		t.Errorf("unexpected dispatch request: %+v", fd.lastReq)
	}
}

func TestChatValidationError(t *testing.T) {
	fd := &fakeDispatcher{err: api.NewValidationError("message", "message must not be empty")}
	a := newTestAdapter(t, fd, nil)

	rec := postJSON(t, a.Handler(), "/chat", `{"message":""}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp api.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	if resp.Error == nil || resp.Error.Param != "message" {
		t.Errorf("unexpected error payload: %+v", resp.Error)
	}
}

func TestChatRejectsWrongContentType(t *testing.T) {
	a := newTestAdapter(t, &fakeDispatcher{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("message=hello"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", rec.Code)
	}
}

func TestChatRejectsInvalidJSON(t *testing.T) {
	a := newTestAdapter(t, &fakeDispatcher{}, nil)

	rec := postJSON(t, a.Handler(), "/chat", `{"message":`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatRejectsOversizedBody(t *testing.T) {
	fd := &fakeDispatcher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := NewAdapter(fd, nil, testRegistry(t), Config{MaxBodySize: 64}, logger)

	body := `{"message":"` + strings.Repeat("x", 200) + `"}`
	rec := postJSON(t, a.Handler(), "/chat", body)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestChatUnknownSession(t *testing.T) {
	store := memory.New(4)
	fd := &fakeDispatcher{result: &dispatch.Result{Success: true, Content: "x", AdapterName: "qwen"}}
	a := newTestAdapter(t, fd, store)

	rec := postJSON(t, a.Handler(), "/chat", `{"message":"hello","sessionId":"nope"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body %s", rec.Code, rec.Body)
	}
	var resp api.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	if resp.Error == nil || resp.Error.Param != "sessionId" {
		t.Errorf("unexpected error payload: %+v", resp.Error)
	}
}

func TestChatPersistsHistory(t *testing.T) {
	store := memory.New(4)
	session, err := store.CreateSession(context.Background(), "test")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	fd := &fakeDispatcher{result: &dispatch.Result{
		Success: true, Content: "the answer", AdapterName: "qwen",
	}}
	a := newTestAdapter(t, fd, store)

	rec := postJSON(t, a.Handler(), "/chat",
		`{"message":"the question","sessionId":"`+session.ID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}

	msgs, err := store.ListMessages(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[0].Role != api.RoleUser || msgs[0].Content != "the question" {
		t.Errorf("unexpected user message: %+v", msgs[0])
	}
	if msgs[1].Role != api.RoleAssistant || msgs[1].Content != "the answer" || msgs[1].Provider != "qwen" {
		t.Errorf("unexpected assistant message: %+v", msgs[1])
	}
}

// sseEvent is one parsed server-sent event.
type sseEvent struct {
	name string
	data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			}
		}
		events = append(events, ev)
	}
	return events
}

func TestChatStreamEvents(t *testing.T) {
	fd := &fakeDispatcher{chunks: []dispatch.StreamChunk{
		{Info: true, Provider: "qwen", Model: "qwen-plus"},
		{Text: "Hello ", Provider: "qwen", Model: "qwen-plus"},
		{Text: "world", Provider: "qwen", Model: "qwen-plus"},
		{Done: true, Provider: "qwen", Model: "qwen-plus"},
	}}
	a := newTestAdapter(t, fd, nil)

	rec := postJSON(t, a.Handler(), "/chat/stream", `{"message":"hello"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	events := parseSSE(t, rec.Body.String())
	if len(events) != 5 {
		t.Fatalf("got %d events, want 5: %+v", len(events), events)
	}

	if events[0].name != "info" {
		t.Errorf("first event = %q, want info", events[0].name)
	}
	var info api.StreamInfo
	if err := json.Unmarshal([]byte(events[0].data), &info); err != nil {
		t.Fatalf("decoding info: %v", err)
	}
	if info.Provider != "qwen" || info.Model != "qwen-plus" {
		t.Errorf("unexpected info: %+v", info)
	}

	var text strings.Builder
	for _, ev := range events[1:3] {
		if ev.name != "update" {
			t.Fatalf("event = %q, want update", ev.name)
		}
		var upd api.StreamUpdate
		if err := json.Unmarshal([]byte(ev.data), &upd); err != nil {
			t.Fatalf("decoding update: %v", err)
		}
		text.WriteString(upd.Chunk)
	}
	if text.String() != "Hello world" {
		t.Errorf("concatenated text = %q, want %q", text.String(), "Hello world")
	}

	if events[3].name != "complete" {
		t.Errorf("event = %q, want complete", events[3].name)
	}
	if events[4].data != "[DONE]" {
		t.Errorf("final data = %q, want [DONE]", events[4].data)
	}
}

func TestChatStreamValidationErrorIsJSON(t *testing.T) {
	fd := &fakeDispatcher{err: api.NewValidationError("message", "message must not be empty")}
	a := newTestAdapter(t, fd, nil)

	rec := postJSON(t, a.Handler(), "/chat/stream", `{"message":""}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestChatStreamPersistsHistory(t *testing.T) {
	store := memory.New(4)
	session, err := store.CreateSession(context.Background(), "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	fd := &fakeDispatcher{chunks: []dispatch.StreamChunk{
		{Info: true, Provider: "qwen"},
		{Text: "partial ", Provider: "qwen"},
		{Text: "answer", Provider: "qwen"},
		{Done: true, Provider: "qwen"},
	}}
	a := newTestAdapter(t, fd, store)

	rec := postJSON(t, a.Handler(), "/chat/stream",
		`{"message":"q","sessionId":"`+session.ID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	msgs, err := store.ListMessages(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[1].Content != "partial answer" {
		t.Errorf("assistant content = %q, want %q", msgs[1].Content, "partial answer")
	}
}

func TestImageSuccess(t *testing.T) {
	fd := &fakeDispatcher{result: &dispatch.Result{
		Success: true, Content: "https://img.example/a.png", AdapterName: "pollinations",
	}}
	a := newTestAdapter(t, fd, nil)

	rec := postJSON(t, a.Handler(), "/image", `{"prompt":"a cat","style":"realistic"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}
	var resp api.ImageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.ImageURL != "https://img.example/a.png" || resp.Provider != "pollinations" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if fd.lastReq.Kind != adapter.KindImage || fd.lastReq.Options.Style != "realistic" {
		t.Errorf("unexpected dispatch request: %+v", fd.lastReq)
	}
}

func TestProvidersLists(t *testing.T) {
	a := newTestAdapter(t, &fakeDispatcher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/providers", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Providers []api.ProviderInfo `json:"providers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Providers) != 3 {
		t.Fatalf("len(providers) = %d, want 3", len(resp.Providers))
	}
	if resp.Providers[0].Name != "qwen" || !resp.Providers[0].Streaming {
		t.Errorf("unexpected first provider: %+v", resp.Providers[0])
	}
	if resp.Providers[1].Name != "gigachat" || resp.Providers[1].Available {
		t.Errorf("unexpected second provider: %+v", resp.Providers[1])
	}
}

func TestSessionLifecycle(t *testing.T) {
	store := memory.New(4)
	a := newTestAdapter(t, &fakeDispatcher{}, store)

	rec := postJSON(t, a.Handler(), "/sessions", `{"title":"morning chat"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body)
	}
	var session api.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decoding session: %v", err)
	}
	if session.ID == "" || session.Title != "morning chat" {
		t.Errorf("unexpected session: %+v", session)
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+session.ID+"/messages", nil)
	listRec := httptest.NewRecorder()
	a.Handler().ServeHTTP(listRec, req)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", listRec.Code)
	}
	var listResp struct {
		SessionID string         `json:"sessionId"`
		Messages  []*api.Message `json:"messages"`
	}
	if err := json.Unmarshal(listRec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if listResp.SessionID != session.ID || len(listResp.Messages) != 0 {
		t.Errorf("unexpected list: %+v", listResp)
	}
}

func TestListMessagesUnknownSession(t *testing.T) {
	store := memory.New(4)
	a := newTestAdapter(t, &fakeDispatcher{}, store)

	req := httptest.NewRequest(http.MethodGet, "/sessions/nope/messages", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404; body %s", rec.Code, rec.Body)
	}
}

func TestSessionsDisabledWithoutStore(t *testing.T) {
	a := newTestAdapter(t, &fakeDispatcher{}, nil)

	rec := postJSON(t, a.Handler(), "/sessions", `{"title":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// brokenStore fails every operation; used to verify degraded health.
type brokenStore struct{}

var errStoreDown = errors.New("store down")

func (brokenStore) CreateSession(context.Context, string) (*api.Session, error) {
	return nil, errStoreDown
}
func (brokenStore) GetSession(context.Context, string) (*api.Session, error) {
	return nil, errStoreDown
}
func (brokenStore) AppendMessage(context.Context, *api.Message) error { return errStoreDown }
func (brokenStore) ListMessages(context.Context, string) ([]*api.Message, error) {
	return nil, errStoreDown
}
func (brokenStore) HealthCheck(context.Context) error { return errStoreDown }
func (brokenStore) Close() error                      { return nil }

func TestHealthz(t *testing.T) {
	a := newTestAdapter(t, &fakeDispatcher{}, memory.New(4))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHealthzDegraded(t *testing.T) {
	a := newTestAdapter(t, &fakeDispatcher{}, brokenStore{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
