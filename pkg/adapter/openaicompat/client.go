package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/booomerangs/relay/pkg/adapter"
	"github.com/booomerangs/relay/pkg/api"
)

// Config holds configuration for one OpenAI-compatible text adapter.
type Config struct {
	// Name is the unique adapter identifier (e.g. "qwen").
	Name string

	// BaseURL is the backend root (e.g. "https://chat.example.com").
	BaseURL string

	// Path is the completion endpoint path. Defaults to
	// "/v1/chat/completions".
	Path string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Model is the default model identifier sent to the backend.
	Model string

	// Profile carries the cascade attributes (priority, timeout, retries).
	Profile adapter.Profile

	// Streaming enables the native SSE streaming path.
	Streaming bool

	// RejectMarkup treats HTML/XML response bodies as malformed. Some flaky
	// backends answer with an error page and HTTP 200; enable this per
	// adapter when that is known to happen.
	RejectMarkup bool
}

// Adapter is a text adapter for an OpenAI-compatible chat backend.
//
// Attempt timeouts are driven by the caller's context (the dispatcher wraps
// every attempt in the profile timeout), so the underlying HTTP client
// carries no fixed timeout of its own.
type Adapter struct {
	name         string
	model        string
	profile      adapter.Profile
	streaming    bool
	rejectMarkup bool

	httpClient *http.Client
	url        string
	apiKey     string
}

var _ adapter.Adapter = (*Adapter)(nil)

// New creates an adapter for an OpenAI-compatible backend.
func New(cfg Config) (*Adapter, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("openaicompat: adapter name is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("openaicompat: base URL is required for adapter %q", cfg.Name)
	}

	path := cfg.Path
	if path == "" {
		path = "/v1/chat/completions"
	}
	if cfg.Profile.Timeout == 0 {
		cfg.Profile.Timeout = 15 * time.Second
	}

	return &Adapter{
		name:         cfg.Name,
		model:        cfg.Model,
		profile:      cfg.Profile,
		streaming:    cfg.Streaming,
		rejectMarkup: cfg.RejectMarkup,
		httpClient:   &http.Client{},
		url:          strings.TrimRight(cfg.BaseURL, "/") + path,
		apiKey:       cfg.APIKey,
	}, nil
}

// Name returns the adapter identifier.
func (a *Adapter) Name() string { return a.name }

// Kind returns KindText.
func (a *Adapter) Kind() adapter.Kind { return adapter.KindText }

// Profile returns the cascade attributes.
func (a *Adapter) Profile() adapter.Profile { return a.profile }

// Capabilities reports native streaming support.
func (a *Adapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{Streaming: a.streaming}
}

// Complete performs one non-streaming attempt against the backend.
func (a *Adapter) Complete(ctx context.Context, req *adapter.Request) (*adapter.Result, error) {
	httpResp, err := a.send(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, mapNetworkError(ctx, err)
	}

	content, model, err := ExtractContent(body, a.rejectMarkup)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = a.model
	}

	return &adapter.Result{Content: content, Model: model}, nil
}

// Stream performs one native streaming attempt. Events are delivered on the
// returned channel, which is closed when the stream ends, errors, or the
// context is cancelled.
func (a *Adapter) Stream(ctx context.Context, req *adapter.Request) (<-chan adapter.Event, error) {
	if !a.streaming {
		return nil, api.NewTransportError(fmt.Sprintf("adapter %q does not support streaming", a.name))
	}

	httpResp, err := a.send(ctx, req, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan adapter.Event, 16)
	go func() {
		defer close(ch)
		defer httpResp.Body.Close()
		parseSSEStream(ctx, httpResp.Body, a.model, ch)
	}()

	return ch, nil
}

// Close releases the HTTP client's idle connections.
func (a *Adapter) Close() error {
	a.httpClient.CloseIdleConnections()
	return nil
}

// send marshals and posts the chat request, returning the raw HTTP response
// after status checking. The caller owns the body.
func (a *Adapter) send(ctx context.Context, req *adapter.Request, stream bool) (*http.Response, error) {
	model := req.Options.Model
	if model == "" {
		model = a.model
	}

	chatReq := chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: req.Payload}},
		Temperature: req.Options.Temperature,
		MaxTokens:   req.Options.MaxTokens,
		Stream:      stream,
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(ctx, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		return nil, mapHTTPError(httpResp)
	}

	return httpResp, nil
}
