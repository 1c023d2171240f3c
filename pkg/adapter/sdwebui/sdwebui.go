// Package sdwebui implements an image adapter for a Stable Diffusion WebUI
// backend (the /sdapi/v1 Automatic1111 API). The adapter returns the first
// generated image as a data URI; persistence is the caller's concern.
package sdwebui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/booomerangs/relay/pkg/adapter"
	"github.com/booomerangs/relay/pkg/api"
)

// Config holds configuration for the Stable Diffusion WebUI adapter.
type Config struct {
	// Name is the unique adapter identifier. Defaults to "sdwebui".
	Name string

	// BaseURL is the WebUI root (e.g. "http://localhost:7860").
	BaseURL string

	// Profile carries the cascade attributes.
	Profile adapter.Profile

	// Steps is the sampling step count. Defaults to 20.
	Steps int

	// CFGScale is the classifier-free guidance scale. Defaults to 7.
	CFGScale float64
}

// Adapter generates images through a Stable Diffusion WebUI instance.
type Adapter struct {
	name     string
	baseURL  string
	profile  adapter.Profile
	steps    int
	cfgScale float64

	httpClient *http.Client
}

var _ adapter.Adapter = (*Adapter)(nil)

// New creates a Stable Diffusion WebUI adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("sdwebui: base URL is required")
	}
	if cfg.Name == "" {
		cfg.Name = "sdwebui"
	}
	if cfg.Profile.Timeout == 0 {
		cfg.Profile.Timeout = 60 * time.Second
	}
	if cfg.Steps == 0 {
		cfg.Steps = 20
	}
	if cfg.CFGScale == 0 {
		cfg.CFGScale = 7
	}

	return &Adapter{
		name:       cfg.Name,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		profile:    cfg.Profile,
		steps:      cfg.Steps,
		cfgScale:   cfg.CFGScale,
		httpClient: &http.Client{},
	}, nil
}

// Name returns the adapter identifier.
func (a *Adapter) Name() string { return a.name }

// Kind returns KindImage.
func (a *Adapter) Kind() adapter.Kind { return adapter.KindImage }

// Profile returns the cascade attributes.
func (a *Adapter) Profile() adapter.Profile { return a.profile }

// Capabilities reports no streaming; images are delivered whole.
func (a *Adapter) Capabilities() adapter.Capabilities { return adapter.Capabilities{} }

// txt2imgRequest is the WebUI generation request body.
type txt2imgRequest struct {
	Prompt   string  `json:"prompt"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Steps    int     `json:"steps"`
	CFGScale float64 `json:"cfg_scale"`
}

// txt2imgResponse is the WebUI generation response body.
type txt2imgResponse struct {
	Images []string `json:"images"`
}

// Complete performs one txt2img generation attempt.
func (a *Adapter) Complete(ctx context.Context, req *adapter.Request) (*adapter.Result, error) {
	width, height := parseSize(req.Options.Size)

	prompt := req.Payload
	if req.Options.Style != "" {
		prompt = prompt + ", " + req.Options.Style + " style"
	}

	body, err := json.Marshal(txt2imgRequest{
		Prompt:   prompt,
		Width:    width,
		Height:   height,
		Steps:    a.steps,
		CFGScale: a.cfgScale,
	})
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal txt2img request: %s", err.Error()))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/sdapi/v1/txt2img", bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, api.NewTimeoutError("txt2img attempt exceeded adapter timeout")
		}
		return nil, api.NewTransportError(fmt.Sprintf("WebUI connection error: %s", err.Error()))
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, api.NewTransportError(fmt.Sprintf("WebUI returned HTTP %d", httpResp.StatusCode))
	}

	var result txt2imgResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&result); err != nil {
		return nil, api.NewMalformedResponseError("failed to parse txt2img response: " + err.Error())
	}
	if len(result.Images) == 0 || result.Images[0] == "" {
		return nil, api.NewMalformedResponseError("txt2img response contains no images")
	}

	return &adapter.Result{
		Content: "data:image/png;base64," + result.Images[0],
		Model:   "stable-diffusion-webui",
	}, nil
}

// Stream is not supported for image generation.
func (a *Adapter) Stream(_ context.Context, _ *adapter.Request) (<-chan adapter.Event, error) {
	return nil, api.NewTransportError("sdwebui does not support streaming")
}

// Close releases the HTTP client's idle connections.
func (a *Adapter) Close() error {
	a.httpClient.CloseIdleConnections()
	return nil
}

// parseSize splits a "WxH" size hint, defaulting to 512x512.
func parseSize(size string) (int, int) {
	parts := strings.SplitN(size, "x", 2)
	if len(parts) != 2 {
		return 512, 512
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 512, 512
	}
	return w, h
}
