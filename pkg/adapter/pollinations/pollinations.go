// Package pollinations implements an image adapter for a Pollinations-style
// URL image service. Generation happens lazily on the service side when the
// URL is fetched, so an attempt here only builds the URL; it cannot fail
// except on validation. The seed is derived from the prompt, keeping the
// returned reference deterministic for a given request.
package pollinations

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/url"
	"strings"

	"github.com/booomerangs/relay/pkg/adapter"
	"github.com/booomerangs/relay/pkg/api"
)

// DefaultBaseURL is the public Pollinations image endpoint.
const DefaultBaseURL = "https://image.pollinations.ai"

// Config holds configuration for the Pollinations adapter.
type Config struct {
	// Name is the unique adapter identifier. Defaults to "pollinations".
	Name string

	// BaseURL overrides the image service root (tests, self-hosted mirrors).
	BaseURL string

	// Profile carries the cascade attributes.
	Profile adapter.Profile
}

// Adapter builds Pollinations image URLs from prompts.
type Adapter struct {
	name    string
	baseURL string
	profile adapter.Profile
}

var _ adapter.Adapter = (*Adapter)(nil)

// New creates a Pollinations adapter.
func New(cfg Config) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "pollinations"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Adapter{
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		profile: cfg.Profile,
	}
}

// Name returns the adapter identifier.
func (a *Adapter) Name() string { return a.name }

// Kind returns KindImage.
func (a *Adapter) Kind() adapter.Kind { return adapter.KindImage }

// Profile returns the cascade attributes.
func (a *Adapter) Profile() adapter.Profile { return a.profile }

// Capabilities reports no streaming.
func (a *Adapter) Capabilities() adapter.Capabilities { return adapter.Capabilities{} }

// Complete builds the image URL for the prompt.
func (a *Adapter) Complete(_ context.Context, req *adapter.Request) (*adapter.Result, error) {
	prompt := "high quality " + req.Payload + ", detailed, professional"
	if req.Options.Style != "" {
		prompt = prompt + ", " + req.Options.Style + " style"
	}

	width, height := "1024", "1024"
	if size := req.Options.Size; size != "" {
		if parts := strings.SplitN(size, "x", 2); len(parts) == 2 {
			width, height = parts[0], parts[1]
		}
	}

	imageURL := fmt.Sprintf("%s/prompt/%s?width=%s&height=%s&nologo=true&enhance=true&seed=%d",
		a.baseURL, url.PathEscape(prompt), width, height, seed(req.Payload))

	return &adapter.Result{Content: imageURL, Model: "pollinations"}, nil
}

// Stream is not supported for image generation.
func (a *Adapter) Stream(_ context.Context, _ *adapter.Request) (<-chan adapter.Event, error) {
	return nil, api.NewTransportError("pollinations does not support streaming")
}

// Close is a no-op; the adapter holds no connections.
func (a *Adapter) Close() error { return nil }

// seed hashes the prompt so repeated requests for the same prompt resolve
// to the same image.
func seed(prompt string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(prompt))
	return h.Sum32()
}
