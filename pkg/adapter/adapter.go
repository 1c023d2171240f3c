package adapter

import (
	"context"
	"time"

	"github.com/booomerangs/relay/pkg/api"
)

// Kind classifies what a given adapter can produce.
type Kind string

const (
	// KindText marks adapters that answer chat messages with text.
	KindText Kind = "text"

	// KindImage marks adapters that turn prompts into image references.
	KindImage Kind = "image"
)

// Profile holds the cascade-relevant attributes of an adapter. The
// dispatcher reads these to order candidates and bound each attempt;
// they are fixed at registration time.
type Profile struct {
	// Priority orders adapters within a kind; lower is tried first.
	Priority int

	// Timeout bounds a single attempt against this adapter.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int

	// RequiresCredential marks adapters that cannot be attempted without
	// a configured API key. Missing credential means the adapter is
	// skipped, not attempted.
	RequiresCredential bool
}

// Capabilities declares optional adapter features.
type Capabilities struct {
	// Streaming indicates the backend can deliver incremental chunks
	// natively. Adapters without it are re-chunked by the dispatcher.
	Streaming bool
}

// Request is the adapter-facing input: the user payload plus opaque
// pass-through options.
type Request struct {
	Payload string
	Options api.Options
}

// Result is the normalized output of a successful attempt. Content is
// never empty: adapters must return an error instead of an empty result.
type Result struct {
	// Content is the response text or image reference.
	Content string

	// Model is the adapter-reported model identifier (optional).
	Model string
}

// Event is a single chunk of a native streaming attempt. The adapter
// closes the channel after sending Done or Err.
type Event struct {
	// Delta is an incremental piece of text.
	Delta string

	// Model is the adapter-reported model, populated on the first event.
	Model string

	// Done marks the end of the stream.
	Done bool

	// Err is populated if the stream failed mid-flight.
	Err error
}

// Adapter is a named capability that can attempt to satisfy a request.
//
// Implementations must be safe for concurrent use by multiple goroutines,
// and are treated as stateless by the dispatcher: idempotence of retries
// is the adapter's responsibility.
type Adapter interface {
	// Name returns the unique adapter identifier (e.g. "qwen").
	Name() string

	// Kind returns what this adapter produces.
	Kind() Kind

	// Profile returns the cascade attributes for this adapter.
	Profile() Profile

	// Capabilities returns optional feature flags.
	Capabilities() Capabilities

	// Complete performs one non-streaming attempt. A nil error implies a
	// result with non-empty Content.
	Complete(ctx context.Context, req *Request) (*Result, error)

	// Stream performs one native streaming attempt. The returned channel
	// is closed by the adapter when the stream completes or errors.
	// Adapters without streaming capability return an error.
	Stream(ctx context.Context, req *Request) (<-chan Event, error)

	// Close releases adapter resources (HTTP clients, connections).
	Close() error
}
