package api

// Options carries model hints that are passed through to the adapter
// unchanged. The dispatcher never interprets them.
type Options struct {
	// Model overrides the adapter's default model identifier.
	Model string `json:"model,omitempty"`

	// Temperature is the sampling temperature (nil = adapter default).
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens caps the completion length (nil = adapter default).
	MaxTokens *int `json:"max_tokens,omitempty"`

	// Size is the requested image dimensions, e.g. "1024x1024".
	Size string `json:"size,omitempty"`

	// Style is a free-form image style hint, e.g. "realistic".
	Style string `json:"style,omitempty"`

	// Extra holds adapter-specific parameters that don't map to the
	// standard fields above.
	Extra map[string]any `json:"-"`
}

// ChatRequest is the body of POST /chat and POST /chat/stream.
type ChatRequest struct {
	Message   string   `json:"message"`
	Provider  string   `json:"provider,omitempty"`
	SessionID string   `json:"sessionId,omitempty"`
	Options   *Options `json:"options,omitempty"`
}

// ChatResponse is the body of a successful POST /chat.
type ChatResponse struct {
	Success   bool   `json:"success"`
	Response  string `json:"response"`
	Provider  string `json:"provider"`
	Model     string `json:"model,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// ImageRequest is the body of POST /image.
type ImageRequest struct {
	Prompt   string `json:"prompt"`
	Style    string `json:"style,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// ImageResponse is the body of a successful POST /image.
type ImageResponse struct {
	Success  bool   `json:"success"`
	ImageURL string `json:"imageUrl"`
	Provider string `json:"provider"`
}

// StreamEventName identifies an SSE event emitted by /chat/stream.
type StreamEventName string

const (
	// StreamEventInfo announces which adapter is live for this stream.
	StreamEventInfo StreamEventName = "info"

	// StreamEventUpdate carries one incremental text chunk.
	StreamEventUpdate StreamEventName = "update"

	// StreamEventComplete terminates a successful stream.
	StreamEventComplete StreamEventName = "complete"

	// StreamEventError terminates a failed stream.
	StreamEventError StreamEventName = "error"
)

// StreamInfo is the payload of the initial "info" event.
type StreamInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	Message  string `json:"message,omitempty"`
}

// StreamUpdate is the payload of each "update" event.
type StreamUpdate struct {
	Chunk    string `json:"chunk"`
	Done     bool   `json:"done"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// StreamComplete is the payload of the terminal "complete" event.
type StreamComplete struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

// Session is a stored conversation.
type Session struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// MessageRole identifies who produced a history message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one entry in a session's conversation history.
type Message struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionId"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`

	// Provider records which adapter produced an assistant message.
	Provider string `json:"provider,omitempty"`

	CreatedAt int64 `json:"createdAt"`
}

// ProviderInfo describes one registered adapter for GET /providers.
type ProviderInfo struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Priority  int    `json:"priority"`
	Available bool   `json:"available"`
	Streaming bool   `json:"streaming"`
}
