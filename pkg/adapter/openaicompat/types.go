package openaicompat

// chatRequest is the Chat Completions request body sent to the backend.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// chatMessage is a single role/content pair.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the canonical Chat Completions response envelope.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
}

// altResponse covers the ad hoc envelopes used by non-conforming backends.
type altResponse struct {
	Response string `json:"response"`
	Output   string `json:"output"`
	Text     string `json:"text"`
	Reply    string `json:"reply"`
	Model    string `json:"model"`
}

// chatChunk is one SSE delta chunk of a streaming response.
type chatChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// chatErrorResponse is the error envelope returned by most backends.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
