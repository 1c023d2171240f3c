package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/booomerangs/relay/pkg/api"
)

// sseWriter emits server-sent events in the format:
//
//	event: {name}\n
//	data: {json}\n
//	\n
//
// Each event is flushed immediately so chunks reach the client as they
// are produced.
type sseWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	return &sseWriter{w: w, rc: http.NewResponseController(w)}
}

// WriteEvent sends a single named event with a JSON payload.
func (s *sseWriter) WriteEvent(name api.StreamEventName, payload any) error {
	if !s.started {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.started = true
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}

	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("flushing event: %w", err)
	}

	return nil
}

// WriteDone sends the stream-end sentinel.
func (s *sseWriter) WriteDone() error {
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("writing [DONE]: %w", err)
	}
	return s.rc.Flush()
}
