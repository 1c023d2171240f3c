package transport

import (
	"context"

	"github.com/booomerangs/relay/pkg/api"
)

// HistoryStore persists chat sessions and their messages. Implementations
// live in pkg/storage/memory and pkg/storage/postgres.
type HistoryStore interface {
	// CreateSession creates a new session with a generated ID.
	CreateSession(ctx context.Context, title string) (*api.Session, error)

	// GetSession returns a session by ID, or storage.ErrNotFound.
	GetSession(ctx context.Context, id string) (*api.Session, error)

	// AppendMessage appends a message to its session's history. The
	// message ID is generated when empty. Returns storage.ErrNotFound when
	// the session does not exist.
	AppendMessage(ctx context.Context, msg *api.Message) error

	// ListMessages returns a session's messages in insertion order, or
	// storage.ErrNotFound when the session does not exist.
	ListMessages(ctx context.Context, sessionID string) ([]*api.Message, error)

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases store resources.
	Close() error
}
