// Package memory provides an in-memory implementation of
// transport.HistoryStore for testing and lightweight deployments. Sessions
// are stored in memory and lost when the process restarts. Optional LRU
// eviction limits memory usage.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/booomerangs/relay/pkg/api"
	"github.com/booomerangs/relay/pkg/storage"
	"github.com/booomerangs/relay/pkg/transport"
)

// entry holds a session and its message history.
type entry struct {
	session  *api.Session
	messages []*api.Message
	lruElem  *list.Element // position in LRU list
}

// Store is an in-memory HistoryStore with optional LRU eviction of whole
// sessions.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	lruList *list.List // front = most recently used, back = least recently used
	maxSize int        // 0 = unlimited
}

// Ensure Store implements transport.HistoryStore at compile time.
var _ transport.HistoryStore = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the least recently used session is
// evicted when the limit is reached.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// CreateSession creates a new session with a generated UUID.
func (s *Store) CreateSession(_ context.Context, title string) (*api.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	session := &api.Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now().Unix(),
	}

	elem := s.lruList.PushFront(session.ID)
	s.entries[session.ID] = &entry{session: session, lruElem: elem}

	return session, nil
}

// GetSession returns a session by ID.
func (s *Store) GetSession(_ context.Context, id string) (*api.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	s.lruList.MoveToFront(e.lruElem)
	return e.session, nil
}

// AppendMessage appends a message to its session's history.
func (s *Store) AppendMessage(_ context.Context, msg *api.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[msg.SessionID]
	if !ok {
		return storage.ErrNotFound
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = time.Now().Unix()
	}

	e.messages = append(e.messages, msg)
	s.lruList.MoveToFront(e.lruElem)

	return nil
}

// ListMessages returns a session's messages in insertion order.
func (s *Store) ListMessages(_ context.Context, sessionID string) ([]*api.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[sessionID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	out := make([]*api.Message, len(e.messages))
	copy(out, e.messages)
	return out, nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// evictOldest removes the least recently used session and its messages.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}

	id := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, id)
}
