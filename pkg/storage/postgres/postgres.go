// Package postgres provides a PostgreSQL implementation of
// transport.HistoryStore. It uses pgx/v5 for connection pooling.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/booomerangs/relay/pkg/api"
	"github.com/booomerangs/relay/pkg/storage"
	"github.com/booomerangs/relay/pkg/transport"
)

// Store is a PostgreSQL-backed HistoryStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements transport.HistoryStore at compile time.
var _ transport.HistoryStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// CreateSession creates a new session with a generated UUID.
func (s *Store) CreateSession(ctx context.Context, title string) (*api.Session, error) {
	session := &api.Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now().Unix(),
	}

	_, err := s.pool.Exec(ctx,
		"INSERT INTO sessions (id, title, created_at) VALUES ($1, $2, $3)",
		session.ID, session.Title, session.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, storage.ErrConflict
		}
		return nil, fmt.Errorf("inserting session: %w", err)
	}

	return session, nil
}

// GetSession returns a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*api.Session, error) {
	var session api.Session
	err := s.pool.QueryRow(ctx,
		"SELECT id, title, created_at FROM sessions WHERE id = $1",
		id,
	).Scan(&session.ID, &session.Title, &session.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	return &session, nil
}

// AppendMessage appends a message to its session's history.
func (s *Store) AppendMessage(ctx context.Context, msg *api.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = time.Now().Unix()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, session_id, role, content, provider, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.SessionID, string(msg.Role), msg.Content, msg.Provider, msg.CreatedAt)

	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrNotFound
		}
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting message: %w", err)
	}

	return nil
}

// ListMessages returns a session's messages in insertion order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]*api.Message, error) {
	// Verify the session exists so missing sessions are distinguishable
	// from empty histories.
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, role, content, provider, created_at
		FROM messages
		WHERE session_id = $1
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var out []*api.Message
	for rows.Next() {
		var msg api.Message
		var role string
		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content, &msg.Provider, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = api.MessageRole(role)
		out = append(out, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return out, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}

// isForeignKeyViolation checks if the error is a PostgreSQL foreign key
// violation (23503), meaning the referenced session does not exist.
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23503")
}
