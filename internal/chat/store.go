package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createSessionSQL = `INSERT INTO sessions (project_id, title)
	VALUES ($1, $2)
	RETURNING id, project_id, COALESCE(title, ''), created_at, updated_at`

const getSessionSQL = `SELECT id, project_id, COALESCE(title, ''), created_at, updated_at
	FROM sessions WHERE id = $1`

const listSessionsSQL = `SELECT id, project_id, COALESCE(title, ''), created_at, updated_at
	FROM sessions WHERE project_id = $1 ORDER BY updated_at DESC`

const deleteSessionSQL = `DELETE FROM sessions WHERE id = $1`

const insertMessageSQL = `INSERT INTO messages (session_id, role, content, citations)
	VALUES ($1, $2, $3, $4)
	RETURNING id, created_at`

const touchSessionSQL = `UPDATE sessions SET updated_at = now() WHERE id = $1`

// historySQL fetches the most recent messages; the store reverses them to
// oldest-first before returning.
const historySQL = `SELECT id, session_id, role, content, citations, created_at
	FROM messages WHERE session_id = $1
	ORDER BY created_at DESC, id DESC
	LIMIT $2`

// Store persists sessions and messages in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a session Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// CreateSession creates a session in the project, optionally titled.
func (s *Store) CreateSession(ctx context.Context, projectID uuid.UUID, title string) (*Session, error) {
	if projectID == uuid.Nil {
		return nil, ErrMissingProject
	}

	var titleArg any
	if title != "" {
		titleArg = title
	}

	var sess Session
	err := s.pool.QueryRow(ctx, createSessionSQL, projectID, titleArg).
		Scan(&sess.ID, &sess.ProjectID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Debug("session created", "session_id", sess.ID, "project_id", projectID)
	return &sess, nil
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	var sess Session
	err := s.pool.QueryRow(ctx, getSessionSQL, id).
		Scan(&sess.ID, &sess.ProjectID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return &sess, nil
}

// ListSessions returns the project's sessions, most recently active first.
func (s *Store) ListSessions(ctx context.Context, projectID uuid.UUID) ([]*Session, error) {
	if projectID == uuid.Nil {
		return nil, ErrMissingProject
	}

	rows, err := s.pool.Query(ctx, listSessionsSQL, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.ProjectID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession removes a session and, via cascade, its messages.
func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, deleteSessionSQL, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// AddMessage appends a message to its session and bumps the session's
// last-activity timestamp in the same transaction.
func (s *Store) AddMessage(ctx context.Context, msg *Message) (*Message, error) {
	if msg.SessionID == uuid.Nil {
		return nil, ErrSessionNotFound
	}
	if msg.Role != RoleUser && msg.Role != RoleAssistant {
		return nil, fmt.Errorf("invalid message role %q", msg.Role)
	}

	var citations any
	if len(msg.Citations) > 0 {
		data, err := json.Marshal(msg.Citations)
		if err != nil {
			return nil, fmt.Errorf("encoding citations: %w", err)
		}
		citations = data
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stored := *msg
	err = tx.QueryRow(ctx, insertMessageSQL, msg.SessionID, msg.Role, msg.Content, citations).
		Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	if _, err := tx.Exec(ctx, touchSessionSQL, msg.SessionID); err != nil {
		return nil, fmt.Errorf("touching session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing message: %w", err)
	}
	return &stored, nil
}

// History returns up to limit of the session's most recent messages in
// oldest-first order.
func (s *Store) History(ctx context.Context, sessionID uuid.UUID, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := s.pool.Query(ctx, historySQL, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var (
			msg      Message
			rawCites []byte
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &rawCites, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if len(rawCites) > 0 {
			if err := json.Unmarshal(rawCites, &msg.Citations); err != nil {
				return nil, fmt.Errorf("decoding citations for message %s: %w", msg.ID, err)
			}
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	// Reverse: the query returns newest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
