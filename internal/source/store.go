package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sourceCols = `id, project_id, title, source_type, COALESCE(origin, ''),
	COALESCE(raw_text, ''), status, COALESCE(error, ''), created_at, updated_at`

const createSourceSQL = `INSERT INTO sources (project_id, title, source_type, origin, raw_text)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING ` + sourceCols

const getSourceSQL = `SELECT ` + sourceCols + ` FROM sources WHERE id = $1`

const listSourcesSQL = `SELECT ` + sourceCols + ` FROM sources
	WHERE project_id = $1 ORDER BY created_at DESC`

const deleteSourceSQL = `DELETE FROM sources WHERE id = $1`

const setStatusSQL = `UPDATE sources SET status = $2, error = $3, updated_at = now()
	WHERE id = $1`

const saveExtractedSQL = `UPDATE sources
	SET raw_text = $2, title = $3, status = $4, updated_at = now()
	WHERE id = $1`

// Store persists sources in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a source Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Create registers new material in the uploading state.
func (s *Store) Create(ctx context.Context, projectID uuid.UUID, title, sourceType, origin, rawText string) (*Source, error) {
	if projectID == uuid.Nil {
		return nil, ErrMissingProject
	}
	if strings.TrimSpace(title) == "" {
		return nil, ErrMissingTitle
	}
	if !validTypes[sourceType] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, sourceType)
	}

	var originArg, rawArg any
	if origin != "" {
		originArg = origin
	}
	if rawText != "" {
		rawArg = rawText
	}

	src, err := scanSource(s.pool.QueryRow(ctx, createSourceSQL,
		projectID, title, sourceType, originArg, rawArg))
	if err != nil {
		return nil, fmt.Errorf("creating source: %w", err)
	}

	s.logger.Debug("source created",
		"source_id", src.ID, "project_id", projectID, "type", sourceType)
	return src, nil
}

// Get retrieves a source by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Source, error) {
	src, err := scanSource(s.pool.QueryRow(ctx, getSourceSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting source: %w", err)
	}
	return src, nil
}

// List returns the project's sources, newest first.
func (s *Store) List(ctx context.Context, projectID uuid.UUID) ([]*Source, error) {
	if projectID == uuid.Nil {
		return nil, ErrMissingProject
	}

	rows, err := s.pool.Query(ctx, listSourcesSQL, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	var sources []*Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sources: %w", err)
	}
	return sources, nil
}

// Delete removes a source and, via cascade, its chunks.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, deleteSourceSQL, id)
	if err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkProcessing moves a source into the processing state.
func (s *Store) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, StatusProcessing, "")
}

// MarkReady moves a source into the ready state and clears any error.
func (s *Store) MarkReady(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, StatusReady, "")
}

// MarkFailed records why ingestion failed so the author can retry or
// remove the source.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return s.setStatus(ctx, id, StatusFailed, reason)
}

// SaveExtracted stores the extracted text and final title on a source.
func (s *Store) SaveExtracted(ctx context.Context, id uuid.UUID, text, title string) error {
	tag, err := s.pool.Exec(ctx, saveExtractedSQL, id, text, title, StatusProcessing)
	if err != nil {
		return fmt.Errorf("saving extracted text: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) setStatus(ctx context.Context, id uuid.UUID, status, reason string) error {
	var errArg any
	if reason != "" {
		errArg = reason
	}
	tag, err := s.pool.Exec(ctx, setStatusSQL, id, status, errArg)
	if err != nil {
		return fmt.Errorf("updating source status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSource(row pgx.Row) (*Source, error) {
	var src Source
	err := row.Scan(&src.ID, &src.ProjectID, &src.Title, &src.Type, &src.Origin,
		&src.RawText, &src.Status, &src.Error, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &src, nil
}
