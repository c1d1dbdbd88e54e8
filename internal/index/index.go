// Package index maintains the vector index over source chunks and answers
// similarity queries against it.
//
// Chunks are inserted first and embedded second: a chunk row with a NULL
// embedding is visible to reindexing but not to similarity search. Embedding
// calls are retried with exponential backoff; a chunk whose embedding never
// succeeds stays queryable through the degraded fallback path.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

const insertChunkSQL = `INSERT INTO chunks (source_id, ordinal, content)
	VALUES ($1, $2, $3)
	ON CONFLICT (source_id, ordinal) DO NOTHING`

const selectPendingSQL = `SELECT id, content FROM chunks
	WHERE source_id = $1 AND embedding IS NULL
	ORDER BY ordinal`

const updateEmbeddingSQL = `UPDATE chunks SET embedding = $1 WHERE id = $2`

const searchSQL = `SELECT c.id, c.source_id, s.title, c.ordinal, c.content,
		1 - (c.embedding <=> $1) AS similarity
	FROM chunks c
	JOIN sources s ON s.id = c.source_id
	WHERE s.project_id = $2
		AND c.embedding IS NOT NULL
		AND 1 - (c.embedding <=> $1) >= $3
	ORDER BY c.embedding <=> $1
	LIMIT $4`

// fallbackSQL selects chunks in document order when similarity search is
// unavailable. Similarity is reported as zero.
const fallbackSQL = `SELECT c.id, c.source_id, s.title, c.ordinal, c.content
	FROM chunks c
	JOIN sources s ON s.id = c.source_id
	WHERE s.project_id = $1
	ORDER BY s.created_at, c.ordinal
	LIMIT $2`

// Index writes chunk embeddings and serves similarity queries.
//
// Index is safe for concurrent use by multiple goroutines.
type Index struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   *slog.Logger

	minSimilarity float32
	embedAttempts int
	embedBackoff  time.Duration
}

// Option configures an Index.
type Option func(*Index)

// WithMinSimilarity sets the similarity floor below which search hits
// are discarded.
func WithMinSimilarity(min float32) Option {
	return func(ix *Index) { ix.minSimilarity = min }
}

// WithEmbedAttempts sets how many times an embedding call is attempted
// before the chunk is left unembedded.
func WithEmbedAttempts(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.embedAttempts = n
		}
	}
}

// WithEmbedBackoff sets the base delay before the first retry. The delay
// doubles on each subsequent attempt.
func WithEmbedBackoff(d time.Duration) Option {
	return func(ix *Index) {
		if d > 0 {
			ix.embedBackoff = d
		}
	}
}

// New creates an Index.
func New(pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger, opts ...Option) (*Index, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ix := &Index{
		pool:          pool,
		embedder:      embedder,
		logger:        logger,
		minSimilarity: DefaultMinSimilarity,
		embedAttempts: DefaultEmbedAttempts,
		embedBackoff:  DefaultEmbedBackoff * time.Millisecond,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

// Write stores the chunks of a source and embeds them. Insertion and
// embedding are separate phases: all rows land first (NULL embedding),
// then each is embedded individually so one failing chunk does not lose
// the rest. Returns the number of chunks that got an embedding.
//
// Re-running Write for the same source is idempotent on the insert side
// and picks up previously unembedded rows.
func (ix *Index) Write(ctx context.Context, sourceID uuid.UUID, chunks []string) (int, error) {
	if sourceID == uuid.Nil {
		return 0, ErrMissingSource
	}
	if len(chunks) == 0 {
		return 0, ErrNoChunks
	}

	tx, err := ix.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for ordinal, content := range chunks {
		if _, err := tx.Exec(ctx, insertChunkSQL, sourceID, ordinal, content); err != nil {
			return 0, fmt.Errorf("inserting chunk %d: %w", ordinal, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing chunks: %w", err)
	}

	return ix.embedPending(ctx, sourceID)
}

// Reindex embeds every chunk of the source that is still missing an
// embedding. Returns the number of chunks embedded.
func (ix *Index) Reindex(ctx context.Context, sourceID uuid.UUID) (int, error) {
	if sourceID == uuid.Nil {
		return 0, ErrMissingSource
	}
	return ix.embedPending(ctx, sourceID)
}

// Query embeds the query text and returns the most similar chunks in the
// project. If embedding or similarity search fails, it falls back to
// unranked chunks in document order and marks the result Degraded.
func (ix *Index) Query(ctx context.Context, projectID uuid.UUID, text string, topK int) (*Retrieval, error) {
	if projectID == uuid.Nil {
		return nil, ErrMissingProject
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vec, err := ix.embed(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		ix.logger.Warn("query embedding failed, serving degraded retrieval", "error", err)
		return ix.fallback(ctx, projectID, topK)
	}

	rows, err := ix.pool.Query(ctx, searchSQL, vec, projectID, ix.minSimilarity, topK)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		ix.logger.Warn("similarity search failed, serving degraded retrieval", "error", err)
		return ix.fallback(ctx, projectID, topK)
	}
	defer rows.Close()

	var chunks []RetrievedChunk
	for rows.Next() {
		var c RetrievedChunk
		if err := rows.Scan(&c.ID, &c.SourceID, &c.SourceTitle, &c.Ordinal, &c.Content, &c.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search hits: %w", err)
	}

	return &Retrieval{Chunks: chunks}, nil
}

// fallback serves unranked chunks when similarity search is unavailable.
func (ix *Index) fallback(ctx context.Context, projectID uuid.UUID, topK int) (*Retrieval, error) {
	rows, err := ix.pool.Query(ctx, fallbackSQL, projectID, topK)
	if err != nil {
		return nil, fmt.Errorf("degraded retrieval: %w", err)
	}
	defer rows.Close()

	var chunks []RetrievedChunk
	for rows.Next() {
		var c RetrievedChunk
		if err := rows.Scan(&c.ID, &c.SourceID, &c.SourceTitle, &c.Ordinal, &c.Content); err != nil {
			return nil, fmt.Errorf("scanning degraded hit: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading degraded hits: %w", err)
	}

	return &Retrieval{Chunks: chunks, Degraded: true}, nil
}

// embedPending embeds all chunks of a source that have no embedding yet.
// Chunks whose embedding fails are logged and left NULL for a later
// Reindex; storage errors abort.
func (ix *Index) embedPending(ctx context.Context, sourceID uuid.UUID) (int, error) {
	rows, err := ix.pool.Query(ctx, selectPendingSQL, sourceID)
	if err != nil {
		return 0, fmt.Errorf("selecting unembedded chunks: %w", err)
	}

	type pending struct {
		id      uuid.UUID
		content string
	}
	var todo []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.content); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning unembedded chunk: %w", err)
		}
		todo = append(todo, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("reading unembedded chunks: %w", err)
	}

	embedded := 0
	for _, p := range todo {
		vec, err := ix.embed(ctx, p.content)
		if err != nil {
			if ctx.Err() != nil {
				return embedded, ctx.Err()
			}
			ix.logger.Warn("chunk embedding failed, leaving for reindex",
				"chunk_id", p.id, "source_id", sourceID, "error", err)
			continue
		}
		if _, err := ix.pool.Exec(ctx, updateEmbeddingSQL, vec, p.id); err != nil {
			return embedded, fmt.Errorf("storing embedding for chunk %s: %w", p.id, err)
		}
		embedded++
	}

	if embedded < len(todo) {
		ix.logger.Warn("source partially embedded",
			"source_id", sourceID, "embedded", embedded, "total", len(todo))
	}
	return embedded, nil
}

// embed generates a vector for the given text, retrying transient failures
// with exponential backoff.
func (ix *Index) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	var lastErr error

	for attempt := 1; attempt <= ix.embedAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return pgvector.Vector{}, ctx.Err()
			case <-time.After(ix.backoffDelay(attempt)):
			}
		}

		resp, err := ix.embedder.Embed(ctx, &ai.EmbedRequest{
			Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
			Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
		})
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
			lastErr = errors.New("empty embedding response")
			continue
		}
		return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
	}

	return pgvector.Vector{}, fmt.Errorf("embedding after %d attempts: %w", ix.embedAttempts, lastErr)
}

// backoffDelay returns the delay before the given attempt (2nd attempt
// waits the base backoff, each further attempt doubles it).
func (ix *Index) backoffDelay(attempt int) time.Duration {
	return ix.embedBackoff << (attempt - 2)
}
