package index

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/internal/log"
	"github.com/inkwell-ai/inkwell/internal/testutil"
)

// insertSource creates a minimal ready source row for chunk tests.
func insertSource(t *testing.T, pool *pgxpool.Pool, projectID uuid.UUID, title string) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := pool.QueryRow(context.Background(),
		`INSERT INTO sources (project_id, title, source_type, status)
		 VALUES ($1, $2, 'text', 'ready') RETURNING id`,
		projectID, title).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestIndexWriteAndQuery_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	emb := testutil.NewMockEmbedder(int(VectorDimension))
	ix, err := New(db.Pool, emb, log.NewNop())
	require.NoError(t, err)

	projectID := uuid.New()
	sourceID := insertSource(t, db.Pool, projectID, "Lecture notes")

	chunks := []string{
		"Spaced repetition improves long term retention.",
		"Interleaving distinct topics slows forgetting.",
		"Sleep consolidates newly formed memories.",
	}

	embedded, err := ix.Write(ctx, sourceID, chunks)
	require.NoError(t, err)
	assert.Equal(t, len(chunks), embedded)

	// Querying with the exact text of a chunk must return that chunk as
	// the top hit: identical text embeds to the identical vector.
	res, err := ix.Query(ctx, projectID, chunks[1], 5)
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	require.NotEmpty(t, res.Chunks)
	assert.Equal(t, chunks[1], res.Chunks[0].Content)
	assert.Equal(t, sourceID, res.Chunks[0].SourceID)
	assert.Equal(t, "Lecture notes", res.Chunks[0].SourceTitle)
	assert.InDelta(t, 1.0, res.Chunks[0].Similarity, 0.001)
}

func TestIndexWriteIsIdempotent_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	emb := testutil.NewMockEmbedder(int(VectorDimension))
	ix, err := New(db.Pool, emb, log.NewNop())
	require.NoError(t, err)

	sourceID := insertSource(t, db.Pool, uuid.New(), "Essay draft")
	chunks := []string{"First part.", "Second part."}

	_, err = ix.Write(ctx, sourceID, chunks)
	require.NoError(t, err)
	_, err = ix.Write(ctx, sourceID, chunks)
	require.NoError(t, err)

	var count int
	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE source_id = $1`, sourceID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(chunks), count)
}

func TestIndexReindexEmbedsPending_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	emb := testutil.NewMockEmbedder(int(VectorDimension))
	ix, err := New(db.Pool, emb, log.NewNop(),
		WithEmbedAttempts(1), WithEmbedBackoff(1))
	require.NoError(t, err)

	sourceID := insertSource(t, db.Pool, uuid.New(), "Podcast transcript")
	chunks := []string{"Alpha.", "Beta.", "Gamma."}

	// Every embedding call fails: rows land with NULL embeddings.
	emb.FailNext(len(chunks))
	embedded, err := ix.Write(ctx, sourceID, chunks)
	require.NoError(t, err)
	assert.Equal(t, 0, embedded)

	var pending int
	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE source_id = $1 AND embedding IS NULL`,
		sourceID).Scan(&pending)
	require.NoError(t, err)
	assert.Equal(t, len(chunks), pending)

	// Reindex with a healthy embedder picks them all up.
	embedded, err = ix.Reindex(ctx, sourceID)
	require.NoError(t, err)
	assert.Equal(t, len(chunks), embedded)

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE source_id = $1 AND embedding IS NULL`,
		sourceID).Scan(&pending)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
}

func TestIndexQueryDegradedFallback_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	emb := testutil.NewMockEmbedder(int(VectorDimension))
	ix, err := New(db.Pool, emb, log.NewNop(),
		WithEmbedAttempts(1), WithEmbedBackoff(1))
	require.NoError(t, err)

	projectID := uuid.New()
	sourceID := insertSource(t, db.Pool, projectID, "Field notes")
	chunks := []string{"One.", "Two.", "Three."}

	_, err = ix.Write(ctx, sourceID, chunks)
	require.NoError(t, err)

	// Embedding the query fails, so retrieval degrades to document order.
	emb.FailNext(1)
	res, err := ix.Query(ctx, projectID, "anything at all", 2)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	require.Len(t, res.Chunks, 2)
	assert.Equal(t, "One.", res.Chunks[0].Content)
	assert.Equal(t, "Two.", res.Chunks[1].Content)
	assert.Zero(t, res.Chunks[0].Similarity)
}

func TestIndexQueryScopedToProject_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	emb := testutil.NewMockEmbedder(int(VectorDimension))
	ix, err := New(db.Pool, emb, log.NewNop())
	require.NoError(t, err)

	mine := uuid.New()
	other := uuid.New()
	mySource := insertSource(t, db.Pool, mine, "Mine")
	otherSource := insertSource(t, db.Pool, other, "Theirs")

	shared := "Identical content in both projects."
	_, err = ix.Write(ctx, mySource, []string{shared})
	require.NoError(t, err)
	_, err = ix.Write(ctx, otherSource, []string{shared})
	require.NoError(t, err)

	res, err := ix.Query(ctx, mine, shared, 10)
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, mySource, res.Chunks[0].SourceID)
}
