package index

import (
	"errors"

	"github.com/google/uuid"
)

// VectorDimension is the embedding dimensionality stored in pgvector.
// Must match the vector(N) column type in the chunks table.
const VectorDimension int32 = 768

// Retrieval tuning defaults.
const (
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.3
	DefaultEmbedAttempts = 3
	DefaultEmbedBackoff  = 200 // milliseconds, doubled per retry
)

var (
	// ErrMissingProject indicates a zero project ID was passed.
	ErrMissingProject = errors.New("project id is required")

	// ErrMissingSource indicates a zero source ID was passed.
	ErrMissingSource = errors.New("source id is required")

	// ErrEmptyQuery indicates the query text was empty or whitespace.
	ErrEmptyQuery = errors.New("query text is empty")

	// ErrNoChunks indicates Write was called with nothing to index.
	ErrNoChunks = errors.New("no chunks to index")
)

// RetrievedChunk is a single search hit with its provenance.
type RetrievedChunk struct {
	ID          uuid.UUID
	SourceID    uuid.UUID
	SourceTitle string
	Ordinal     int
	Content     string
	Similarity  float32
}

// Retrieval is the result of a Query. Degraded is true when similarity
// search was unavailable and the chunks were selected without ranking;
// callers should surface that to the user rather than hide it.
type Retrieval struct {
	Chunks   []RetrievedChunk
	Degraded bool
}
