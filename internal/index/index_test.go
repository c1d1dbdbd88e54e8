package index

import (
	"context"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/internal/log"
	"github.com/inkwell-ai/inkwell/internal/testutil"
)

func TestNewRequiresPool(t *testing.T) {
	_, err := New(nil, testutil.NewMockEmbedder(8), log.NewNop())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool is required")
}

func TestQueryRejectsInvalidInput(t *testing.T) {
	ix := &Index{logger: log.NewNop()}
	ctx := context.Background()

	_, err := ix.Query(ctx, uuid.Nil, "anything", 5)
	assert.ErrorIs(t, err, ErrMissingProject)

	_, err = ix.Query(ctx, uuid.New(), "   \n", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestWriteRejectsInvalidInput(t *testing.T) {
	ix := &Index{logger: log.NewNop()}
	ctx := context.Background()

	_, err := ix.Write(ctx, uuid.Nil, []string{"chunk"})
	assert.ErrorIs(t, err, ErrMissingSource)

	_, err = ix.Write(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, ErrNoChunks)
}

func TestReindexRejectsInvalidInput(t *testing.T) {
	ix := &Index{logger: log.NewNop()}

	_, err := ix.Reindex(context.Background(), uuid.Nil)
	assert.ErrorIs(t, err, ErrMissingSource)
}

func TestBackoffDelayDoubles(t *testing.T) {
	ix := &Index{embedBackoff: 200 * time.Millisecond}

	assert.Equal(t, 200*time.Millisecond, ix.backoffDelay(2))
	assert.Equal(t, 400*time.Millisecond, ix.backoffDelay(3))
	assert.Equal(t, 800*time.Millisecond, ix.backoffDelay(4))
}

func TestEmbedRetriesTransientFailures(t *testing.T) {
	emb := testutil.NewMockEmbedder(8)
	emb.FailNext(2)
	ix := &Index{
		embedder:      emb,
		logger:        log.NewNop(),
		embedAttempts: 3,
		embedBackoff:  time.Millisecond,
	}

	vec, err := ix.embed(context.Background(), "retry me")

	require.NoError(t, err)
	assert.Len(t, vec.Slice(), 8)
	assert.Equal(t, 3, emb.Calls())
}

func TestEmbedGivesUpAfterAttempts(t *testing.T) {
	emb := testutil.NewMockEmbedder(8)
	emb.FailNext(3)
	ix := &Index{
		embedder:      emb,
		logger:        log.NewNop(),
		embedAttempts: 3,
		embedBackoff:  time.Millisecond,
	}

	_, err := ix.embed(context.Background(), "never works")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, emb.Calls())
}

func TestEmbedRejectsEmptyResponse(t *testing.T) {
	ix := &Index{
		embedder:      &emptyEmbedder{},
		logger:        log.NewNop(),
		embedAttempts: 1,
		embedBackoff:  time.Millisecond,
	}

	_, err := ix.embed(context.Background(), "text")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty embedding response")
}

func TestEmbedStopsOnCancelledContext(t *testing.T) {
	emb := testutil.NewMockEmbedder(8)
	emb.FailNext(10)
	ix := &Index{
		embedder:      emb,
		logger:        log.NewNop(),
		embedAttempts: 5,
		embedBackoff:  time.Hour, // retry wait must be interrupted, not served
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ix.embed(ctx, "text")

	assert.ErrorIs(t, err, context.Canceled)
}

// emptyEmbedder returns a response with no embeddings.
type emptyEmbedder struct{}

func (e *emptyEmbedder) Name() string            { return "mock/empty-embedder" }
func (e *emptyEmbedder) Register(_ api.Registry) {}

func (e *emptyEmbedder) Embed(_ context.Context, _ *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	return &ai.EmbedResponse{Embeddings: []*ai.Embedding{}}, nil
}
