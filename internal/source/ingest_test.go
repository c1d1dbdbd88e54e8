package source

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/internal/extract"
	"github.com/inkwell-ai/inkwell/internal/log"
)

// mockSourceStore tracks status transitions in memory.
type mockSourceStore struct {
	src        *Source
	statuses   []string
	savedText  string
	savedTitle string
	failReason string
}

func (m *mockSourceStore) Get(_ context.Context, id uuid.UUID) (*Source, error) {
	if m.src == nil || m.src.ID != id {
		return nil, ErrNotFound
	}
	clone := *m.src
	return &clone, nil
}

func (m *mockSourceStore) MarkProcessing(_ context.Context, _ uuid.UUID) error {
	m.statuses = append(m.statuses, StatusProcessing)
	m.src.Status = StatusProcessing
	return nil
}

func (m *mockSourceStore) MarkReady(_ context.Context, _ uuid.UUID) error {
	m.statuses = append(m.statuses, StatusReady)
	m.src.Status = StatusReady
	return nil
}

func (m *mockSourceStore) MarkFailed(_ context.Context, _ uuid.UUID, reason string) error {
	m.statuses = append(m.statuses, StatusFailed)
	m.src.Status = StatusFailed
	m.failReason = reason
	return nil
}

func (m *mockSourceStore) SaveExtracted(_ context.Context, _ uuid.UUID, text, title string) error {
	m.savedText = text
	m.savedTitle = title
	m.src.RawText = text
	m.src.Title = title
	return nil
}

type mockExtractor struct {
	result *extract.Result
	err    error
}

func (m *mockExtractor) Extract(_ context.Context, _, _, _ string) (*extract.Result, error) {
	return m.result, m.err
}

type mockChunker struct {
	chunks []string
}

func (m *mockChunker) Chunk(_ string) []string { return m.chunks }

type mockIndexer struct {
	gotChunks []string
	embedded  int
	err       error
}

func (m *mockIndexer) Write(_ context.Context, _ uuid.UUID, chunks []string) (int, error) {
	m.gotChunks = chunks
	if m.err != nil {
		return 0, m.err
	}
	return m.embedded, nil
}

func testSource() *Source {
	return &Source{
		ID:        uuid.New(),
		ProjectID: uuid.New(),
		Title:     "Uploaded file",
		Type:      TypeText,
		RawText:   "raw upload",
		Status:    StatusUploading,
	}
}

func newIngestor(t *testing.T, store SourceStore, ex TextExtractor, ch Chunker, ix Indexer) *Ingestor {
	t.Helper()
	g, err := NewIngestor(store, ex, ch, ix, log.NewNop())
	require.NoError(t, err)
	return g
}

func TestIngestHappyPath(t *testing.T) {
	store := &mockSourceStore{src: testSource()}
	indexer := &mockIndexer{embedded: 2}
	g := newIngestor(t, store,
		&mockExtractor{result: &extract.Result{Text: "extracted body"}},
		&mockChunker{chunks: []string{"extracted ", "body"}},
		indexer)

	src, err := g.Ingest(context.Background(), store.src.ID)

	require.NoError(t, err)
	assert.Equal(t, StatusReady, src.Status)
	assert.Equal(t, []string{StatusProcessing, StatusReady}, store.statuses)
	assert.Equal(t, "extracted body", store.savedText)
	assert.Equal(t, []string{"extracted ", "body"}, indexer.gotChunks)
}

func TestIngestKeepsExtractedTitle(t *testing.T) {
	store := &mockSourceStore{src: testSource()}
	g := newIngestor(t, store,
		&mockExtractor{result: &extract.Result{Text: "body", Title: "Real Article Title"}},
		&mockChunker{chunks: []string{"body"}},
		&mockIndexer{embedded: 1})

	_, err := g.Ingest(context.Background(), store.src.ID)

	require.NoError(t, err)
	assert.Equal(t, "Real Article Title", store.savedTitle)
}

func TestIngestExtractionFailureMarksFailed(t *testing.T) {
	store := &mockSourceStore{src: testSource()}
	g := newIngestor(t, store,
		&mockExtractor{err: errors.New("corrupt file")},
		&mockChunker{}, &mockIndexer{})

	_, err := g.Ingest(context.Background(), store.src.ID)

	require.Error(t, err)
	assert.Equal(t, StatusFailed, store.src.Status)
	assert.Contains(t, store.failReason, "corrupt file")
}

func TestIngestEmptyChunksMarksFailed(t *testing.T) {
	store := &mockSourceStore{src: testSource()}
	g := newIngestor(t, store,
		&mockExtractor{result: &extract.Result{Text: "body"}},
		&mockChunker{chunks: nil},
		&mockIndexer{})

	_, err := g.Ingest(context.Background(), store.src.ID)

	require.Error(t, err)
	assert.Equal(t, StatusFailed, store.src.Status)
}

func TestIngestIndexFailureMarksFailed(t *testing.T) {
	store := &mockSourceStore{src: testSource()}
	g := newIngestor(t, store,
		&mockExtractor{result: &extract.Result{Text: "body"}},
		&mockChunker{chunks: []string{"body"}},
		&mockIndexer{err: errors.New("db down")})

	_, err := g.Ingest(context.Background(), store.src.ID)

	require.Error(t, err)
	assert.Equal(t, StatusFailed, store.src.Status)
	assert.Contains(t, store.failReason, "db down")
}

func TestIngestUnknownSource(t *testing.T) {
	g := newIngestor(t, &mockSourceStore{},
		&mockExtractor{}, &mockChunker{}, &mockIndexer{})

	_, err := g.Ingest(context.Background(), uuid.New())

	assert.ErrorIs(t, err, ErrNotFound)
}
