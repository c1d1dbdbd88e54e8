// Package source manages the lifecycle of uploaded research material:
// registration, text extraction, chunking and indexing.
package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/inkwell-ai/inkwell/internal/extract"
)

// SourceStore is the persistence the ingestor needs. Satisfied by *Store.
type SourceStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Source, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkReady(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	SaveExtracted(ctx context.Context, id uuid.UUID, text, title string) error
}

// TextExtractor turns source material into plain text. Satisfied by
// *extract.Extractor.
type TextExtractor interface {
	Extract(ctx context.Context, sourceType, origin, raw string) (*extract.Result, error)
}

// Chunker splits extracted text. Satisfied by *chunker.Chunker.
type Chunker interface {
	Chunk(text string) []string
}

// Indexer stores and embeds chunks. Satisfied by *index.Index.
type Indexer interface {
	Write(ctx context.Context, sourceID uuid.UUID, chunks []string) (int, error)
}

// Ingestor runs the write path: extract, chunk, index, mark ready.
type Ingestor struct {
	store     SourceStore
	extractor TextExtractor
	chunker   Chunker
	index     Indexer
	logger    *slog.Logger
}

// NewIngestor creates an Ingestor.
func NewIngestor(store SourceStore, extractor TextExtractor, chunker Chunker, index Indexer, logger *slog.Logger) (*Ingestor, error) {
	if store == nil {
		return nil, fmt.Errorf("source store is required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if chunker == nil {
		return nil, fmt.Errorf("chunker is required")
	}
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		store:     store,
		extractor: extractor,
		chunker:   chunker,
		index:     index,
		logger:    logger,
	}, nil
}

// Ingest processes one registered source to the ready state. Any failure
// marks the source failed with the reason; the author can retry by
// calling Ingest again or delete the source.
//
// Chunks that fail to embed do not fail ingestion: they stay queryable
// through degraded retrieval and are picked up by a later reindex.
func (g *Ingestor) Ingest(ctx context.Context, sourceID uuid.UUID) (*Source, error) {
	src, err := g.store.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	if err := g.store.MarkProcessing(ctx, sourceID); err != nil {
		return nil, err
	}

	res, err := g.extractor.Extract(ctx, src.Type, src.Origin, src.RawText)
	if err != nil {
		return nil, g.fail(ctx, sourceID, fmt.Errorf("extracting text: %w", err))
	}

	title := src.Title
	if res.Title != "" {
		title = res.Title
	}
	if err := g.store.SaveExtracted(ctx, sourceID, res.Text, title); err != nil {
		return nil, err
	}

	chunks := g.chunker.Chunk(res.Text)
	if len(chunks) == 0 {
		return nil, g.fail(ctx, sourceID, fmt.Errorf("extracted text produced no chunks"))
	}

	embedded, err := g.index.Write(ctx, sourceID, chunks)
	if err != nil {
		return nil, g.fail(ctx, sourceID, fmt.Errorf("indexing chunks: %w", err))
	}

	if err := g.store.MarkReady(ctx, sourceID); err != nil {
		return nil, err
	}

	g.logger.Info("source ingested",
		"source_id", sourceID, "chunks", len(chunks), "embedded", embedded)

	return g.store.Get(ctx, sourceID)
}

// fail marks the source failed and returns the original error. The status
// update is best-effort: the ingestion error is what the caller needs.
func (g *Ingestor) fail(ctx context.Context, sourceID uuid.UUID, cause error) error {
	if err := g.store.MarkFailed(ctx, sourceID, cause.Error()); err != nil {
		g.logger.Error("marking source failed",
			"source_id", sourceID, "error", err)
	}
	return cause
}
