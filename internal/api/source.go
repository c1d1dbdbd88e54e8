package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-ai/inkwell/internal/source"
)

// SourceStore is the source persistence the handler needs.
// Satisfied by *source.Store.
type SourceStore interface {
	Create(ctx context.Context, projectID uuid.UUID, title, sourceType, origin, rawText string) (*source.Source, error)
	Get(ctx context.Context, id uuid.UUID) (*source.Source, error)
	List(ctx context.Context, projectID uuid.UUID) ([]*source.Source, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Ingestor runs the ingestion pipeline. Satisfied by *source.Ingestor.
type Ingestor interface {
	Ingest(ctx context.Context, id uuid.UUID) (*source.Source, error)
}

// Reindexer embeds chunks whose vectors are missing. Satisfied by
// *index.Index.
type Reindexer interface {
	Reindex(ctx context.Context, sourceID uuid.UUID) (int, error)
}

// SourceHandler handles source endpoints.
type SourceHandler struct {
	store    SourceStore
	ingestor Ingestor
	index    Reindexer
	logger   *slog.Logger
}

// NewSourceHandler creates a source handler.
func NewSourceHandler(store SourceStore, ingestor Ingestor, index Reindexer, logger *slog.Logger) *SourceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SourceHandler{store: store, ingestor: ingestor, index: index, logger: logger}
}

// RegisterRoutes registers source routes.
func (h *SourceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sources", h.create)
	mux.HandleFunc("GET /api/sources", h.list)
	mux.HandleFunc("GET /api/sources/{id}", h.get)
	mux.HandleFunc("DELETE /api/sources/{id}", h.delete)
	mux.HandleFunc("POST /api/sources/{id}/reindex", h.reindex)
}

// CreateSourceRequest is the body for registering material.
type CreateSourceRequest struct {
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	Origin    string `json:"origin,omitempty"` // file path or URL
	Text      string `json:"text,omitempty"`   // raw text or transcript
}

// SourceResponse is the JSON shape of a source.
type SourceResponse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	Origin    string    `json:"origin,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toSourceResponse(src *source.Source) SourceResponse {
	return SourceResponse{
		ID:        src.ID.String(),
		ProjectID: src.ProjectID.String(),
		Title:     src.Title,
		Type:      src.Type,
		Origin:    src.Origin,
		Status:    src.Status,
		Error:     src.Error,
		CreatedAt: src.CreatedAt,
		UpdatedAt: src.UpdatedAt,
	}
}

// create registers material and ingests it synchronously. A failed
// ingestion still returns the source: its status and error tell the
// author what happened, and a retry or delete is one call away.
func (h *SourceHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_project_id", "project_id must be a UUID")
		return
	}

	src, err := h.store.Create(r.Context(), projectID, req.Title, req.Type, req.Origin, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, source.ErrMissingTitle),
			errors.Is(err, source.ErrInvalidType),
			errors.Is(err, source.ErrMissingProject):
			writeError(w, http.StatusBadRequest, "invalid_source", err.Error())
		default:
			h.logger.Error("creating source", "error", err)
			writeError(w, http.StatusInternalServerError, "create_failed", "could not create source")
		}
		return
	}

	ingested, err := h.ingestor.Ingest(r.Context(), src.ID)
	if err != nil {
		h.logger.Warn("ingestion failed", "source_id", src.ID, "error", err)
		// The source row now carries status=failed and the reason.
		if failed, getErr := h.store.Get(r.Context(), src.ID); getErr == nil {
			writeJSON(w, http.StatusCreated, toSourceResponse(failed))
			return
		}
		writeError(w, http.StatusInternalServerError, "ingest_failed", "could not ingest source")
		return
	}

	writeJSON(w, http.StatusCreated, toSourceResponse(ingested))
}

func (h *SourceHandler) list(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.URL.Query().Get("project_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_project_id", "project_id query parameter must be a UUID")
		return
	}

	sources, err := h.store.List(r.Context(), projectID)
	if err != nil {
		h.logger.Error("listing sources", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "could not list sources")
		return
	}

	resp := make([]SourceResponse, 0, len(sources))
	for _, src := range sources {
		resp = append(resp, toSourceResponse(src))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": resp, "total": len(resp)})
}

func (h *SourceHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	src, err := h.store.Get(r.Context(), id)
	if errors.Is(err, source.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "source not found")
		return
	}
	if err != nil {
		h.logger.Error("getting source", "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed", "could not get source")
		return
	}
	writeJSON(w, http.StatusOK, toSourceResponse(src))
}

func (h *SourceHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	err := h.store.Delete(r.Context(), id)
	if errors.Is(err, source.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "source not found")
		return
	}
	if err != nil {
		h.logger.Error("deleting source", "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "could not delete source")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SourceHandler) reindex(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	embedded, err := h.index.Reindex(r.Context(), id)
	if err != nil {
		h.logger.Error("reindexing source", "source_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "reindex_failed", "could not reindex source")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"embedded": embedded})
}

// pathUUID parses a UUID path segment, writing a 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", name+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
