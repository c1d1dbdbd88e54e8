package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-ai/inkwell/internal/chat"
)

// transcriptLimit bounds how many messages one transcript fetch returns.
const transcriptLimit = 200

// SessionStore is the session persistence the handler needs.
// Satisfied by *chat.Store.
type SessionStore interface {
	CreateSession(ctx context.Context, projectID uuid.UUID, title string) (*chat.Session, error)
	ListSessions(ctx context.Context, projectID uuid.UUID) ([]*chat.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*chat.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	History(ctx context.Context, sessionID uuid.UUID, limit int) ([]*chat.Message, error)
}

// SessionHandler handles session endpoints.
type SessionHandler struct {
	store  SessionStore
	logger *slog.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(store SessionStore, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{store: store, logger: logger}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.create)
	mux.HandleFunc("GET /api/sessions", h.list)
	mux.HandleFunc("GET /api/sessions/{id}/messages", h.messages)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.delete)
}

// CreateSessionRequest is the body for starting a session explicitly.
// Sessions are also created lazily by the first chat turn.
type CreateSessionRequest struct {
	ProjectID string `json:"project_id"`
	Title     string `json:"title,omitempty"`
}

func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_project_id", "project_id must be a UUID")
		return
	}

	sess, err := h.store.CreateSession(r.Context(), projectID, req.Title)
	if err != nil {
		h.logger.Error("creating session", "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed", "could not create session")
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

// SessionResponse is the JSON shape of a session.
type SessionResponse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toSessionResponse(sess *chat.Session) SessionResponse {
	return SessionResponse{
		ID:        sess.ID.String(),
		ProjectID: sess.ProjectID.String(),
		Title:     sess.Title,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	}
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.URL.Query().Get("project_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_project_id", "project_id query parameter must be a UUID")
		return
	}

	sessions, err := h.store.ListSessions(r.Context(), projectID)
	if err != nil {
		h.logger.Error("listing sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "could not list sessions")
		return
	}

	resp := make([]SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		resp = append(resp, toSessionResponse(sess))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": resp, "total": len(resp)})
}

func (h *SessionHandler) messages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	sess, err := h.store.GetSession(r.Context(), id)
	if errors.Is(err, chat.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	if err != nil {
		h.logger.Error("getting session", "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed", "could not get session")
		return
	}

	messages, err := h.store.History(r.Context(), id, transcriptLimit)
	if err != nil {
		h.logger.Error("loading session messages", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "history_failed", "could not load messages")
		return
	}

	resp := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		resp = append(resp, toMessageResponse(msg))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  toSessionResponse(sess),
		"messages": resp,
		"total":    len(resp),
	})
}

func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	err := h.store.DeleteSession(r.Context(), id)
	if errors.Is(err, chat.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	if err != nil {
		h.logger.Error("deleting session", "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "could not delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
