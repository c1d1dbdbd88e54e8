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

// TurnRunner executes one grounded chat turn. Satisfied by
// *chat.Orchestrator.
type TurnRunner interface {
	Turn(ctx context.Context, req chat.TurnRequest) (*chat.TurnResult, error)
}

// ChatHandler handles the chat endpoint.
type ChatHandler struct {
	orchestrator TurnRunner
	logger       *slog.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(orchestrator TurnRunner, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{orchestrator: orchestrator, logger: logger}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.turn)
}

// ChatRequest is the body of one chat turn. SessionID may be empty to
// start a new session.
type ChatRequest struct {
	ProjectID string `json:"project_id"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// ChatResponse is the outcome of a completed turn.
type ChatResponse struct {
	SessionID    string          `json:"session_id"`
	SessionTitle string          `json:"session_title"`
	Reply        MessageResponse `json:"reply"`
	Degraded     bool            `json:"degraded"`
}

// MessageResponse is the JSON shape of a stored message.
type MessageResponse struct {
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Citations []chat.Citation `json:"citations,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func toMessageResponse(msg *chat.Message) MessageResponse {
	return MessageResponse{
		ID:        msg.ID.String(),
		Role:      msg.Role,
		Content:   msg.Content,
		Citations: msg.Citations,
		CreatedAt: msg.CreatedAt,
	}
}

func (h *ChatHandler) turn(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_project_id", "project_id must be a UUID")
		return
	}

	sessionID := uuid.Nil
	if req.SessionID != "" {
		sessionID, err = uuid.Parse(req.SessionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_session_id", "session_id must be a UUID")
			return
		}
	}

	result, err := h.orchestrator.Turn(r.Context(), chat.TurnRequest{
		ProjectID: projectID,
		SessionID: sessionID,
		Message:   req.Message,
	})
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrMissingProject), errors.Is(err, chat.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, "invalid_turn", err.Error())
		case errors.Is(err, chat.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "session_not_found", "session not found")
		case errors.Is(err, chat.ErrGenerateFailed):
			// The question is already persisted; the client may retry the
			// turn in the same session.
			writeError(w, http.StatusBadGateway, "generation_failed", "the model did not produce a reply")
		default:
			h.logger.Error("chat turn failed", "error", err)
			writeError(w, http.StatusInternalServerError, "turn_failed", "could not complete the chat turn")
		}
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		SessionID:    result.Session.ID.String(),
		SessionTitle: result.Session.Title,
		Reply:        toMessageResponse(result.Reply),
		Degraded:     result.Degraded,
	})
}
