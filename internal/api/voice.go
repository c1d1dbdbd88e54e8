package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-ai/inkwell/internal/voice"
)

// PatternAggregator maintains voice pattern rollups. Satisfied by
// *voice.Aggregator.
type PatternAggregator interface {
	AddPatterns(ctx context.Context, projectID uuid.UUID, patterns []voice.Pattern) error
	Recompute(ctx context.Context, projectID uuid.UUID) ([]voice.AspectScore, error)
	Readiness(ctx context.Context, projectID uuid.UUID) (*voice.Readiness, error)
}

// VoiceHandler handles voice confidence endpoints.
type VoiceHandler struct {
	aggregator PatternAggregator
	logger     *slog.Logger
}

// NewVoiceHandler creates a voice handler.
func NewVoiceHandler(aggregator PatternAggregator, logger *slog.Logger) *VoiceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &VoiceHandler{aggregator: aggregator, logger: logger}
}

// RegisterRoutes registers voice routes.
func (h *VoiceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/voice/patterns", h.addPatterns)
	mux.HandleFunc("POST /api/voice/recompute", h.recompute)
	mux.HandleFunc("GET /api/voice/readiness", h.readiness)
}

// PatternRequest is one analyzer-extracted pattern.
type PatternRequest struct {
	Category     string  `json:"category"`
	Pattern      string  `json:"pattern"`
	Context      string  `json:"context,omitempty"`
	Frequency    int     `json:"frequency"`
	Confidence   float64 `json:"confidence"`
	TranscriptID string  `json:"transcript_id"`
}

// AddPatternsRequest is a batch of patterns for one project.
type AddPatternsRequest struct {
	ProjectID string           `json:"project_id"`
	Patterns  []PatternRequest `json:"patterns"`
}

// AspectScoreResponse is the JSON shape of one aspect rollup.
type AspectScoreResponse struct {
	Aspect          string    `json:"aspect"`
	CurrentScore    int       `json:"current_score"`
	TargetScore     int       `json:"target_score"`
	TranscriptCount int       `json:"transcript_count"`
	UpdatedAt       time.Time `json:"updated_at,omitzero"`
}

func toAspectScores(scores []voice.AspectScore) []AspectScoreResponse {
	resp := make([]AspectScoreResponse, 0, len(scores))
	for _, s := range scores {
		resp = append(resp, AspectScoreResponse{
			Aspect:          s.Aspect,
			CurrentScore:    s.CurrentScore,
			TargetScore:     s.TargetScore,
			TranscriptCount: s.TranscriptCount,
			UpdatedAt:       s.UpdatedAt,
		})
	}
	return resp
}

func (h *VoiceHandler) addPatterns(w http.ResponseWriter, r *http.Request) {
	var req AddPatternsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_project_id", "project_id must be a UUID")
		return
	}
	if len(req.Patterns) == 0 {
		writeError(w, http.StatusBadRequest, "empty_batch", "at least one pattern is required")
		return
	}

	patterns := make([]voice.Pattern, 0, len(req.Patterns))
	for i, p := range req.Patterns {
		transcriptID, err := uuid.Parse(p.TranscriptID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_transcript_id",
				fmt.Sprintf("pattern %d: transcript_id must be a UUID", i))
			return
		}
		patterns = append(patterns, voice.Pattern{
			ProjectID:    projectID,
			Category:     p.Category,
			Pattern:      p.Pattern,
			Context:      p.Context,
			Frequency:    p.Frequency,
			Confidence:   p.Confidence,
			TranscriptID: transcriptID,
		})
	}

	if err := h.aggregator.AddPatterns(r.Context(), projectID, patterns); err != nil {
		switch {
		case errors.Is(err, voice.ErrInvalidPattern), errors.Is(err, voice.ErrMissingProject):
			writeError(w, http.StatusBadRequest, "invalid_pattern", err.Error())
		default:
			h.logger.Error("adding voice patterns", "error", err)
			writeError(w, http.StatusInternalServerError, "ingest_failed", "could not store patterns")
		}
		return
	}

	readiness, err := h.aggregator.Readiness(r.Context(), projectID)
	if err != nil {
		h.logger.Error("loading readiness after ingest", "error", err)
		writeError(w, http.StatusInternalServerError, "readiness_failed", "patterns stored but readiness unavailable")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"ready":  readiness.Ready,
		"scores": toAspectScores(readiness.Scores),
	})
}

func (h *VoiceHandler) recompute(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.URL.Query().Get("project_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_project_id", "project_id query parameter must be a UUID")
		return
	}

	scores, err := h.aggregator.Recompute(r.Context(), projectID)
	if err != nil {
		h.logger.Error("recomputing voice confidence", "error", err)
		writeError(w, http.StatusInternalServerError, "recompute_failed", "could not recompute scores")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scores": toAspectScores(scores)})
}

func (h *VoiceHandler) readiness(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.URL.Query().Get("project_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_project_id", "project_id query parameter must be a UUID")
		return
	}

	readiness, err := h.aggregator.Readiness(r.Context(), projectID)
	if err != nil {
		h.logger.Error("loading voice readiness", "error", err)
		writeError(w, http.StatusInternalServerError, "readiness_failed", "could not load readiness")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ready":  readiness.Ready,
		"scores": toAspectScores(readiness.Scores),
	})
}
