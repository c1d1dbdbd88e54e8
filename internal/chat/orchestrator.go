// Package chat turns user questions into grounded, cited assistant
// replies within persistent sessions.
//
// A turn is strictly sequential: the user message is persisted before
// retrieval, retrieval before generation, generation before the reply is
// stored. A generation failure therefore leaves the conversation valid
// and resumable, with the question already in the transcript.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/inkwell-ai/inkwell/internal/index"
)

// SessionStore is the session persistence the orchestrator needs.
// Satisfied by *Store.
type SessionStore interface {
	CreateSession(ctx context.Context, projectID uuid.UUID, title string) (*Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	AddMessage(ctx context.Context, msg *Message) (*Message, error)
	History(ctx context.Context, sessionID uuid.UUID, limit int) ([]*Message, error)
}

// Retriever finds grounding chunks for a question. Satisfied by
// *index.Index.
type Retriever interface {
	Query(ctx context.Context, projectID uuid.UUID, text string, topK int) (*index.Retrieval, error)
}

// Completer is the narrow generation capability: one request, one text
// reply. Satisfied by *GenkitCompleter.
type Completer interface {
	Complete(ctx context.Context, system string, msgs []*ai.Message) (string, error)
}

// TurnRequest is one user message aimed at a project's material.
// SessionID may be zero to start a new session.
type TurnRequest struct {
	ProjectID uuid.UUID
	SessionID uuid.UUID
	Message   string
}

// TurnResult is the outcome of a completed turn.
type TurnResult struct {
	Session     *Session
	UserMessage *Message
	Reply       *Message

	// Degraded is true when grounding was served without ranking.
	Degraded bool
}

// Orchestrator runs grounded chat turns.
//
// Orchestrator is safe for concurrent use; concurrent turns in the same
// session are not serialized, both replies are persisted independently.
type Orchestrator struct {
	store     SessionStore
	retriever Retriever
	completer Completer
	logger    *slog.Logger

	historyLimit int
	topK         int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHistoryLimit sets how many prior messages are loaded per turn.
func WithHistoryLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.historyLimit = n
		}
	}
}

// WithTopK sets how many grounding chunks are retrieved per turn.
func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

// New creates an Orchestrator.
func New(store SessionStore, retriever Retriever, completer Completer, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		store:        store,
		retriever:    retriever,
		completer:    completer,
		logger:       logger,
		historyLimit: DefaultHistoryLimit,
		topK:         DefaultTopK,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Turn executes one grounded chat turn.
func (o *Orchestrator) Turn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if req.ProjectID == uuid.Nil {
		return nil, ErrMissingProject
	}
	question := strings.TrimSpace(req.Message)
	if question == "" {
		return nil, ErrEmptyMessage
	}

	sess, err := o.resolveSession(ctx, req, question)
	if err != nil {
		return nil, err
	}

	// History is loaded before the new user message lands, so it holds
	// only prior turns.
	history, err := o.store.History(ctx, sess.ID, o.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	userMsg, err := o.store.AddMessage(ctx, &Message{
		SessionID: sess.ID,
		Role:      RoleUser,
		Content:   question,
	})
	if err != nil {
		return nil, fmt.Errorf("persisting user message: %w", err)
	}

	retrieval := o.retrieve(ctx, req.ProjectID, question)

	prompt := buildPrompt(history, retrieval, question)
	answer, err := o.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		o.logger.Error("completion failed",
			"session_id", sess.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGenerateFailed, err)
	}

	reply, err := o.store.AddMessage(ctx, &Message{
		SessionID: sess.ID,
		Role:      RoleAssistant,
		Content:   answer,
		Citations: buildCitations(retrieval),
	})
	if err != nil {
		return nil, fmt.Errorf("persisting reply: %w", err)
	}

	o.logger.Info("chat turn completed",
		"session_id", sess.ID,
		"grounding_chunks", len(retrieval.Chunks),
		"degraded", retrieval.Degraded)

	return &TurnResult{
		Session:     sess,
		UserMessage: userMsg,
		Reply:       reply,
		Degraded:    retrieval.Degraded,
	}, nil
}

// resolveSession loads the requested session or lazily creates one titled
// after the first message.
func (o *Orchestrator) resolveSession(ctx context.Context, req TurnRequest, question string) (*Session, error) {
	if req.SessionID == uuid.Nil {
		sess, err := o.store.CreateSession(ctx, req.ProjectID, deriveTitle(question))
		if err != nil {
			return nil, fmt.Errorf("creating session: %w", err)
		}
		return sess, nil
	}

	sess, err := o.store.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.ProjectID != req.ProjectID {
		// A session from another project is indistinguishable from a
		// missing one to the caller.
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// retrieve fetches grounding, absorbing retrieval errors into an empty
// degraded result: a broken index must not abort the turn.
func (o *Orchestrator) retrieve(ctx context.Context, projectID uuid.UUID, question string) *index.Retrieval {
	retrieval, err := o.retriever.Query(ctx, projectID, question, o.topK)
	if err != nil {
		o.logger.Warn("retrieval failed, continuing without grounding",
			"project_id", projectID, "error", err)
		return &index.Retrieval{Degraded: true}
	}
	return retrieval
}

// buildCitations records every retrieved chunk that was offered to the
// model as grounding for the reply.
func buildCitations(retrieval *index.Retrieval) []Citation {
	if retrieval == nil || len(retrieval.Chunks) == 0 {
		return nil
	}
	citations := make([]Citation, 0, len(retrieval.Chunks))
	for _, c := range retrieval.Chunks {
		citations = append(citations, Citation{
			ChunkID:     c.ID,
			SourceID:    c.SourceID,
			SourceTitle: c.SourceTitle,
			Snippet:     snippet(c.Content),
		})
	}
	return citations
}
