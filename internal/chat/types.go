package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	// TitleMaxLength bounds session titles derived from the first message.
	TitleMaxLength = 50

	// DefaultHistoryLimit is how many prior messages are loaded per turn.
	DefaultHistoryLimit = 10

	// DefaultTopK is how many chunks are retrieved as grounding per turn.
	DefaultTopK = 5

	// SnippetMaxRunes bounds the excerpt stored with each citation.
	SnippetMaxRunes = 200
)

var (
	// ErrMissingProject indicates a zero project ID was passed.
	ErrMissingProject = errors.New("project id is required")

	// ErrEmptyMessage indicates the user message was empty or whitespace.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrSessionNotFound indicates the session does not exist in the
	// requested project.
	ErrSessionNotFound = errors.New("session not found")

	// ErrGenerateFailed indicates the completion call failed. The user
	// message is already persisted when this is returned; retrying the
	// turn is safe.
	ErrGenerateFailed = errors.New("generation failed")
)

// Session groups an ordered sequence of messages within one project.
type Session struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Citation points an assistant message back at a chunk that was supplied
// as grounding for the turn. Citations are only ever built from chunks
// that were actually retrieved.
type Citation struct {
	ChunkID     uuid.UUID `json:"chunk_id"`
	SourceID    uuid.UUID `json:"source_id"`
	SourceTitle string    `json:"source_title"`
	Snippet     string    `json:"snippet"`
}

// Message is one turn in a session. Immutable once created.
type Message struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Role      string
	Content   string
	Citations []Citation
	CreatedAt time.Time
}
