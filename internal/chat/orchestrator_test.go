package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/internal/index"
	"github.com/inkwell-ai/inkwell/internal/log"
)

// mockStore is an in-memory SessionStore with call tracking.
type mockStore struct {
	sessions map[uuid.UUID]*Session
	messages []*Message
	history  []*Message

	createCalls   int
	historyLimit  int
	addMessageErr error
}

func newMockStore() *mockStore {
	return &mockStore{sessions: make(map[uuid.UUID]*Session)}
}

func (m *mockStore) CreateSession(_ context.Context, projectID uuid.UUID, title string) (*Session, error) {
	m.createCalls++
	sess := &Session{
		ID:        uuid.New(),
		ProjectID: projectID,
		Title:     title,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.sessions[sess.ID] = sess
	return sess, nil
}

func (m *mockStore) GetSession(_ context.Context, id uuid.UUID) (*Session, error) {
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (m *mockStore) AddMessage(_ context.Context, msg *Message) (*Message, error) {
	if m.addMessageErr != nil {
		return nil, m.addMessageErr
	}
	stored := *msg
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	m.messages = append(m.messages, &stored)
	return &stored, nil
}

func (m *mockStore) History(_ context.Context, _ uuid.UUID, limit int) ([]*Message, error) {
	m.historyLimit = limit
	return m.history, nil
}

type mockRetriever struct {
	retrieval *index.Retrieval
	err       error
	gotText   string
	gotK      int
}

func (m *mockRetriever) Query(_ context.Context, _ uuid.UUID, text string, topK int) (*index.Retrieval, error) {
	m.gotText = text
	m.gotK = topK
	if m.err != nil {
		return nil, m.err
	}
	return m.retrieval, nil
}

type mockCompleter struct {
	reply     string
	err       error
	gotSystem string
	gotMsgs   []*ai.Message
}

func (m *mockCompleter) Complete(_ context.Context, system string, msgs []*ai.Message) (string, error) {
	m.gotSystem = system
	m.gotMsgs = msgs
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func messageText(msg *ai.Message) string {
	var sb strings.Builder
	for _, p := range msg.Content {
		if p.Kind == ai.PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

func retrievalWith(chunks ...index.RetrievedChunk) *index.Retrieval {
	return &index.Retrieval{Chunks: chunks}
}

func newTestOrchestrator(t *testing.T, store SessionStore, r Retriever, c Completer) *Orchestrator {
	t.Helper()
	o, err := New(store, r, c, log.NewNop())
	require.NoError(t, err)
	return o
}

func TestTurnRejectsInvalidInput(t *testing.T) {
	o := newTestOrchestrator(t, newMockStore(), &mockRetriever{retrieval: retrievalWith()}, &mockCompleter{reply: "ok"})
	ctx := context.Background()

	_, err := o.Turn(ctx, TurnRequest{Message: "hello"})
	assert.ErrorIs(t, err, ErrMissingProject)

	_, err = o.Turn(ctx, TurnRequest{ProjectID: uuid.New(), Message: "  \n "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestTurnCreatesSessionWithDerivedTitle(t *testing.T) {
	store := newMockStore()
	o := newTestOrchestrator(t, store, &mockRetriever{retrieval: retrievalWith()}, &mockCompleter{reply: "answer"})

	long := strings.Repeat("why does spaced repetition work ", 5)
	res, err := o.Turn(context.Background(), TurnRequest{ProjectID: uuid.New(), Message: long})

	require.NoError(t, err)
	assert.Equal(t, 1, store.createCalls)
	assert.Len(t, []rune(res.Session.Title), TitleMaxLength)
	assert.True(t, strings.HasSuffix(res.Session.Title, "..."))
}

func TestTurnShortMessageTitleUnchanged(t *testing.T) {
	store := newMockStore()
	o := newTestOrchestrator(t, store, &mockRetriever{retrieval: retrievalWith()}, &mockCompleter{reply: "answer"})

	res, err := o.Turn(context.Background(), TurnRequest{ProjectID: uuid.New(), Message: "What is recall?"})

	require.NoError(t, err)
	assert.Equal(t, "What is recall?", res.Session.Title)
}

func TestTurnUsesExistingSession(t *testing.T) {
	store := newMockStore()
	projectID := uuid.New()
	sess, err := store.CreateSession(context.Background(), projectID, "existing")
	require.NoError(t, err)
	store.createCalls = 0

	o := newTestOrchestrator(t, store, &mockRetriever{retrieval: retrievalWith()}, &mockCompleter{reply: "answer"})

	res, err := o.Turn(context.Background(), TurnRequest{
		ProjectID: projectID,
		SessionID: sess.ID,
		Message:   "follow up",
	})

	require.NoError(t, err)
	assert.Equal(t, 0, store.createCalls)
	assert.Equal(t, sess.ID, res.Session.ID)
}

func TestTurnRejectsSessionFromOtherProject(t *testing.T) {
	store := newMockStore()
	sess, err := store.CreateSession(context.Background(), uuid.New(), "theirs")
	require.NoError(t, err)

	o := newTestOrchestrator(t, store, &mockRetriever{retrieval: retrievalWith()}, &mockCompleter{reply: "answer"})

	_, err = o.Turn(context.Background(), TurnRequest{
		ProjectID: uuid.New(),
		SessionID: sess.ID,
		Message:   "hello",
	})

	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestTurnAttachesCitationsForRetrievedChunks(t *testing.T) {
	chunk1 := index.RetrievedChunk{
		ID: uuid.New(), SourceID: uuid.New(), SourceTitle: "Memory study",
		Content: "Recall improves with testing.", Similarity: 0.9,
	}
	chunk2 := index.RetrievedChunk{
		ID: uuid.New(), SourceID: uuid.New(), SourceTitle: "Sleep research",
		Content: strings.Repeat("Sleep consolidates memory. ", 20), Similarity: 0.8,
	}

	store := newMockStore()
	o := newTestOrchestrator(t, store, &mockRetriever{retrieval: retrievalWith(chunk1, chunk2)}, &mockCompleter{reply: "answer"})

	res, err := o.Turn(context.Background(), TurnRequest{ProjectID: uuid.New(), Message: "how do I remember more?"})

	require.NoError(t, err)
	require.Len(t, res.Reply.Citations, 2)
	assert.Equal(t, chunk1.ID, res.Reply.Citations[0].ChunkID)
	assert.Equal(t, "Memory study", res.Reply.Citations[0].SourceTitle)
	assert.Equal(t, chunk1.Content, res.Reply.Citations[0].Snippet)
	assert.Equal(t, chunk2.ID, res.Reply.Citations[1].ChunkID)
	assert.LessOrEqual(t, len([]rune(res.Reply.Citations[1].Snippet)), SnippetMaxRunes)
	assert.True(t, strings.HasSuffix(res.Reply.Citations[1].Snippet, "..."))
}

func TestTurnZeroGroundingStillAnswers(t *testing.T) {
	store := newMockStore()
	completer := &mockCompleter{reply: "I don't have sources on that."}
	o := newTestOrchestrator(t, store, &mockRetriever{retrieval: retrievalWith()}, completer)

	res, err := o.Turn(context.Background(), TurnRequest{ProjectID: uuid.New(), Message: "unknown topic"})

	require.NoError(t, err)
	assert.Empty(t, res.Reply.Citations)

	// The model must be told there is no grounding, not left to guess.
	require.NotEmpty(t, completer.gotMsgs)
	final := messageText(completer.gotMsgs[len(completer.gotMsgs)-1])
	assert.Contains(t, final, noGroundingNotice)
	assert.Contains(t, final, "unknown topic")

	// Both the question and the reply are in the transcript.
	require.Len(t, store.messages, 2)
	assert.Equal(t, RoleUser, store.messages[0].Role)
	assert.Equal(t, RoleAssistant, store.messages[1].Role)
}

func TestTurnGenerationFailureKeepsUserMessage(t *testing.T) {
	store := newMockStore()
	o := newTestOrchestrator(t, store,
		&mockRetriever{retrieval: retrievalWith()},
		&mockCompleter{err: errors.New("model unavailable")})

	_, err := o.Turn(context.Background(), TurnRequest{ProjectID: uuid.New(), Message: "hello"})

	assert.ErrorIs(t, err, ErrGenerateFailed)
	require.Len(t, store.messages, 1)
	assert.Equal(t, RoleUser, store.messages[0].Role)
	assert.Equal(t, "hello", store.messages[0].Content)
}

func TestTurnRetrieverFailureDegrades(t *testing.T) {
	store := newMockStore()
	o := newTestOrchestrator(t, store,
		&mockRetriever{err: errors.New("index down")},
		&mockCompleter{reply: "best effort answer"})

	res, err := o.Turn(context.Background(), TurnRequest{ProjectID: uuid.New(), Message: "hello"})

	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Empty(t, res.Reply.Citations)
	require.Len(t, store.messages, 2)
}

func TestTurnIncludesBoundedHistory(t *testing.T) {
	store := newMockStore()
	store.history = []*Message{
		{Role: RoleUser, Content: "first question"},
		{Role: RoleAssistant, Content: "first answer"},
	}
	completer := &mockCompleter{reply: "second answer"}
	retriever := &mockRetriever{retrieval: retrievalWith(index.RetrievedChunk{
		ID: uuid.New(), SourceID: uuid.New(), SourceTitle: "Notes", Content: "relevant text",
	})}
	o := newTestOrchestrator(t, store, retriever, completer)

	_, err := o.Turn(context.Background(), TurnRequest{ProjectID: uuid.New(), Message: "second question"})

	require.NoError(t, err)
	assert.Equal(t, DefaultHistoryLimit, store.historyLimit)
	assert.Equal(t, DefaultTopK, retriever.gotK)
	assert.Equal(t, "second question", retriever.gotText)
	assert.Equal(t, systemPrompt, completer.gotSystem)

	require.Len(t, completer.gotMsgs, 3)
	assert.Equal(t, "first question", messageText(completer.gotMsgs[0]))
	assert.Equal(t, "first answer", messageText(completer.gotMsgs[1]))
	final := messageText(completer.gotMsgs[2])
	assert.Contains(t, final, "[Source: Notes]")
	assert.Contains(t, final, "relevant text")
	assert.Contains(t, final, "second question")
}

func TestGroundedQuestionFlagsDegradedRetrieval(t *testing.T) {
	retrieval := &index.Retrieval{
		Chunks:   []index.RetrievedChunk{{SourceTitle: "Draft", Content: "text"}},
		Degraded: true,
	}

	got := groundedQuestion(retrieval, "q")

	assert.Contains(t, got, degradedNotice)
}

func TestSnippetBoundsLongContent(t *testing.T) {
	long := strings.Repeat("x", SnippetMaxRunes*2)

	got := snippet(long)

	assert.Len(t, []rune(got), SnippetMaxRunes)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, "short", snippet("short"))
}
