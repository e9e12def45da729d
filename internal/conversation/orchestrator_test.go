package conversation_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/watssabi-intake/internal/conversation"
	"github.com/avvvet/watssabi-intake/internal/models"
	"github.com/avvvet/watssabi-intake/internal/prompts"
	"github.com/avvvet/watssabi-intake/internal/storage"
)

type fakeStore struct {
	sessions  map[string]models.History
	loadErr   error
	saveErr   error
	deleteErr error
	saves     int
	deletes   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]models.History)}
}

func (f *fakeStore) Load(_ context.Context, userID string) (models.History, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	history, ok := f.sessions[userID]
	if !ok {
		return nil, nil
	}
	return append(models.History(nil), history...), nil
}

func (f *fakeStore) Save(_ context.Context, userID string, history models.History, _ time.Duration) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.sessions[userID] = append(models.History(nil), history...)
	return nil
}

func (f *fakeStore) Delete(_ context.Context, userID string) error {
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.sessions, userID)
	return nil
}

type fakeProvider struct {
	response  string
	err       error
	histories []models.History
}

func (f *fakeProvider) Generate(_ context.Context, _ string, history models.History) (string, error) {
	f.histories = append(f.histories, append(models.History(nil), history...))
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeRepo struct {
	users           map[string]*storage.User
	conversations   []storage.Conversation
	collected       []storage.CollectedData
	userErr         error
	conversationErr error
	collectedErr    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[string]*storage.User)}
}

func (f *fakeRepo) GetOrCreateUser(_ context.Context, whatsappID string) (*storage.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	if user, ok := f.users[whatsappID]; ok {
		return user, nil
	}
	user := &storage.User{UserID: uuid.New(), WhatsappID: whatsappID}
	f.users[whatsappID] = user
	return user, nil
}

func (f *fakeRepo) CreateConversation(_ context.Context, user *storage.User, status string, history models.History) (*storage.Conversation, error) {
	if f.conversationErr != nil {
		return nil, f.conversationErr
	}
	raw, err := json.Marshal(history)
	if err != nil {
		return nil, err
	}
	conv := storage.Conversation{
		ConversationID:      uuid.New(),
		UserID:              user.UserID,
		Status:              status,
		ConversationHistory: raw,
	}
	f.conversations = append(f.conversations, conv)
	return &conv, nil
}

func (f *fakeRepo) CreateCollectedData(_ context.Context, user *storage.User, conv *storage.Conversation, fields map[string]any) (*storage.CollectedData, error) {
	if f.collectedErr != nil {
		return nil, f.collectedErr
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	data := storage.CollectedData{
		DataID:         uuid.New(),
		ConversationID: conv.ConversationID,
		UserID:         user.UserID,
		Data:           raw,
	}
	f.collected = append(f.collected, data)
	return &data, nil
}

func (f *fakeRepo) Transact(_ context.Context, fn func(storage.Repository) error) error {
	users := make(map[string]*storage.User, len(f.users))
	for id, user := range f.users {
		users[id] = user
	}
	conversations := append([]storage.Conversation(nil), f.conversations...)
	collected := append([]storage.CollectedData(nil), f.collected...)

	if err := fn(f); err != nil {
		f.users = users
		f.conversations = conversations
		f.collected = collected
		return err
	}
	return nil
}

func newOrchestrator(store *fakeStore, provider *fakeProvider, repo *fakeRepo) *conversation.Orchestrator {
	return conversation.NewOrchestrator(store, provider, repo, time.Hour, zerolog.Nop())
}

func seedSession(store *fakeStore, userID string) models.History {
	history := models.History{
		{Role: models.RoleUser, Content: "Hi"},
		{Role: models.RoleAssistant, Content: "Hello! What's your name?"},
		{Role: models.RoleUser, Content: "My name is"},
	}
	store.sessions[userID] = history
	return history
}

func TestProcessNewUserOngoingTurn(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{response: "Hello! What's your name?"}
	repo := newFakeRepo()
	orch := newOrchestrator(store, provider, repo)

	reply, err := orch.Process(context.Background(), "whatsapp:+15551230001", "Hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello! What's your name?", reply)

	saved := store.sessions["whatsapp:+15551230001"]
	require.Len(t, saved, 2)
	assert.Equal(t, models.Message{Role: models.RoleUser, Content: "Hi"}, saved[0])
	assert.Equal(t, models.Message{Role: models.RoleAssistant, Content: "Hello! What's your name?"}, saved[1])

	// Ongoing turns never touch durable storage.
	assert.Empty(t, repo.users)
	assert.Empty(t, repo.conversations)
	assert.Empty(t, repo.collected)
}

func TestProcessCompletionPersistsAndClearsSession(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{response: `{"reply":"Thanks John!","data":{"full_name":"John"}}`}
	repo := newFakeRepo()
	orch := newOrchestrator(store, provider, repo)

	userID := "whatsapp:+15551230002"
	seedSession(store, userID)

	reply, err := orch.Process(context.Background(), userID, "John")
	require.NoError(t, err)
	assert.Equal(t, "Thanks John!", reply)

	require.Contains(t, repo.users, userID)
	user := repo.users[userID]

	require.Len(t, repo.conversations, 1)
	conv := repo.conversations[0]
	assert.Equal(t, storage.StatusCompleted, conv.Status)
	assert.Equal(t, user.UserID, conv.UserID)

	var history models.History
	require.NoError(t, json.Unmarshal(conv.ConversationHistory, &history))
	require.Len(t, history, 5)
	assert.Equal(t, models.RoleAssistant, history[4].Role)
	assert.JSONEq(t, `{"reply":"Thanks John!","data":{"full_name":"John"}}`, history[4].Content)

	require.Len(t, repo.collected, 1)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(repo.collected[0].Data, &fields))
	assert.Equal(t, map[string]any{"full_name": "John"}, fields)

	// The session is gone once persistence succeeded.
	loaded, err := store.Load(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestProcessModelFailureMutatesNothing(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{err: errors.New("simulated timeout")}
	repo := newFakeRepo()
	orch := newOrchestrator(store, provider, repo)

	userID := "whatsapp:+15551230003"
	seeded := seedSession(store, userID)

	reply, err := orch.Process(context.Background(), userID, "Hi again")
	require.ErrorIs(t, err, conversation.ErrNoCompletion)
	assert.Empty(t, reply)

	assert.Equal(t, 0, store.saves)
	assert.Equal(t, 0, store.deletes)
	assert.Equal(t, seeded, store.sessions[userID])
	assert.Empty(t, repo.users)
	assert.Empty(t, repo.conversations)
}

func TestProcessCompletionWithEmptyDataSkipsCollected(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{response: `{"reply":"Done","data":{}}`}
	repo := newFakeRepo()
	orch := newOrchestrator(store, provider, repo)

	userID := "whatsapp:+15551230004"
	seedSession(store, userID)

	reply, err := orch.Process(context.Background(), userID, "done")
	require.NoError(t, err)
	assert.Equal(t, "Done", reply)

	require.Len(t, repo.conversations, 1)
	assert.Equal(t, storage.StatusCompleted, repo.conversations[0].Status)
	assert.Empty(t, repo.collected)
	assert.NotContains(t, store.sessions, userID)
}

func TestProcessPersistenceFailureKeepsSession(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{response: `{"reply":"Thanks!","data":{"full_name":"John"}}`}
	repo := newFakeRepo()
	repo.conversationErr = errors.New("database unavailable")
	orch := newOrchestrator(store, provider, repo)

	userID := "whatsapp:+15551230005"
	seeded := seedSession(store, userID)

	_, err := orch.Process(context.Background(), userID, "John")
	require.Error(t, err)
	assert.NotErrorIs(t, err, conversation.ErrNoCompletion)

	// The session survives so the next message retries the completion,
	// and the transaction rollback left no partial rows behind.
	assert.Equal(t, seeded, store.sessions[userID])
	assert.Equal(t, 0, store.deletes)
	assert.Empty(t, repo.users)
	assert.Empty(t, repo.conversations)
	assert.Empty(t, repo.collected)
}

func TestProcessSessionLoadFaultStartsFresh(t *testing.T) {
	store := newFakeStore()
	store.loadErr = errors.New("redis unreachable")
	provider := &fakeProvider{response: "Welcome! What's your name?"}
	repo := newFakeRepo()
	orch := newOrchestrator(store, provider, repo)

	reply, err := orch.Process(context.Background(), "whatsapp:+15551230006", "Hi")
	require.NoError(t, err)
	assert.Equal(t, "Welcome! What's your name?", reply)

	// The model saw only the fresh turn.
	require.Len(t, provider.histories, 1)
	require.Len(t, provider.histories[0], 1)
	assert.Equal(t, models.RoleUser, provider.histories[0][0].Role)
}

func TestProcessSessionSaveFaultDoesNotFailTurn(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("redis unreachable")
	provider := &fakeProvider{response: "Got it, and your budget?"}
	repo := newFakeRepo()
	orch := newOrchestrator(store, provider, repo)

	reply, err := orch.Process(context.Background(), "whatsapp:+15551230007", "Electronics")
	require.NoError(t, err)
	assert.Equal(t, "Got it, and your budget?", reply)
}

func TestProcessCompletionWithoutReplyFallsBack(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{response: `{"data":{"full_name":"John"}}`}
	repo := newFakeRepo()
	orch := newOrchestrator(store, provider, repo)

	userID := "whatsapp:+15551230008"
	seedSession(store, userID)

	reply, err := orch.Process(context.Background(), userID, "John")
	require.NoError(t, err)
	assert.Equal(t, prompts.CompletionThanks, reply)
	require.Len(t, repo.conversations, 1)
	assert.NotContains(t, store.sessions, userID)
}

func TestProcessDeleteFaultDoesNotFailCompletion(t *testing.T) {
	store := newFakeStore()
	store.deleteErr = errors.New("redis unreachable")
	provider := &fakeProvider{response: `{"reply":"Done","data":{"full_name":"John"}}`}
	repo := newFakeRepo()
	orch := newOrchestrator(store, provider, repo)

	userID := "whatsapp:+15551230009"
	seedSession(store, userID)

	reply, err := orch.Process(context.Background(), userID, "John")
	require.NoError(t, err)
	assert.Equal(t, "Done", reply)
	require.Len(t, repo.conversations, 1)
}

func TestProcessRejectsEmptyInput(t *testing.T) {
	orch := newOrchestrator(newFakeStore(), &fakeProvider{}, newFakeRepo())

	_, err := orch.Process(context.Background(), "", "Hi")
	require.Error(t, err)

	_, err = orch.Process(context.Background(), "whatsapp:+15551230010", "")
	require.Error(t, err)
}

func TestProcessTrimsProviderOutput(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{response: "\n  Hello! What's your name?  \n"}
	repo := newFakeRepo()
	orch := newOrchestrator(store, provider, repo)

	userID := "whatsapp:+15551230012"
	reply, err := orch.Process(context.Background(), userID, "Hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello! What's your name?", reply)

	saved := store.sessions[userID]
	require.Len(t, saved, 2)
	assert.Equal(t, "Hello! What's your name?", saved[1].Content)
}

func TestProcessSendsFullHistoryToModel(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{response: "And your budget?"}
	repo := newFakeRepo()
	orch := newOrchestrator(store, provider, repo)

	userID := "whatsapp:+15551230011"
	seedSession(store, userID)

	_, err := orch.Process(context.Background(), userID, "John")
	require.NoError(t, err)

	require.Len(t, provider.histories, 1)
	sent := provider.histories[0]
	require.Len(t, sent, 4)
	assert.Equal(t, models.Message{Role: models.RoleUser, Content: "John"}, sent[3])
}
