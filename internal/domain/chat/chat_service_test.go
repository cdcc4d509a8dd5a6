package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlima-server/internal/domain/query"
	"chatlima-server/internal/utils/platformerrors"
)

type memoryStore struct {
	mu         sync.Mutex
	chats      map[string]*Chat
	messages   map[string][]*Message
	failUpsert error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{chats: map[string]*Chat{}, messages: map[string][]*Message{}}
}

func (s *memoryStore) InsertIfAbsent(_ context.Context, c *Chat) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[c.ID]; ok {
		return false, nil
	}
	cp := *c
	s.chats[c.ID] = &cp
	return true, nil
}

func (s *memoryStore) FindByID(_ context.Context, id string) (*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *memoryStore) Touch(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[id]; ok {
		c.UpdatedAt = at
	}
	return nil
}

func (s *memoryStore) ListByUser(_ context.Context, userID string, p *query.Pagination) ([]*Chat, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Chat
	for _, c := range s.chats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := int64(len(out))
	offset := p.OffsetOr(0)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit := p.LimitOr(len(out)); limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (s *memoryStore) Delete(_ context.Context, id, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok || c.UserID != userID {
		return false, nil
	}
	delete(s.chats, id)
	delete(s.messages, id)
	return true, nil
}

func (s *memoryStore) Upsert(_ context.Context, chatID string, messages []*Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpsert != nil {
		return s.failUpsert
	}
	seen := map[string]bool{}
	for _, m := range s.messages[chatID] {
		seen[m.ID] = true
	}
	for _, m := range messages {
		if !seen[m.ID] {
			s.messages[chatID] = append(s.messages[chatID], m)
		}
	}
	return nil
}

func (s *memoryStore) ListByChat(_ context.Context, chatID string) ([]*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Message(nil), s.messages[chatID]...), nil
}

func newTestService(store *memoryStore) *ChatDatabaseService {
	return NewChatDatabaseService(store, store, zerolog.Nop())
}

func TestCreateChatIfNotExists(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	c, created, err := svc.CreateChatIfNotExists(ctx, "chat-1", "alice", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "New Chat", c.Title)

	c, created, err = svc.CreateChatIfNotExists(ctx, "chat-1", "alice", "Other")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "New Chat", c.Title)

	_, _, err = svc.CreateChatIfNotExists(ctx, "chat-1", "mallory", "")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))
}

func TestSaveChatAndMessages(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	msgs := []*Message{
		{ID: "m1", Role: RoleUser, Content: "  Explain   goroutines\nplease "},
		{ID: "m2", Role: RoleAssistant, Content: "Sure."},
	}
	require.NoError(t, svc.SaveChatAndMessages(ctx, "chat-1", "alice", msgs, ""))

	c, err := svc.GetChat(ctx, "chat-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "Explain goroutines please", c.Title)

	// saving the same ids again does not duplicate rows
	require.NoError(t, svc.SaveChatAndMessages(ctx, "chat-1", "alice", msgs, ""))
	got, err := svc.GetMessages(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "chat-1", got[0].ChatID)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestSaveChatAndMessagesKeepsHistoryWithoutIDs(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	turn1 := []*Message{
		{Role: RoleUser, Content: "hi"},
		{ID: "a-1", Role: RoleAssistant, Content: "hello"},
	}
	require.NoError(t, svc.SaveChatAndMessages(ctx, "chat-1", "alice", turn1, ""))
	firstID := turn1[0].ID

	// the client re-sends the whole history, again without ids for its own messages
	turn2 := []*Message{
		{Role: RoleUser, Content: "hi"},
		{ID: "a-1", Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "tell me more"},
		{ID: "a-2", Role: RoleAssistant, Content: "more"},
	}
	require.NoError(t, svc.SaveChatAndMessages(ctx, "chat-1", "alice", turn2, ""))

	assert.Equal(t, firstID, turn2[0].ID)
	assert.NotEqual(t, turn2[0].ID, turn2[2].ID)

	got, err := svc.GetMessages(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"hi", "hello", "tell me more", "more"}, []string{got[0].Content, got[1].Content, got[2].Content, got[3].Content})
}

func TestStableMessageID(t *testing.T) {
	m := &Message{Role: RoleUser, Content: "hi"}
	id := StableMessageID("chat-1", 0, m)

	assert.Equal(t, id, StableMessageID("chat-1", 0, &Message{Role: RoleUser, Content: "hi"}))
	assert.NotEqual(t, id, StableMessageID("chat-2", 0, m))
	assert.NotEqual(t, id, StableMessageID("chat-1", 1, m))
	assert.NotEqual(t, id, StableMessageID("chat-1", 0, &Message{Role: RoleAssistant, Content: "hi"}))
}

func TestSaveChatAndMessages_MessageFailureKeepsChat(t *testing.T) {
	store := newMemoryStore()
	store.failUpsert = errors.New("connection reset")
	svc := newTestService(store)

	err := svc.SaveChatAndMessages(context.Background(), "chat-9", "alice", []*Message{{Role: RoleUser, Content: "hi"}}, "")
	require.Error(t, err)
	assert.Equal(t, "failed to save messages for chat chat-9: connection reset", err.Error())

	c, err := svc.GetChat(context.Background(), "chat-9", "alice")
	require.NoError(t, err)
	assert.Equal(t, "chat-9", c.ID)
}

func TestGetChatAndDeleteRequireOwnership(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()
	_, _, err := svc.CreateChatIfNotExists(ctx, "chat-1", "alice", "t")
	require.NoError(t, err)

	_, err = svc.GetChat(ctx, "chat-1", "bob")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	_, err = svc.GetChat(ctx, "missing", "alice")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	err = svc.DeleteChat(ctx, "chat-1", "bob")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	require.NoError(t, svc.DeleteChat(ctx, "chat-1", "alice"))
}

func TestListChatsPaginates(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, _, err := svc.CreateChatIfNotExists(ctx, id, "alice", "")
		require.NoError(t, err)
	}
	_, _, err := svc.CreateChatIfNotExists(ctx, "z", "bob", "")
	require.NoError(t, err)

	chats, total, err := svc.ListChats(ctx, "alice", query.NewPagination(2, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, chats, 1)
	assert.Equal(t, "c", chats[0].ID)
}

func TestMessageTextFallsBackToParts(t *testing.T) {
	m := &Message{Parts: []Part{{Type: PartText, Text: "one"}, {Type: PartImage, ImageURL: "x"}, {Type: PartText, Text: "two"}}}
	assert.Equal(t, "one\ntwo", m.Text())
}
