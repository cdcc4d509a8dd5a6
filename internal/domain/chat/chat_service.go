package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chatlima-server/internal/domain/query"
	"chatlima-server/internal/utils/platformerrors"
	"chatlima-server/internal/utils/stringutils"
)

const titleMaxLength = 80

var messageIDNamespace = uuid.MustParse("5b1f3c8e-7a2d-4e96-b0c4-9d8e2f6a1c37")

// ChatDatabaseService persists chats and messages with ownership checks.
type ChatDatabaseService struct {
	chats    ChatRepository
	messages MessageRepository
	log      zerolog.Logger
	now      func() time.Time
}

func NewChatDatabaseService(chats ChatRepository, messages MessageRepository, log zerolog.Logger) *ChatDatabaseService {
	return &ChatDatabaseService{
		chats:    chats,
		messages: messages,
		log:      log.With().Str("component", "chat-db").Logger(),
		now:      time.Now,
	}
}

// CreateChatIfNotExists inserts the chat when absent and verifies ownership of an existing one.
func (s *ChatDatabaseService) CreateChatIfNotExists(ctx context.Context, chatID, userID, title string) (*Chat, bool, error) {
	if strings.TrimSpace(chatID) == "" || userID == "" {
		return nil, false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "chat id and user id are required", nil, "a3c8e1f5-2b7d-4e9a-8c6f-1d0b4a7e3c92")
	}
	if title == "" {
		title = stringutils.DefaultTitle
	}

	now := s.now().UTC()
	created, err := s.chats.InsertIfAbsent(ctx, &Chat{ID: chatID, UserID: userID, Title: title, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		return nil, false, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create chat")
	}

	existing, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		return nil, false, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load chat")
	}
	if existing == nil {
		return nil, false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal, "chat vanished after insert", nil, "6e2d9b4c-1a8f-4c3e-9b7d-5f0a2c8e4d16")
	}
	if existing.UserID != userID {
		return nil, false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "chat belongs to another user", nil, "f1b6a9d3-7c2e-4b8a-a5d0-3e9c6f2b1a47").WithCode("FORBIDDEN")
	}
	if created {
		s.log.Debug().Str("chat_id", chatID).Str("user_id", userID).Msg("chat created")
	}
	return existing, created, nil
}

// SaveChatAndMessages writes the chat row and then the messages. If the message write fails the chat row stays.
func (s *ChatDatabaseService) SaveChatAndMessages(ctx context.Context, chatID, userID string, messages []*Message, title string) error {
	if title == "" {
		title = TitleFromMessages(messages)
	}
	if _, _, err := s.CreateChatIfNotExists(ctx, chatID, userID, title); err != nil {
		return err
	}

	// new rows in one batch are spaced a microsecond apart so created_at keeps their order
	now := s.now().UTC()
	for i, m := range messages {
		m.ChatID = chatID
		if m.ID == "" {
			m.ID = StableMessageID(chatID, i, m)
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		}
	}

	if err := s.messages.Upsert(ctx, chatID, messages); err != nil {
		s.log.Error().Err(err).Str("chat_id", chatID).Int("messages", len(messages)).Msg("message write failed after chat write")
		return fmt.Errorf("failed to save messages for chat %s: %w", chatID, err)
	}
	if err := s.chats.Touch(ctx, chatID, now); err != nil {
		s.log.Warn().Err(err).Str("chat_id", chatID).Msg("failed to bump chat updated_at")
	}
	return nil
}

// StableMessageID derives the id of a message the client sent without one.
// Re-sent history maps to the same id on every turn, so the insert skips it.
func StableMessageID(chatID string, position int, m *Message) string {
	name := fmt.Sprintf("%s/%d/%s/%s", chatID, position, m.Role, m.Text())
	return uuid.NewSHA1(messageIDNamespace, []byte(name)).String()
}

// GetChat returns the chat when it exists and is owned by userID.
func (s *ChatDatabaseService) GetChat(ctx context.Context, chatID, userID string) (*Chat, error) {
	c, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load chat")
	}
	if c == nil || c.UserID != userID {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "Chat not found or access denied", nil, "2c7f4a1e-9d3b-4e6a-b8c5-0a1d7e4f9b63")
	}
	return c, nil
}

// GetMessages returns the messages of a chat in creation order.
func (s *ChatDatabaseService) GetMessages(ctx context.Context, chatID string) ([]*Message, error) {
	msgs, err := s.messages.ListByChat(ctx, chatID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load messages")
	}
	return msgs, nil
}

// ListChats pages through a user's chats, newest first.
func (s *ChatDatabaseService) ListChats(ctx context.Context, userID string, pagination *query.Pagination) ([]*Chat, int64, error) {
	chats, total, err := s.chats.ListByUser(ctx, userID, pagination)
	if err != nil {
		return nil, 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list chats")
	}
	return chats, total, nil
}

// DeleteChat removes an owned chat and its messages.
func (s *ChatDatabaseService) DeleteChat(ctx context.Context, chatID, userID string) error {
	deleted, err := s.chats.Delete(ctx, chatID, userID)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete chat")
	}
	if !deleted {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "Chat not found or access denied", nil, "8d4b2e7a-5f1c-4a9d-b3e6-7c0f2a9d5e18")
	}
	s.log.Info().Str("chat_id", chatID).Str("user_id", userID).Msg("chat deleted")
	return nil
}

// TitleFromMessages derives a title from the first user message.
func TitleFromMessages(messages []*Message) string {
	for _, m := range messages {
		if m.Role == RoleUser {
			return stringutils.GenerateTitle(m.Text(), titleMaxLength)
		}
	}
	return stringutils.DefaultTitle
}
