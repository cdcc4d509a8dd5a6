package dbschema

import (
	"time"

	"gorm.io/datatypes"

	"chatlima-server/internal/domain/chat"
)

type Chat struct {
	ID        string `gorm:"type:varchar(64);primaryKey"`
	UserID    string `gorm:"type:varchar(64);not null;index:idx_chats_user_updated"`
	Title     string `gorm:"type:varchar(256);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time `gorm:"index:idx_chats_user_updated"`
}

func (Chat) TableName() string { return "chats" }

func NewSchemaChat(c *chat.Chat) *Chat {
	return &Chat{
		ID:        c.ID,
		UserID:    c.UserID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (c *Chat) EtoD() *chat.Chat {
	return &chat.Chat{
		ID:        c.ID,
		UserID:    c.UserID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// Message stores parts as a JSONB array in the order they were produced.
type Message struct {
	ID                   string                         `gorm:"type:varchar(64);primaryKey"`
	ChatID               string                         `gorm:"type:varchar(64);not null;index:idx_messages_chat_created"`
	Role                 string                         `gorm:"type:varchar(20);not null"`
	Content              string                         `gorm:"type:text;not null"`
	Parts                datatypes.JSONSlice[chat.Part] `gorm:"type:jsonb;not null"`
	HasWebSearch         bool                           `gorm:"not null;default:false"`
	WebSearchContextSize *string                        `gorm:"type:varchar(10)"`
	CreatedAt            time.Time                      `gorm:"index:idx_messages_chat_created"`
}

func (Message) TableName() string { return "messages" }

func NewSchemaMessage(chatID string, m *chat.Message) *Message {
	parts := m.Parts
	if parts == nil {
		parts = []chat.Part{}
	}
	var size *string
	if m.WebSearchContextSize != "" {
		s := m.WebSearchContextSize
		size = &s
	}
	return &Message{
		ID:                   m.ID,
		ChatID:               chatID,
		Role:                 string(m.Role),
		Content:              m.Content,
		Parts:                datatypes.NewJSONSlice(parts),
		HasWebSearch:         m.HasWebSearch,
		WebSearchContextSize: size,
		CreatedAt:            m.CreatedAt,
	}
}

func (m *Message) EtoD() *chat.Message {
	msg := &chat.Message{
		ID:           m.ID,
		ChatID:       m.ChatID,
		Role:         chat.Role(m.Role),
		Content:      m.Content,
		Parts:        []chat.Part(m.Parts),
		HasWebSearch: m.HasWebSearch,
		CreatedAt:    m.CreatedAt,
	}
	if m.WebSearchContextSize != nil {
		msg.WebSearchContextSize = *m.WebSearchContextSize
	}
	return msg
}
