package chat

import (
	"context"
	"strings"
	"time"

	"chatlima-server/internal/domain/query"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	}
	return false
}

// PartType tags a message segment.
type PartType string

const (
	PartText           PartType = "text"
	PartImage          PartType = "image"
	PartToolInvocation PartType = "tool-invocation"
	PartReasoning      PartType = "reasoning"
)

// ToolInvocation records a tool call and, once executed, its result.
type ToolInvocation struct {
	ToolCallID string         `json:"toolCallId"`
	ToolName   string         `json:"toolName"`
	Args       map[string]any `json:"args,omitempty"`
	Result     any            `json:"result,omitempty"`
	State      string         `json:"state"`
}

// Part is one ordered segment of a message.
type Part struct {
	Type           PartType        `json:"type"`
	Text           string          `json:"text,omitempty"`
	ImageURL       string          `json:"image,omitempty"`
	MimeType       string          `json:"mimeType,omitempty"`
	Reasoning      string          `json:"reasoning,omitempty"`
	ToolInvocation *ToolInvocation `json:"toolInvocation,omitempty"`
}

// Chat is a conversation owned by exactly one user.
type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one persisted turn. Messages are immutable once written.
type Message struct {
	ID                   string    `json:"id"`
	ChatID               string    `json:"chatId"`
	Role                 Role      `json:"role"`
	Content              string    `json:"content"`
	Parts                []Part    `json:"parts,omitempty"`
	HasWebSearch         bool      `json:"hasWebSearch,omitempty"`
	WebSearchContextSize string    `json:"webSearchContextSize,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
}

// Text returns the plain text of the message, joining text parts when Content is empty.
func (m *Message) Text() string {
	if strings.TrimSpace(m.Content) != "" {
		return m.Content
	}
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText && p.Text != "" {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// ChatRepository persists chats and their messages.
type ChatRepository interface {
	// InsertIfAbsent inserts the chat unless a row with the same id exists.
	InsertIfAbsent(ctx context.Context, c *Chat) (created bool, err error)
	// FindByID returns nil when the chat does not exist.
	FindByID(ctx context.Context, id string) (*Chat, error)
	Touch(ctx context.Context, id string, at time.Time) error
	ListByUser(ctx context.Context, userID string, pagination *query.Pagination) ([]*Chat, int64, error)
	Delete(ctx context.Context, id, userID string) (bool, error)
}

// MessageRepository persists messages.
type MessageRepository interface {
	// Upsert writes messages keyed by id; existing ids are left unchanged.
	Upsert(ctx context.Context, chatID string, messages []*Message) error
	ListByChat(ctx context.Context, chatID string) ([]*Message, error)
}
