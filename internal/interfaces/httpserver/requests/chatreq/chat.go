package chatreq

import (
	"strings"
	"time"

	"chatlima-server/internal/domain"
	"chatlima-server/internal/domain/chat"
	"chatlima-server/internal/domain/completion"
	"chatlima-server/internal/domain/mcpserver"
	"chatlima-server/internal/domain/messageproc"
)

// Message is a UI message as sent by the chat client.
type Message struct {
	ID        string      `json:"id"`
	Role      chat.Role   `json:"role"`
	Content   string      `json:"content"`
	Parts     []chat.Part `json:"parts,omitempty"`
	CreatedAt *time.Time  `json:"createdAt,omitempty"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	ID                string                     `json:"id"`
	ChatID            string                     `json:"chatId"`
	Messages          []Message                  `json:"messages"`
	SelectedModel     string                     `json:"selectedModel"`
	MCPServers        []mcpserver.ServerConfig   `json:"mcpServers"`
	WebSearch         completion.WebSearchOptions `json:"webSearch"`
	APIKeys           map[string]string          `json:"apiKeys"`
	Attachments       []messageproc.Attachment   `json:"attachments"`
	Temperature       *float32                   `json:"temperature"`
	MaxTokens         *int                       `json:"maxTokens"`
	SystemInstruction string                     `json:"systemInstruction"`
}

// ToDomain converts the body into a pipeline request for the principal.
func (r ChatRequest) ToDomain(principal domain.Principal, requestID string) completion.ChatRequest {
	chatID := strings.TrimSpace(r.ChatID)
	if chatID == "" {
		chatID = strings.TrimSpace(r.ID)
	}

	messages := make([]*chat.Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		msg := &chat.Message{
			ID:      m.ID,
			ChatID:  chatID,
			Role:    m.Role,
			Content: m.Content,
			Parts:   m.Parts,
		}
		if m.CreatedAt != nil {
			msg.CreatedAt = *m.CreatedAt
		}
		messages = append(messages, msg)
	}

	return completion.ChatRequest{
		UserID:            principal.ID,
		IsAnonymous:       principal.IsAnonymous,
		RequestID:         requestID,
		ChatID:            chatID,
		Messages:          messages,
		SelectedModel:     strings.TrimSpace(r.SelectedModel),
		MCPServers:        r.MCPServers,
		WebSearch:         r.WebSearch,
		APIKeys:           r.APIKeys,
		Attachments:       r.Attachments,
		Temperature:       r.Temperature,
		MaxTokens:         r.MaxTokens,
		SystemInstruction: r.SystemInstruction,
	}
}
