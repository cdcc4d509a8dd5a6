package chatreq

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlima-server/internal/domain"
	"chatlima-server/internal/domain/chat"
)

func TestToDomain(t *testing.T) {
	body := `{
		"id": " chat-7 ",
		"selectedModel": " requesty/anthropic/claude-3-5-sonnet ",
		"messages": [
			{"id": "m1", "role": "user", "content": "hello", "createdAt": "2025-03-01T10:00:00Z"},
			{"id": "m2", "role": "assistant", "parts": [{"type": "text", "text": "hi"}]}
		],
		"temperature": 0.2,
		"systemInstruction": "be brief"
	}`
	var req ChatRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	got := req.ToDomain(domain.Principal{ID: "u1", IsAnonymous: true}, "req-1")

	assert.Equal(t, "chat-7", got.ChatID)
	assert.Equal(t, "requesty/anthropic/claude-3-5-sonnet", got.SelectedModel)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, got.IsAnonymous)
	assert.Equal(t, "req-1", got.RequestID)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "chat-7", got.Messages[0].ChatID)
	assert.Equal(t, 2025, got.Messages[0].CreatedAt.Year())
	assert.Equal(t, chat.RoleAssistant, got.Messages[1].Role)
	assert.True(t, got.Messages[1].CreatedAt.IsZero())
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.2, *got.Temperature, 1e-6)
	assert.Nil(t, got.MaxTokens)
}

func TestToDomainPrefersChatID(t *testing.T) {
	req := ChatRequest{ID: "client-generated", ChatID: "stored"}
	assert.Equal(t, "stored", req.ToDomain(domain.Principal{ID: "u1"}, "").ChatID)
}
