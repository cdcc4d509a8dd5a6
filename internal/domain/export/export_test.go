package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlima-server/internal/domain/chat"
	"chatlima-server/internal/utils/platformerrors"
)

func TestRenderChatPDF_EmptyChat(t *testing.T) {
	out, err := RenderChatPDF(&chat.Chat{ID: "c1", Title: "Empty"}, nil)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.True(t, bytes.Contains(out, []byte(EmptyChatText)))
}

func TestRenderChatPDF_EmptyMessageText(t *testing.T) {
	msgs := []*chat.Message{
		{Role: chat.RoleUser, Content: "Hello there"},
		{Role: chat.RoleAssistant, Content: ""},
	}
	out, err := RenderChatPDF(&chat.Chat{ID: "c1", Title: "Greeting"}, msgs)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(out, []byte("Hello there")))
	assert.True(t, bytes.Contains(out, []byte(EmptyMessageText)))
	assert.False(t, bytes.Contains(out, []byte(EmptyChatText)))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "chat-my-first-chat-abc.pdf", FileName(&chat.Chat{ID: "abc", Title: "My First Chat!"}))
	assert.Equal(t, "chat-untitled-abc.pdf", FileName(&chat.Chat{ID: "abc", Title: "???"}))

	long := FileName(&chat.Chat{ID: "x", Title: "a very long title that keeps going and going well past the fifty character cap"})
	assert.LessOrEqual(t, len(long), len("chat-")+50+len("-x.pdf"))
}

type stubReader struct {
	chat *chat.Chat
}

func (r stubReader) GetChat(ctx context.Context, chatID, userID string) (*chat.Chat, error) {
	if r.chat == nil || r.chat.ID != chatID || r.chat.UserID != userID {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "Chat not found or access denied", nil, "")
	}
	return r.chat, nil
}

func (r stubReader) GetMessages(context.Context, string) ([]*chat.Message, error) {
	return []*chat.Message{{Role: chat.RoleUser, Content: "hi", CreatedAt: time.Now()}}, nil
}

func TestExportPDFChecksOwnership(t *testing.T) {
	svc := NewChatExportService(stubReader{chat: &chat.Chat{ID: "c1", UserID: "alice", Title: "Notes"}}, zerolog.Nop())

	doc, err := svc.ExportPDF(context.Background(), "c1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "chat-notes-c1.pdf", doc.FileName)

	_, err = svc.ExportPDF(context.Background(), "c1", "bob")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}
