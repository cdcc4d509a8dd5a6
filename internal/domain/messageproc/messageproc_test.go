package messageproc

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlima-server/internal/domain/catalog"
	"chatlima-server/internal/domain/chat"
	"chatlima-server/internal/utils/platformerrors"
)

var (
	visionModel = catalog.ModelInfo{ID: "openrouter/openai/gpt-4o", Capabilities: catalog.Capabilities{Vision: true}}
	textModel   = catalog.ModelInfo{ID: "requesty/deepseek/deepseek-r1"}
	png         = Attachment{URL: "data:image/png;base64,AAAA", ContentType: "image/png", Name: "a.png"}
)

func TestProcessMessagesWithAttachments(t *testing.T) {
	svc := NewChatMessageProcessingService(zerolog.Nop())
	ctx := context.Background()

	t.Run("no attachments leaves messages untouched", func(t *testing.T) {
		msgs := []*chat.Message{{Role: chat.RoleUser, Content: "hi"}}
		res, err := svc.ProcessMessagesWithAttachments(ctx, msgs, nil, textModel)
		require.NoError(t, err)
		assert.False(t, res.HasAttachments)
		assert.Same(t, msgs[0], res.Messages[0])
	})

	t.Run("model without vision is rejected", func(t *testing.T) {
		msgs := []*chat.Message{{Role: chat.RoleUser, Content: "hi"}}
		_, err := svc.ProcessMessagesWithAttachments(ctx, msgs, []Attachment{png}, textModel)
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
		assert.Contains(t, err.Error(), "Model requesty/deepseek/deepseek-r1 does not support image inputs")
	})

	t.Run("content is synthesised into a text part", func(t *testing.T) {
		msgs := []*chat.Message{{Role: chat.RoleUser, Content: "what is this?"}}
		res, err := svc.ProcessMessagesWithAttachments(ctx, msgs, []Attachment{png, png}, visionModel)
		require.NoError(t, err)
		assert.True(t, res.HasAttachments)
		parts := res.Messages[0].Parts
		require.Len(t, parts, 3)
		assert.Equal(t, chat.PartText, parts[0].Type)
		assert.Equal(t, "what is this?", parts[0].Text)
		assert.Equal(t, chat.PartImage, parts[1].Type)
		assert.Equal(t, png.URL, parts[2].ImageURL)
		assert.Empty(t, msgs[0].Parts)
	})

	t.Run("attachments dropped when last message is not from the user", func(t *testing.T) {
		msgs := []*chat.Message{{Role: chat.RoleUser, Content: "hi"}, {Role: chat.RoleAssistant, Content: "hello"}}
		res, err := svc.ProcessMessagesWithAttachments(ctx, msgs, []Attachment{png}, visionModel)
		require.NoError(t, err)
		assert.False(t, res.HasAttachments)
		assert.Equal(t, 1, res.DroppedAttachments)
		assert.Empty(t, res.Messages[1].Parts)
	})

	t.Run("non-image attachment is rejected", func(t *testing.T) {
		msgs := []*chat.Message{{Role: chat.RoleUser, Content: "hi"}}
		_, err := svc.ProcessMessagesWithAttachments(ctx, msgs, []Attachment{{URL: "https://x/y.pdf", ContentType: "application/pdf"}}, visionModel)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
	})
}

func TestValidateMessages(t *testing.T) {
	svc := NewChatMessageProcessingService(zerolog.Nop())
	ctx := context.Background()

	assert.Error(t, svc.ValidateMessages(ctx, nil))
	assert.Error(t, svc.ValidateMessages(ctx, []*chat.Message{{Role: "robot", Content: "x"}}))
	assert.Error(t, svc.ValidateMessages(ctx, []*chat.Message{{Role: chat.RoleUser}}))
	assert.NoError(t, svc.ValidateMessages(ctx, []*chat.Message{
		{Role: chat.RoleSystem, Content: "be nice"},
		{Role: chat.RoleUser, Parts: []chat.Part{{Type: chat.PartText, Text: "hi"}}},
	}))
}
