package messageproc

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"chatlima-server/internal/domain/catalog"
	"chatlima-server/internal/domain/chat"
	"chatlima-server/internal/utils/platformerrors"
)

// Attachment is an uploaded file referenced by URL or data URL.
type Attachment struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Name        string `json:"name,omitempty"`
}

// IsImage reports whether the attachment is an image by content type or data URL prefix.
func (a Attachment) IsImage() bool {
	if strings.HasPrefix(strings.ToLower(a.ContentType), "image/") {
		return true
	}
	return strings.HasPrefix(strings.ToLower(a.URL), "data:image/")
}

// ProcessResult is the outcome of merging attachments into the conversation.
type ProcessResult struct {
	Messages           []*chat.Message
	HasAttachments     bool
	DroppedAttachments int
}

// ChatMessageProcessingService validates incoming messages and merges attachments into them.
type ChatMessageProcessingService struct {
	log zerolog.Logger
}

func NewChatMessageProcessingService(log zerolog.Logger) *ChatMessageProcessingService {
	return &ChatMessageProcessingService{log: log.With().Str("component", "message-processing").Logger()}
}

// ProcessMessagesWithAttachments appends one image part per attachment to the last message.
// When the last message is not from the user the attachments are dropped and counted.
func (s *ChatMessageProcessingService) ProcessMessagesWithAttachments(ctx context.Context, messages []*chat.Message, attachments []Attachment, model catalog.ModelInfo) (*ProcessResult, error) {
	if len(attachments) == 0 {
		return &ProcessResult{Messages: messages}, nil
	}
	if !model.Capabilities.Vision {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("Model %s does not support image inputs", model.ID), nil, "9b1e4c7a-3d52-4f08-a6e9-2c7d0b5f8e14")
	}
	for i, a := range attachments {
		if strings.TrimSpace(a.URL) == "" {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
				fmt.Sprintf("attachment %d has no url", i), nil, "c4e8a2d6-1f73-4b9e-8d05-6a3f1c9e7b20")
		}
		if !a.IsImage() {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
				fmt.Sprintf("unsupported attachment type %q, only images are accepted", a.ContentType), nil, "5d2f9b3e-7a18-4c6d-b0e4-8f1a3c5d9e62")
		}
	}
	if len(messages) == 0 {
		return &ProcessResult{Messages: messages, DroppedAttachments: len(attachments)}, nil
	}

	last := messages[len(messages)-1]
	if last.Role != chat.RoleUser {
		s.log.Warn().
			Str("role", string(last.Role)).
			Int("attachments", len(attachments)).
			Msg("last message is not from the user, attachments dropped")
		return &ProcessResult{Messages: messages, DroppedAttachments: len(attachments)}, nil
	}

	parts := make([]chat.Part, 0, len(last.Parts)+len(attachments)+1)
	if len(last.Parts) == 0 {
		if last.Content != "" {
			parts = append(parts, chat.Part{Type: chat.PartText, Text: last.Content})
		}
	} else {
		parts = append(parts, last.Parts...)
	}
	for _, a := range attachments {
		parts = append(parts, chat.Part{Type: chat.PartImage, ImageURL: a.URL, MimeType: a.ContentType})
	}

	// copy so the caller's slice is not mutated
	updated := *last
	updated.Parts = parts
	out := make([]*chat.Message, len(messages))
	copy(out, messages)
	out[len(out)-1] = &updated

	s.log.Debug().Int("attachments", len(attachments)).Str("model", model.ID).Msg("attachments merged into last user message")
	return &ProcessResult{Messages: out, HasAttachments: true}, nil
}

// ValidateMessages rejects an empty conversation, unknown roles and messages without content or parts.
func (s *ChatMessageProcessingService) ValidateMessages(ctx context.Context, messages []*chat.Message) error {
	if len(messages) == 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "messages must not be empty", nil, "0e7b3a9c-5d21-4f86-a4c1-9b2e6d8f3a57")
	}
	for i, m := range messages {
		if m == nil {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, fmt.Sprintf("message %d is null", i), nil, "e2a6c9f1-8b43-4d7e-9c15-3f0b7a2d6e84")
		}
		if !m.Role.Valid() {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, fmt.Sprintf("message %d has invalid role %q", i, m.Role), nil, "7f3d1b8e-2c64-4a9f-b7e0-5d9c2a4f1b36")
		}
		if strings.TrimSpace(m.Content) == "" && len(m.Parts) == 0 {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, fmt.Sprintf("message %d has neither content nor parts", i), nil, "a8c2e5f7-4d19-4b3a-8e6c-1f7d9b3a5c28")
		}
	}
	return nil
}
