package export

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"

	"chatlima-server/internal/domain/chat"
	"chatlima-server/internal/utils/platformerrors"
	"chatlima-server/internal/utils/stringutils"
)

const (
	EmptyChatText    = "No messages found in this chat."
	EmptyMessageText = "[No text content]"

	fileTitleMaxLen = 50
)

// ChatReader loads an owned chat and its messages.
type ChatReader interface {
	GetChat(ctx context.Context, chatID, userID string) (*chat.Chat, error)
	GetMessages(ctx context.Context, chatID string) ([]*chat.Message, error)
}

// Document is a rendered export ready to be served.
type Document struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ChatExportService renders owned chats as PDF documents.
type ChatExportService struct {
	chats ChatReader
	log   zerolog.Logger
	now   func() time.Time
}

func NewChatExportService(chats ChatReader, log zerolog.Logger) *ChatExportService {
	return &ChatExportService{chats: chats, log: log.With().Str("component", "chat-export").Logger(), now: time.Now}
}

// ExportPDF renders the chat when userID owns it. A missing or foreign chat is NOT_FOUND.
func (s *ChatExportService) ExportPDF(ctx context.Context, chatID, userID string) (*Document, error) {
	c, err := s.chats.GetChat(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	messages, err := s.chats.GetMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}

	content, err := render(c, messages, s.now())
	if err != nil {
		s.log.Error().Err(err).Str("chat_id", chatID).Msg("pdf generation failed")
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal, "Failed to generate PDF", err, "e7c3a9f1-5b28-4d6e-8a0c-2f9d4b7e1c35")
	}
	return &Document{FileName: FileName(c), ContentType: "application/pdf", Content: content}, nil
}

// RenderChatPDF renders the chat title, export date and each message as role header plus text.
func RenderChatPDF(c *chat.Chat, messages []*chat.Message) ([]byte, error) {
	return render(c, messages, time.Now())
}

// FileName returns chat-<sanitized title>-<id>.pdf.
func FileName(c *chat.Chat) string {
	title := stringutils.Slugify(c.Title, fileTitleMaxLen)
	if title == "" {
		title = "untitled"
	}
	return "chat-" + title + "-" + c.ID + ".pdf"
}

func render(c *chat.Chat, messages []*chat.Message, exportedAt time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	// uncompressed so the text stays searchable in the raw document
	pdf.SetCompression(false)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetMargins(15, 15, 15)
	pdf.SetCreator("ChatLima", true)
	pdf.SetCreationDate(exportedAt)

	title := c.Title
	if strings.TrimSpace(title) == "" {
		title = stringutils.DefaultTitle
	}
	pdf.SetTitle(title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 8, tr(title), "", "L", false)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(0, 6, "Exported on "+exportedAt.UTC().Format("January 2, 2006 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	if len(messages) == 0 {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.MultiCell(0, 6, EmptyChatText, "", "L", false)
	}

	for _, m := range messages {
		if m == nil {
			continue
		}
		pdf.SetFont("Helvetica", "B", 11)
		header := roleLabel(m.Role)
		if !m.CreatedAt.IsZero() {
			header += "  " + m.CreatedAt.UTC().Format("2006-01-02 15:04")
		}
		pdf.CellFormat(0, 7, header, "", 1, "L", false, 0, "")

		pdf.SetFont("Helvetica", "", 10)
		text := strings.TrimSpace(m.Text())
		if text == "" {
			text = EmptyMessageText
		}
		pdf.MultiCell(0, 5, tr(text), "", "L", false)
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func roleLabel(role chat.Role) string {
	switch role {
	case chat.RoleUser:
		return "User"
	case chat.RoleAssistant:
		return "Assistant"
	case chat.RoleSystem:
		return "System"
	case chat.RoleTool:
		return "Tool"
	}
	return string(role)
}
