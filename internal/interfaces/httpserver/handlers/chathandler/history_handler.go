package chathandler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"chatlima-server/internal/domain/chat"
	"chatlima-server/internal/domain/export"
	"chatlima-server/internal/domain/query"
	middleware "chatlima-server/internal/interfaces/httpserver/middlewares"
	"chatlima-server/internal/interfaces/httpserver/requests"
	"chatlima-server/internal/interfaces/httpserver/responses"
)

// ChatHistory reads and deletes owned chats.
type ChatHistory interface {
	GetChat(ctx context.Context, chatID, userID string) (*chat.Chat, error)
	GetMessages(ctx context.Context, chatID string) ([]*chat.Message, error)
	ListChats(ctx context.Context, userID string, pagination *query.Pagination) ([]*chat.Chat, int64, error)
	DeleteChat(ctx context.Context, chatID, userID string) error
}

// PDFExporter renders an owned chat as a PDF.
type PDFExporter interface {
	ExportPDF(ctx context.Context, chatID, userID string) (*export.Document, error)
}

// ChatWithMessages is the body of GET /api/chats/:id.
type ChatWithMessages struct {
	*chat.Chat
	Messages []*chat.Message `json:"messages"`
}

// HistoryHandler serves the stored chat endpoints.
type HistoryHandler struct {
	chats    ChatHistory
	exporter PDFExporter
	logger   zerolog.Logger
}

func NewHistoryHandler(chats *chat.ChatDatabaseService, exporter *export.ChatExportService, logger zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{
		chats:    chats,
		exporter: exporter,
		logger:   logger.With().Str("component", "chat-history-handler").Logger(),
	}
}

func (h *HistoryHandler) ListChats(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	pagination, err := requests.GetPaginationFromQuery(c)
	if err != nil {
		responses.HandleError(c, err, "Invalid pagination")
		return
	}

	chats, total, err := h.chats.ListChats(c.Request.Context(), userID, pagination)
	if err != nil {
		responses.HandleError(c, err, "Failed to list chats")
		return
	}
	c.JSON(http.StatusOK, responses.ListResponse[*chat.Chat]{
		Data:  chats,
		Total: total,
		Page:  pagination.Page(),
		Limit: pagination.LimitOr(query.DefaultLimit),
	})
}

func (h *HistoryHandler) GetChat(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	chatID := c.Param("id")

	found, err := h.chats.GetChat(ctx, chatID, userID)
	if err != nil {
		responses.HandleError(c, err, "Chat not found or access denied")
		return
	}
	messages, err := h.chats.GetMessages(ctx, chatID)
	if err != nil {
		responses.HandleError(c, err, "Failed to load messages")
		return
	}
	if messages == nil {
		messages = []*chat.Message{}
	}
	c.JSON(http.StatusOK, ChatWithMessages{Chat: found, Messages: messages})
}

func (h *HistoryHandler) DeleteChat(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.chats.DeleteChat(c.Request.Context(), c.Param("id"), userID); err != nil {
		responses.HandleError(c, err, "Failed to delete chat")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ExportPDF streams the chat as an attachment.
func (h *HistoryHandler) ExportPDF(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	chatID := c.Param("id")

	doc, err := h.exporter.ExportPDF(c.Request.Context(), chatID, userID)
	if err != nil {
		responses.HandleError(c, err, "Failed to generate PDF")
		return
	}

	h.logger.Info().Str("chat_id", chatID).Int("bytes", len(doc.Content)).Msg("chat exported")
	c.Header("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	c.Header("Content-Length", strconv.Itoa(len(doc.Content)))
	c.Data(http.StatusOK, doc.ContentType, doc.Content)
}

func requireUser(c *gin.Context) (string, bool) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok || principal.ID == "" {
		responses.HandleAppError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return "", false
	}
	return principal.ID, true
}
