package chathandler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"chatlima-server/internal/domain/completion"
	"chatlima-server/internal/infrastructure/observability"
	middleware "chatlima-server/internal/interfaces/httpserver/middlewares"
	"chatlima-server/internal/interfaces/httpserver/requests/chatreq"
	"chatlima-server/internal/interfaces/httpserver/responses"
)

// ChatPipeline prepares and streams one chat turn.
type ChatPipeline interface {
	Prepare(ctx context.Context, req completion.ChatRequest) (*completion.PreparedChat, error)
	Run(ctx context.Context, p *completion.PreparedChat, sink completion.EventSink) (*completion.Result, error)
}

// ChatHandler serves the streaming chat endpoint.
type ChatHandler struct {
	pipeline ChatPipeline
	logger   zerolog.Logger
}

func NewChatHandler(pipeline *completion.ChatCompletionService, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		pipeline: pipeline,
		logger:   logger.With().Str("component", "chat-handler").Logger(),
	}
}

// PostChat runs every gate, then streams the turn as an AI SDK data stream.
// Gate failures are plain JSON errors because nothing has been written yet.
func (h *ChatHandler) PostChat(c *gin.Context) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok || principal.ID == "" {
		responses.HandleAppError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	var body chatreq.ChatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		responses.HandleAppError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err.Error())
		return
	}

	ctx := c.Request.Context()
	req := body.ToDomain(principal, middleware.RequestIDFromContext(c))

	h.logger.Info().
		Str("user_id", req.UserID).
		Str("chat_id", req.ChatID).
		Str("model", req.SelectedModel).
		Int("messages", len(req.Messages)).
		Int("mcp_servers", len(req.MCPServers)).
		Bool("web_search", req.WebSearch.Enabled).
		Msg("chat request received")

	prepared, err := h.pipeline.Prepare(ctx, req)
	if err != nil {
		observability.RecordError(ctx, err)
		responses.HandleError(c, err, "Failed to process chat request")
		return
	}
	observability.AddSpanAttributes(ctx,
		attribute.String("chat.id", prepared.ChatID),
		attribute.String("chat.model", prepared.Model.ID),
	)

	header := c.Writer.Header()
	header.Set("Content-Type", "text/plain; charset=utf-8")
	header.Set("Cache-Control", "no-cache")
	header.Set("X-Accel-Buffering", "no")
	header.Set(completion.DataStreamHeader, completion.DataStreamHeaderVersion)
	c.Status(http.StatusOK)

	result, err := h.pipeline.Run(ctx, prepared, completion.NewDataStreamWriter(c.Writer))
	if err != nil {
		h.logger.Warn().Err(err).Str("chat_id", prepared.ChatID).Msg("chat stream ended with error")
		return
	}
	h.logger.Info().
		Str("chat_id", result.ChatID).
		Str("finish_reason", result.FinishReason).
		Int("steps", result.Steps).
		Int64("credits_charged", result.CreditsCharged).
		Msg("chat stream finished")
}
