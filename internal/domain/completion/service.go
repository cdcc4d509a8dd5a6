// Package completion runs a streaming chat turn from request validation to persistence.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"chatlima-server/internal/domain/catalog"
	"chatlima-server/internal/domain/chat"
	"chatlima-server/internal/domain/credit"
	"chatlima-server/internal/domain/mcpserver"
	"chatlima-server/internal/domain/messageproc"
	"chatlima-server/internal/domain/pricing"
	"chatlima-server/internal/domain/tokenusage"
	"chatlima-server/internal/domain/usagelimit"
	"chatlima-server/internal/domain/websearch"
	"chatlima-server/internal/infrastructure/metrics"
	"chatlima-server/internal/infrastructure/observability"
	"chatlima-server/internal/utils/platformerrors"
)

const (
	maxSteps      = 5
	finishTimeout = 30 * time.Second
)

// Tool invocation states stored on assistant message parts.
const (
	ToolStateCall   = "call"
	ToolStateResult = "result"
)

type ModelResolver interface {
	GetModel(ctx context.Context, id string) (*catalog.ModelInfo, error)
}

type UsageLimiter interface {
	CheckAndIncrement(ctx context.Context, subject usagelimit.Subject) (*usagelimit.UsageDecision, error)
}

type ChatStore interface {
	CreateChatIfNotExists(ctx context.Context, chatID, userID, title string) (*chat.Chat, bool, error)
	SaveChatAndMessages(ctx context.Context, chatID, userID string, messages []*chat.Message, title string) error
	DeleteChat(ctx context.Context, chatID, userID string) error
}

type UsageRecorder interface {
	RecordUsage(ctx context.Context, usage *tokenusage.TokenUsage) error
}

type PriceResolver interface {
	ActivePricing(ctx context.Context, modelID string) pricing.Quote
}

type ActivityTracker interface {
	TouchLastActive(ctx context.Context, id string)
}

// WebSearchOptions is the client web search toggle.
type WebSearchOptions struct {
	Enabled     bool   `json:"enabled"`
	ContextSize string `json:"contextSize,omitempty"`
}

// ChatRequest is one chat turn as received from the client.
type ChatRequest struct {
	UserID            string
	IsAnonymous       bool
	RequestID         string
	ChatID            string
	Messages          []*chat.Message
	SelectedModel     string
	MCPServers        []mcpserver.ServerConfig
	WebSearch         WebSearchOptions
	APIKeys           map[string]string
	Attachments       []messageproc.Attachment
	Temperature       *float32
	MaxTokens         *int
	SystemInstruction string
}

// PreparedChat is a request that passed every gate and is ready to stream.
type PreparedChat struct {
	Request   ChatRequest
	ChatID    string
	MessageID string
	Title     string
	Model     catalog.ModelInfo
	OwnKey    string
	Messages  []*chat.Message
	WebSearch websearch.WebSearchResult
	Limits    *usagelimit.UsageDecision
	Tools     *mcpserver.InitResult
}

// Close releases MCP sessions. Run does this itself; Close is for prepared chats that never run.
func (p *PreparedChat) Close() {
	if p != nil && p.Tools != nil && p.Tools.Cleanup != nil {
		p.Tools.Cleanup()
	}
}

// Result summarises a finished turn.
type Result struct {
	ChatID         string
	MessageID      string
	FinishReason   string
	Usage          Usage
	Steps          int
	CreditsCharged int64
	Text           string
}

// ChatCompletionService drives the streaming chat pipeline.
type ChatCompletionService struct {
	models    ModelResolver
	limits    UsageLimiter
	credits   *credit.CreditService
	webSearch *websearch.ChatWebSearchService
	mcp       *mcpserver.ChatMCPServerService
	messages  *messageproc.ChatMessageProcessingService
	chats     ChatStore
	usage     UsageRecorder
	prices    PriceResolver
	users     ActivityTracker
	provider  ProviderClient
	log       zerolog.Logger
	now       func() time.Time
}

func NewChatCompletionService(
	models ModelResolver,
	limits UsageLimiter,
	credits *credit.CreditService,
	webSearch *websearch.ChatWebSearchService,
	mcp *mcpserver.ChatMCPServerService,
	messages *messageproc.ChatMessageProcessingService,
	chats ChatStore,
	usage UsageRecorder,
	prices PriceResolver,
	users ActivityTracker,
	provider ProviderClient,
	log zerolog.Logger,
) *ChatCompletionService {
	return &ChatCompletionService{
		models:    models,
		limits:    limits,
		credits:   credits,
		webSearch: webSearch,
		mcp:       mcp,
		messages:  messages,
		chats:     chats,
		usage:     usage,
		prices:    prices,
		users:     users,
		provider:  provider,
		log:       log.With().Str("component", "chat-completion").Logger(),
		now:       time.Now,
	}
}

// Prepare runs every gate in order: validation, model resolution, access, attachments,
// MCP configuration, web search, chat ownership, usage limits and MCP initialisation.
func (s *ChatCompletionService) Prepare(ctx context.Context, req ChatRequest) (*PreparedChat, error) {
	if req.UserID == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized, "Authentication required", nil, "4e1a7c3d-9b02-4f6e-8d5a-2c7b1e9f0a34").WithCode("UNAUTHORIZED")
	}
	if err := s.messages.ValidateMessages(ctx, req.Messages); err != nil {
		return nil, err
	}
	chatID := strings.TrimSpace(req.ChatID)
	if chatID == "" {
		chatID = uuid.NewString()
	}

	model, err := s.models.GetModel(ctx, req.SelectedModel)
	if err != nil {
		return nil, err
	}
	ownKey := OwnKeyFor(model.Provider, req.APIKeys)

	cache := s.credits.NewRequestCache()
	var balance int64
	if !req.IsAnonymous {
		if balance, err = cache.Balance(ctx, req.UserID); err != nil {
			s.log.Warn().Err(err).Str("user_id", req.UserID).Msg("credit balance unavailable, treating as zero")
			balance = 0
		}
	}

	access, err := s.credits.CheckAccess(ctx, cache, credit.Account{UserID: req.UserID, IsAnonymous: req.IsAnonymous}, *model, ownKey != "")
	if err != nil {
		return nil, err
	}
	if !access.Allowed {
		if req.IsAnonymous {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, access.Reason, nil, "a7d2e9f1-3c48-4b6a-9e0d-5f1b8c2a7e63").WithCode("SIGN_IN_REQUIRED")
		}
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypePaymentRequired, access.Reason, nil, "c3f8a1e6-7d29-4b50-8a4e-1e6d9b3c5f07", map[string]any{
			"balance": access.Balance,
			"model":   model.ID,
		}).WithCode("INSUFFICIENT_CREDITS")
	}

	processed, err := s.messages.ProcessMessagesWithAttachments(ctx, req.Messages, req.Attachments, *model)
	if err != nil {
		return nil, err
	}
	if err := s.mcp.ValidateServers(req.MCPServers, model.ID); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, err.Error(), err, "8f4c2b7e-6a15-4d93-a0e8-3b9d5c1f7a42").WithCode("INVALID_PARAMETERS")
	}

	ws := s.webSearch.ValidateAndConfigureWebSearch(ctx, websearch.WebSearchInput{
		Requested:              req.WebSearch.Enabled,
		ContextSize:            req.WebSearch.ContextSize,
		IsAnonymous:            req.IsAnonymous,
		HasOwnKey:              ownKey != "",
		Credits:                balance,
		ModelSupportsWebSearch: model.Capabilities.WebSearch,
		UserID:                 req.UserID,
	})

	title := chat.TitleFromMessages(processed.Messages)
	_, created, err := s.chats.CreateChatIfNotExists(ctx, chatID, req.UserID, title)
	if err != nil {
		return nil, err
	}

	// The message is counted only once every other gate has passed.
	var decision *usagelimit.UsageDecision
	if ownKey == "" {
		decision, err = s.limits.CheckAndIncrement(ctx, usagelimit.Subject{UserID: req.UserID, IsAnonymous: req.IsAnonymous, HasCredits: balance > 0})
		if err == nil && !decision.Allowed {
			err = platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeRateLimited, decision.Reason, nil, "e5b0c7d2-1a93-4f8e-b6c4-7d2a0f9e3b18", map[string]any{
				"dailyUsed":    decision.DailyUsed,
				"dailyLimit":   decision.DailyLimit,
				"monthlyUsed":  decision.MonthlyUsed,
				"monthlyLimit": decision.MonthlyLimit,
				"resetAt":      decision.ResetAt,
			}).WithCode("MESSAGE_LIMIT_REACHED")
		}
		if err != nil {
			if created {
				if delErr := s.chats.DeleteChat(ctx, chatID, req.UserID); delErr != nil {
					s.log.Warn().Err(delErr).Str("chat_id", chatID).Msg("failed to remove empty chat after rejection")
				}
			}
			return nil, err
		}
	}
	s.users.TouchLastActive(ctx, req.UserID)

	tools, err := s.mcp.InitializeMCPServers(ctx, req.MCPServers, model.ID)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, err.Error(), err, "2b9e6d1a-5c47-4f80-9a3d-7e1c4b8f0d65").WithCode("INVALID_PARAMETERS")
	}

	return &PreparedChat{
		Request:   req,
		ChatID:    chatID,
		MessageID: uuid.NewString(),
		Title:     title,
		Model:     *model,
		OwnKey:    ownKey,
		Messages:  processed.Messages,
		WebSearch: ws,
		Limits:    decision,
		Tools:     tools,
	}, nil
}

// stepOutcome is what one provider call produced.
type stepOutcome struct {
	text         strings.Builder
	calls        []EventToolCall
	finishReason string
	usage        Usage
	err          error
}

// Run streams the prepared chat into sink, executing MCP tools for up to maxSteps provider calls.
// Finish handling (usage, charges, persistence) completes before the final finish line is written.
// The returned error reports a provider failure that was already sent to the sink.
func (s *ChatCompletionService) Run(ctx context.Context, p *PreparedChat, sink EventSink) (*Result, error) {
	defer p.Close()

	ctx, span := observability.StartSpan(ctx, "chat.stream")
	defer span.End()
	span.SetAttributes(
		attribute.String("model", p.Model.ID),
		attribute.String("provider", string(p.Model.Provider)),
		attribute.String("chat_id", p.ChatID),
	)
	metrics.IncrementActiveStreams(p.Model.ID)
	defer metrics.DecrementActiveStreams(p.Model.ID)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := s.log.With().Str("chat_id", p.ChatID).Str("user_id", p.Request.UserID).Str("model", p.Model.ID).Logger()
	sinkFailed := false
	emit := func(err error) {
		if err != nil && !sinkFailed {
			sinkFailed = true
			log.Info().Err(err).Msg("client went away, stopping stream")
			cancel()
		}
	}

	var toolSet map[string]mcpserver.Tool
	if p.Tools != nil {
		toolSet = p.Tools.Tools
	}
	conversation := ToProviderMessages(p.Request.SystemInstruction, p.Messages)
	tools := ToProviderTools(toolSet)

	acc := &assistantAccumulator{}
	var total Usage
	var streamErr error
	finishReason := ""
	steps := 0
	started := s.now()

	for step := 0; step < maxSteps && !sinkFailed; step++ {
		steps++
		emit(sink.StartStep(p.MessageID))

		out := s.streamStep(streamCtx, p, conversation, tools, acc, sink, emit)
		total = total.Add(out.usage)
		finishReason = out.finishReason
		if out.err != nil {
			streamErr = out.err
			break
		}

		continueLoop := out.finishReason == FinishReasonToolCalls && len(out.calls) > 0 && step < maxSteps-1
		if len(out.calls) > 0 {
			conversation = append(conversation, s.executeTools(streamCtx, toolSet, out, acc, sink, emit, log)...)
		}
		emit(sink.FinishStep(ClientFinishReason(out.finishReason), out.usage, false))
		if !continueLoop {
			break
		}
	}
	metrics.RecordLLMDuration(p.Model.ID, string(p.Model.Provider), s.now().Sub(started).Seconds())

	if streamErr != nil && !sinkFailed {
		finishReason = FinishReasonError
		observability.RecordError(ctx, streamErr)
		metrics.RecordProviderError(string(p.Model.Provider), "stream")
		log.Error().Err(streamErr).Msg("provider stream failed")
		emit(sink.Error(userFacingError(streamErr)))
	}

	result := s.finish(ctx, p, acc, total)
	result.FinishReason = ClientFinishReason(finishReason)
	result.Steps = steps

	if !sinkFailed {
		emit(sink.Finish(result.FinishReason, total))
	}
	log.Info().
		Int("steps", steps).
		Int("prompt_tokens", total.PromptTokens).
		Int("completion_tokens", total.CompletionTokens).
		Int64("credits_charged", result.CreditsCharged).
		Str("finish_reason", result.FinishReason).
		Msg("chat completion finished")

	if streamErr != nil && !sinkFailed {
		return result, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, "provider stream failed", streamErr, "d1a6f3c8-4e72-4b09-9c5d-8a2e7f0b6d31")
	}
	return result, nil
}

func (s *ChatCompletionService) streamStep(
	ctx context.Context,
	p *PreparedChat,
	conversation []openai.ChatCompletionMessage,
	tools []openai.Tool,
	acc *assistantAccumulator,
	sink EventSink,
	emit func(error),
) *stepOutcome {
	out := &stepOutcome{}
	events, err := s.provider.Stream(ctx, StreamRequest{
		Provider:             p.Model.Provider,
		Model:                p.Model.UpstreamID,
		Messages:             conversation,
		Tools:                tools,
		Temperature:          p.Request.Temperature,
		MaxTokens:            p.Request.MaxTokens,
		WebSearch:            p.WebSearch.Enabled,
		WebSearchContextSize: p.WebSearch.ContextSize,
		APIKey:               p.OwnKey,
	})
	if err != nil {
		out.err = err
		return out
	}

	first := true
	started := s.now()
	for ev := range events {
		switch e := ev.(type) {
		case EventToken:
			if first {
				first = false
				metrics.RecordFirstToken(p.Model.ID, string(p.Model.Provider), s.now().Sub(started).Seconds())
			}
			out.text.WriteString(e.Text)
			acc.appendText(e.Text)
			emit(sink.Text(e.Text))
		case EventReasoning:
			acc.appendReasoning(e.Text)
			emit(sink.Reasoning(e.Text))
		case EventToolCall:
			out.calls = append(out.calls, e)
			emit(sink.ToolCall(e.ID, e.Name, parseArgs(e.Args)))
		case EventStop:
			out.finishReason = e.Reason
		case EventFinish:
			if e.FinishReason != "" {
				out.finishReason = e.FinishReason
			}
			out.usage = e.Usage
		case EventError:
			out.err = e.Err
		}
	}
	if out.finishReason == "" && out.err == nil {
		out.finishReason = FinishReasonStop
	}
	return out
}

// executeTools runs the step's tool calls and returns the messages that continue the conversation.
func (s *ChatCompletionService) executeTools(
	ctx context.Context,
	tools map[string]mcpserver.Tool,
	out *stepOutcome,
	acc *assistantAccumulator,
	sink EventSink,
	emit func(error),
	log zerolog.Logger,
) []openai.ChatCompletionMessage {
	assistant := openai.ChatCompletionMessage{Role: string(chat.RoleAssistant), Content: out.text.String()}
	results := make([]openai.ChatCompletionMessage, 0, len(out.calls))
	for _, call := range out.calls {
		args := parseArgs(call.Args)
		var result string
		tool, ok := tools[call.Name]
		if !ok {
			result = fmt.Sprintf("Error: tool %s is not available", call.Name)
		} else {
			res, err := tool.Execute(ctx, args)
			observability.AddSpanEvent(ctx, "mcp.tool_call",
				attribute.String("tool", call.Name),
				attribute.String("server", tool.Server),
				attribute.Bool("ok", err == nil),
			)
			if err != nil {
				log.Warn().Err(err).Str("tool", call.Name).Str("server", tool.Server).Msg("MCP tool call failed")
				result = "Error: " + err.Error()
			} else {
				result = res
			}
		}
		emit(sink.ToolResult(call.ID, result))
		acc.addToolInvocation(chat.ToolInvocation{
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Args:       args,
			Result:     result,
			State:      ToolStateResult,
		})

		assistant.ToolCalls = append(assistant.ToolCalls, openai.ToolCall{
			ID:       call.ID,
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: call.Name, Arguments: call.Args},
		})
		results = append(results, openai.ChatCompletionMessage{Role: string(chat.RoleTool), ToolCallID: call.ID, Content: result})
	}
	return append([]openai.ChatCompletionMessage{assistant}, results...)
}

// finish records usage, charges credits and persists the turn. It outlives request cancellation.
func (s *ChatCompletionService) finish(ctx context.Context, p *PreparedChat, acc *assistantAccumulator, usage Usage) *Result {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	log := s.log.With().Str("chat_id", p.ChatID).Str("user_id", p.Request.UserID).Str("model", p.Model.ID).Logger()
	result := &Result{ChatID: p.ChatID, MessageID: p.MessageID, Usage: usage, Text: acc.text()}

	quote := s.prices.ActivePricing(ctx, p.Model.ID)
	if usage.Total() > 0 && p.Model.Premium && p.OwnKey == "" && !p.Request.IsAnonymous {
		amount := s.credits.CostForUsage(credit.Pricing{InputPerToken: quote.InputPerToken, OutputPerToken: quote.OutputPerToken}, usage.PromptTokens, usage.CompletionTokens)
		charged, err := s.credits.ChargeUpTo(ctx, p.Request.UserID, amount, credit.ReasonUsage, p.ChatID)
		if err != nil {
			log.Warn().Err(err).Int64("amount", amount).Msg("failed to charge credits for completion")
		}
		if charged > 0 {
			result.CreditsCharged += charged
			metrics.RecordCreditsCharged(credit.ReasonUsage, charged)
		}
	}
	if p.WebSearch.Enabled && p.WebSearch.Cost > 0 && !acc.empty() {
		charged, err := s.credits.ChargeUpTo(ctx, p.Request.UserID, p.WebSearch.Cost, credit.ReasonWebSearch, p.ChatID)
		if err != nil {
			log.Warn().Err(err).Int64("amount", p.WebSearch.Cost).Msg("failed to charge credits for web search")
		}
		if charged > 0 {
			result.CreditsCharged += charged
			metrics.RecordCreditsCharged(credit.ReasonWebSearch, charged)
		}
	}

	if usage.Total() > 0 {
		chatID := p.ChatID
		record := &tokenusage.TokenUsage{
			UserID:           p.Request.UserID,
			ChatID:           &chatID,
			Model:            p.Model.ID,
			Provider:         string(p.Model.Provider),
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.Total(),
			EstimatedCostUSD: quote.InputPerToken.Mul(decimal.NewFromInt(int64(usage.PromptTokens))).
				Add(quote.OutputPerToken.Mul(decimal.NewFromInt(int64(usage.CompletionTokens)))),
			CreditsCharged: result.CreditsCharged,
			Stream:         true,
		}
		if p.Request.RequestID != "" {
			requestID := p.Request.RequestID
			record.RequestID = &requestID
		}
		if err := s.usage.RecordUsage(ctx, record); err != nil {
			log.Warn().Err(err).Msg("failed to record token usage")
		}
	}

	messages := append([]*chat.Message(nil), p.Messages...)
	if !acc.empty() {
		messages = append(messages, &chat.Message{
			ID:                   p.MessageID,
			ChatID:               p.ChatID,
			Role:                 chat.RoleAssistant,
			Content:              acc.text(),
			Parts:                acc.parts,
			HasWebSearch:         p.WebSearch.Enabled,
			WebSearchContextSize: webSearchSize(p.WebSearch),
			CreatedAt:            s.now().UTC(),
		})
	}
	if err := s.chats.SaveChatAndMessages(ctx, p.ChatID, p.Request.UserID, messages, p.Title); err != nil {
		log.Error().Err(err).Msg("failed to persist chat")
	}
	return result
}

// OwnKeyFor returns the caller-supplied key for the provider. Keys may be named by provider
// ("openrouter") or by their environment variable ("OPENROUTER_API_KEY").
func OwnKeyFor(provider catalog.Provider, keys map[string]string) string {
	if len(keys) == 0 {
		return ""
	}
	name := string(provider)
	for _, k := range []string{name, strings.ToUpper(name) + "_API_KEY"} {
		if v := strings.TrimSpace(keys[k]); v != "" {
			return v
		}
	}
	return ""
}

func parseArgs(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}
	}
	return args
}

func webSearchSize(ws websearch.WebSearchResult) string {
	if !ws.Enabled {
		return ""
	}
	return ws.ContextSize
}

func userFacingError(err error) string {
	var pe *platformerrors.PlatformError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "The request was cancelled"
	}
	return "An error occurred while generating the response"
}
