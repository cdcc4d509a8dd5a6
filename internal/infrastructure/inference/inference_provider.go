package inference

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"resty.dev/v3"

	"chatlima-server/internal/config"
	"chatlima-server/internal/domain/catalog"
	"chatlima-server/internal/domain/completion"
	"chatlima-server/internal/infrastructure/metrics"
	"chatlima-server/internal/infrastructure/observability"
	httpclients "chatlima-server/internal/utils/httpclients"
	chatclient "chatlima-server/internal/utils/httpclients/chat"
	"chatlima-server/internal/utils/platformerrors"
)

// Endpoint is one upstream router.
type Endpoint struct {
	Provider catalog.Provider
	BaseURL  string
	APIKey   string
}

type providerClients struct {
	endpoint    Endpoint
	completions *chatclient.ChatCompletionClient
	models      *chatclient.ChatModelClient
}

// InferenceProvider streams completions from OpenRouter and Requesty and downloads their model lists.
type InferenceProvider struct {
	clients map[catalog.Provider]*providerClients
	log     zerolog.Logger
}

// NewInferenceProvider builds clients for the configured routers.
func NewInferenceProvider(cfg *config.Config, log zerolog.Logger) *InferenceProvider {
	return NewInferenceProviderWithEndpoints([]Endpoint{
		{Provider: catalog.ProviderOpenRouter, BaseURL: cfg.OpenRouterBaseURL, APIKey: cfg.OpenRouterAPIKey},
		{Provider: catalog.ProviderRequesty, BaseURL: cfg.RequestyBaseURL, APIKey: cfg.RequestyAPIKey},
	}, cfg.ProviderTimeout, log)
}

func NewInferenceProviderWithEndpoints(endpoints []Endpoint, timeout time.Duration, log zerolog.Logger) *InferenceProvider {
	ip := &InferenceProvider{
		clients: make(map[catalog.Provider]*providerClients, len(endpoints)),
		log:     log.With().Str("component", "inference-provider").Logger(),
	}
	for _, ep := range endpoints {
		if strings.TrimSpace(ep.BaseURL) == "" {
			continue
		}
		name := fmt.Sprintf("%sClient", ep.Provider)
		// Streams may run for minutes, so the provider timeout only covers the wait for headers there.
		streaming := httpclients.NewStreamingClient(name, timeout)
		listing := httpclients.NewClient(name)
		if timeout > 0 {
			listing.SetTimeout(timeout)
		}
		for _, client := range []*resty.Client{streaming, listing} {
			if ep.Provider == catalog.ProviderOpenRouter {
				client.SetHeader("HTTP-Referer", "https://chatlima.com")
				client.SetHeader("X-Title", "ChatLima")
			}
		}
		ip.clients[ep.Provider] = &providerClients{
			endpoint:    ep,
			completions: chatclient.NewChatCompletionClient(streaming, name, ep.BaseURL),
			models:      chatclient.NewChatModelClient(listing, name, ep.BaseURL),
		}
	}
	return ip
}

// Providers lists the routers with a base URL, in a stable order.
func (ip *InferenceProvider) Providers() []catalog.Provider {
	out := make([]catalog.Provider, 0, len(ip.clients))
	for p := range ip.clients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (ip *InferenceProvider) clientsFor(ctx context.Context, provider catalog.Provider) (*providerClients, error) {
	c, ok := ip.clients[provider]
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation, "unsupported provider "+string(provider), nil, "6b2d9e4f-1c78-4a35-8f0e-7d3a5c9b2e14")
	}
	return c, nil
}

// FetchModelList implements catalog.ModelListFetcher.
func (ip *InferenceProvider) FetchModelList(ctx context.Context, provider catalog.Provider) ([]byte, error) {
	c, err := ip.clientsFor(ctx, provider)
	if err != nil {
		return nil, err
	}
	body, err := c.models.ListModelsRaw(ctx, c.endpoint.APIKey)
	metrics.SetProviderHealth(string(provider), err == nil)
	if err != nil {
		metrics.RecordProviderError(string(provider), "list_models")
		return nil, err
	}
	return body, nil
}

type webPlugin struct {
	ID         string `json:"id"`
	MaxResults int    `json:"max_results,omitempty"`
}

type webSearchOptions struct {
	SearchContextSize string `json:"search_context_size"`
}

// completionBody adds router extensions to the OpenAI request.
type completionBody struct {
	openai.ChatCompletionRequest
	Plugins          []webPlugin       `json:"plugins,omitempty"`
	WebSearchOptions *webSearchOptions `json:"web_search_options,omitempty"`
}

func buildBody(req completion.StreamRequest) completionBody {
	body := completionBody{
		ChatCompletionRequest: openai.ChatCompletionRequest{
			Model:         req.Model,
			Messages:      req.Messages,
			Stream:        true,
			StreamOptions: &openai.StreamOptions{IncludeUsage: true},
		},
	}
	if len(req.Tools) > 0 {
		body.Tools = req.Tools
		body.ToolChoice = "auto"
	}
	if req.Temperature != nil {
		body.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		body.MaxTokens = *req.MaxTokens
	}
	if req.WebSearch && req.Provider == catalog.ProviderOpenRouter {
		body.Plugins = []webPlugin{{ID: "web"}}
		body.WebSearchOptions = &webSearchOptions{SearchContextSize: req.WebSearchContextSize}
	}
	return body
}

// Stream implements completion.ProviderClient. Chunks are translated into stream events;
// tool call fragments are assembled by index and emitted once the provider reports a finish reason.
func (ip *InferenceProvider) Stream(ctx context.Context, req completion.StreamRequest) (<-chan completion.StreamEvent, error) {
	c, err := ip.clientsFor(ctx, req.Provider)
	if err != nil {
		return nil, err
	}
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = c.endpoint.APIKey
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeInternal, "no API key configured for "+string(req.Provider), nil, "2f7c1a9e-5d84-4b36-9e0a-8c4f6b1d3a75")
	}

	ctx, span := observability.StartSpan(ctx, "provider.stream")
	span.SetAttributes(
		attribute.String("provider", string(req.Provider)),
		attribute.String("model", req.Model),
		attribute.Int("messages", len(req.Messages)),
		attribute.Int("tools", len(req.Tools)),
	)

	chunks, err := c.completions.StreamChunks(ctx, apiKey, buildBody(req), chatclient.WithAcceptEncodingIdentity())
	if err != nil {
		observability.RecordError(ctx, err)
		metrics.RecordProviderError(string(req.Provider), "request")
		span.End()
		return nil, err
	}

	events := make(chan completion.StreamEvent, 100)
	go func() {
		defer span.End()
		defer close(events)
		translate(ctx, chunks, events)
	}()
	return events, nil
}

type toolCallAccumulator struct {
	ID        string
	Name      string
	Arguments strings.Builder
}

// translate converts chunks into events. It always ends with EventFinish or EventError.
func translate(ctx context.Context, chunks <-chan chatclient.ChunkResult, events chan<- completion.StreamEvent) {
	send := func(ev completion.StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	calls := map[int]*toolCallAccumulator{}
	var order []int
	flushCalls := func() bool {
		for _, idx := range order {
			acc := calls[idx]
			args := acc.Arguments.String()
			if strings.TrimSpace(args) == "" {
				args = "{}"
			}
			if !send(completion.EventToolCall{ID: acc.ID, Name: acc.Name, Args: args}) {
				return false
			}
		}
		calls = map[int]*toolCallAccumulator{}
		order = nil
		return true
	}

	finishReason := ""
	var usage completion.Usage
	for res := range chunks {
		if res.Err != nil {
			send(completion.EventError{Err: res.Err})
			return
		}
		chunk := res.Chunk
		for _, choice := range chunk.Choices {
			if text := choice.Delta.Reasoning + choice.Delta.ReasoningContent; text != "" {
				if !send(completion.EventReasoning{Text: text}) {
					return
				}
			}
			if choice.Delta.Content != "" {
				if !send(completion.EventToken{Text: choice.Delta.Content}) {
					return
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				idx := len(order)
				if tc.Index != nil {
					idx = *tc.Index
				}
				acc, ok := calls[idx]
				if !ok {
					acc = &toolCallAccumulator{}
					calls[idx] = acc
					order = append(order, idx)
				}
				if tc.ID != "" {
					acc.ID = tc.ID
				}
				if tc.Function.Name != "" {
					acc.Name = tc.Function.Name
				}
				acc.Arguments.WriteString(tc.Function.Arguments)
			}
			if choice.FinishReason != "" && finishReason == "" {
				finishReason = choice.FinishReason
				if !flushCalls() || !send(completion.EventStop{Reason: finishReason}) {
					return
				}
			}
		}
		if chunk.Usage != nil {
			usage = completion.Usage{PromptTokens: chunk.Usage.PromptTokens, CompletionTokens: chunk.Usage.CompletionTokens}
		}
	}

	if err := ctx.Err(); err != nil {
		select {
		case events <- completion.EventError{Err: err}:
		default:
		}
		return
	}
	if len(order) > 0 {
		if !flushCalls() {
			return
		}
		if finishReason == "" {
			finishReason = completion.FinishReasonToolCalls
		}
	}
	send(completion.EventFinish{FinishReason: finishReason, Usage: usage})
}
