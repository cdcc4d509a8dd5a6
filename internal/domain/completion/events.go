package completion

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"chatlima-server/internal/domain/catalog"
)

// Usage is the token count of one step or of a whole completion.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
	}
}

// StreamEvent is one item of a provider stream. A stream ends with EventFinish or EventError
// and the channel is closed right after.
type StreamEvent interface {
	isStreamEvent()
}

type EventToken struct {
	Text string
}

type EventReasoning struct {
	Text string
}

// EventToolCall is a fully assembled tool call. Args is the raw JSON argument object.
type EventToolCall struct {
	ID   string
	Name string
	Args string
}

// EventStop carries the provider finish reason as soon as it is known.
type EventStop struct {
	Reason string
}

type EventFinish struct {
	FinishReason string
	Usage        Usage
}

type EventError struct {
	Err error
}

func (EventToken) isStreamEvent()     {}
func (EventReasoning) isStreamEvent() {}
func (EventToolCall) isStreamEvent()  {}
func (EventStop) isStreamEvent()      {}
func (EventFinish) isStreamEvent()    {}
func (EventError) isStreamEvent()     {}

// Upstream finish reasons.
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonToolCalls     = "tool_calls"
	FinishReasonContentFilter = "content_filter"
	FinishReasonError         = "error"
)

// StreamRequest is a single provider call.
type StreamRequest struct {
	Provider             catalog.Provider
	Model                string
	Messages             []openai.ChatCompletionMessage
	Tools                []openai.Tool
	Temperature          *float32
	MaxTokens            *int
	WebSearch            bool
	WebSearchContextSize string
	// APIKey overrides the server key when the caller brought their own.
	APIKey string
}

// ProviderClient streams chat completions from an upstream router.
type ProviderClient interface {
	Stream(ctx context.Context, req StreamRequest) (<-chan StreamEvent, error)
}
