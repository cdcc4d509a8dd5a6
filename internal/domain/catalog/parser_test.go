package catalog

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlima-server/internal/config"
)

const openRouterFixture = `{
  "data": [
    {
      "id": "anthropic/claude-3.5-sonnet",
      "name": "Anthropic: Claude 3.5 Sonnet",
      "context_length": 200000,
      "pricing": {"prompt": "0.000003", "completion": "0.000015"},
      "architecture": {"modality": "text+image->text", "input_modalities": ["text", "image"]},
      "supported_parameters": ["tools", "temperature"]
    },
    {
      "id": "meta-llama/llama-3.1-8b-instruct",
      "name": "Meta: Llama 3.1 8B Instruct",
      "context_length": 131072,
      "pricing": {"prompt": "0.00000002", "completion": "0.00000005"},
      "architecture": {"modality": "text->text", "input_modalities": ["text"]},
      "supported_parameters": ["temperature"]
    },
    {
      "id": "broken/model",
      "name": "Broken",
      "pricing": {"prompt": "not-a-number", "completion": "0"}
    },
    {
      "id": "openrouter/auto",
      "name": "Auto Router",
      "pricing": {"prompt": "-1", "completion": "-1"}
    }
  ]
}`

const requestyFixture = `{
  "data": [
    {"id": "deepseek/deepseek-r1", "context_window": 64000, "input_price": 0.00000055, "output_price": 0.00000219, "supports_reasoning": true},
    {"id": "openai/gpt-4.1", "context_window": 1047576, "input_price": 0.000002, "output_price": 0.000008, "supports_vision": true, "supports_tool_calls": true},
    {"id": "", "input_price": 0}
  ]
}`

func TestIsPremiumPrice(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		output string
		want   bool
	}{
		{"three dollars per million input is premium", "0.000003", "0", true},
		{"five dollars per million output is premium", "0", "0.000005", true},
		{"cheap model", "0.0000029", "0.0000049", false},
		{"free model", "0", "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsPremiumPrice(decimal.RequireFromString(tt.input), decimal.RequireFromString(tt.output))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyPremium_OverrideWins(t *testing.T) {
	overrides := config.NewStaticBlockList(config.ModelPolicyFile{
		PremiumOverrides: map[string]bool{
			"anthropic/claude-3.5-sonnet":       false,
			"meta-llama/llama-3.1-8b-instruct": true,
		},
	})

	expensive := decimal.RequireFromString("0.00001")
	assert.False(t, ClassifyPremium(overrides, []string{"openrouter/anthropic/claude-3.5-sonnet", "anthropic/claude-3.5-sonnet"}, expensive, expensive))
	assert.True(t, ClassifyPremium(overrides, []string{"meta-llama/llama-3.1-8b-instruct"}, decimal.Zero, decimal.Zero))
	assert.True(t, ClassifyPremium(nil, []string{"x"}, expensive, decimal.Zero))
}

func TestInferCapabilities(t *testing.T) {
	caps := InferCapabilities("qwen/qwen2.5-vl-72b-instruct", "Qwen VL")
	assert.True(t, caps.Vision)
	assert.False(t, caps.Reasoning)

	caps = InferCapabilities("deepseek/deepseek-r1", "DeepSeek R1")
	assert.True(t, caps.Reasoning)

	caps = InferCapabilities("mistralai/codestral-2501", "Codestral")
	assert.True(t, caps.Coding)
}

func TestOpenRouterParser_Parse(t *testing.T) {
	parser := NewOpenRouterParser(nil)
	result, err := parser.Parse([]byte(openRouterFixture))
	require.NoError(t, err)

	require.Len(t, result.Models, 3)
	require.Len(t, result.Errors, 1)

	var perr *ParseError
	require.True(t, errors.As(result.Errors[0], &perr))
	assert.Equal(t, "broken/model", perr.ModelID)
	assert.Equal(t, "pricing.prompt", perr.Field)

	sonnet := result.Models[0]
	assert.Equal(t, "openrouter/anthropic/claude-3.5-sonnet", sonnet.ID)
	assert.Equal(t, "anthropic/claude-3.5-sonnet", sonnet.UpstreamID)
	assert.True(t, sonnet.Premium)
	assert.True(t, sonnet.Capabilities.Vision)
	assert.True(t, sonnet.Capabilities.ToolCalling)
	assert.True(t, sonnet.Capabilities.WebSearch)

	llama := result.Models[1]
	assert.False(t, llama.Premium)
	assert.False(t, llama.Capabilities.Vision)
	assert.False(t, llama.Capabilities.ToolCalling)

	auto := result.Models[2]
	assert.True(t, auto.InputPricePerToken.IsZero())
	assert.False(t, auto.Premium)
}

func TestOpenRouterParser_BadEnvelope(t *testing.T) {
	_, err := NewOpenRouterParser(nil).Parse([]byte(`{"data": [`))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "body", perr.Field)
}

func TestRequestyParser_Parse(t *testing.T) {
	result, err := NewRequestyParser(nil).Parse([]byte(requestyFixture))
	require.NoError(t, err)

	require.Len(t, result.Models, 2)
	require.Len(t, result.Errors, 1)

	r1 := result.Models[0]
	assert.Equal(t, "requesty/deepseek/deepseek-r1", r1.ID)
	assert.Equal(t, "deepseek-r1", r1.Name)
	assert.True(t, r1.Capabilities.Reasoning)
	assert.False(t, r1.Capabilities.WebSearch)
	assert.False(t, r1.Premium)

	gpt := result.Models[1]
	assert.True(t, gpt.Capabilities.Vision)
	assert.True(t, gpt.Capabilities.ToolCalling)
	assert.True(t, gpt.Premium)
	assert.True(t, gpt.InputPricePerToken.Equal(decimal.RequireFromString("0.000002")))
}

func TestSplitModelID(t *testing.T) {
	p, id := SplitModelID("requesty/openai/gpt-4o")
	assert.Equal(t, ProviderRequesty, p)
	assert.Equal(t, "openai/gpt-4o", id)

	p, id = SplitModelID("openai/gpt-4o")
	assert.Equal(t, ProviderOpenRouter, p)
	assert.Equal(t, "openai/gpt-4o", id)
}
