package tokenusage

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TokenUsage represents a single completion's token usage record
type TokenUsage struct {
	ID               int64           `gorm:"primaryKey;autoIncrement"`
	UserID           string          `gorm:"column:user_id;not null;index"`
	ChatID           *string         `gorm:"column:chat_id"`
	Model            string          `gorm:"column:model;not null;index"`
	Provider         string          `gorm:"column:provider;not null;index"`
	PromptTokens     int             `gorm:"column:prompt_tokens;not null;default:0"`
	CompletionTokens int             `gorm:"column:completion_tokens;not null;default:0"`
	TotalTokens      int             `gorm:"column:total_tokens;not null;default:0"`
	EstimatedCostUSD decimal.Decimal `gorm:"column:estimated_cost_usd;type:decimal(12,8)"`
	CreditsCharged   int64           `gorm:"column:credits_charged;not null;default:0"`
	RequestID        *string         `gorm:"column:request_id"`
	Stream           bool            `gorm:"column:stream;default:false"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for TokenUsage
func (TokenUsage) TableName() string {
	return "token_usage"
}

// UsageSummary represents aggregated usage statistics
type UsageSummary struct {
	Model                 string          `json:"model,omitempty"`
	Provider              string          `json:"provider,omitempty"`
	TotalPromptTokens     int64           `json:"total_prompt_tokens"`
	TotalCompletionTokens int64           `json:"total_completion_tokens"`
	TotalTokens           int64           `json:"total_tokens"`
	RequestCount          int64           `json:"request_count"`
	EstimatedCostUSD      decimal.Decimal `json:"estimated_cost_usd"`
	CreditsCharged        int64           `json:"credits_charged"`
}

// DailyAggregate represents daily aggregated usage
type DailyAggregate struct {
	Date                  time.Time       `json:"date"`
	TotalPromptTokens     int64           `json:"total_prompt_tokens"`
	TotalCompletionTokens int64           `json:"total_completion_tokens"`
	TotalTokens           int64           `json:"total_tokens"`
	RequestCount          int64           `json:"request_count"`
	EstimatedCostUSD      decimal.Decimal `json:"estimated_cost_usd"`
}

// UserUsage represents usage for a specific user
type UserUsage struct {
	UserID           string          `json:"user_id"`
	TotalTokens      int64           `json:"total_tokens"`
	RequestCount     int64           `json:"request_count"`
	EstimatedCostUSD decimal.Decimal `json:"estimated_cost_usd"`
}

// UsageFilter represents filter options for querying usage
type UsageFilter struct {
	UserID    string
	Model     string
	Provider  string
	StartDate time.Time
	EndDate   time.Time
}

type tokenPrice struct {
	PromptPrice     decimal.Decimal
	CompletionPrice decimal.Decimal
}

// ModelPricing holds fallback prices (USD per token) keyed by upstream model name.
// Used only when neither the pricing table nor the catalog has a price.
var ModelPricing = map[string]tokenPrice{
	"gpt-4o":            {decimal.RequireFromString("0.0000025"), decimal.RequireFromString("0.00001")},
	"gpt-4o-mini":       {decimal.RequireFromString("0.00000015"), decimal.RequireFromString("0.0000006")},
	"gpt-4.1":           {decimal.RequireFromString("0.000002"), decimal.RequireFromString("0.000008")},
	"claude-3.5-sonnet": {decimal.RequireFromString("0.000003"), decimal.RequireFromString("0.000015")},
	"claude-sonnet-4":   {decimal.RequireFromString("0.000003"), decimal.RequireFromString("0.000015")},
	"claude-3-haiku":    {decimal.RequireFromString("0.00000025"), decimal.RequireFromString("0.00000125")},
	"deepseek-r1":       {decimal.RequireFromString("0.00000055"), decimal.RequireFromString("0.00000219")},
	"gemini-2.5-flash":  {decimal.RequireFromString("0.0000003"), decimal.RequireFromString("0.0000025")},
}

var defaultPrice = tokenPrice{
	PromptPrice:     decimal.RequireFromString("0.000003"),
	CompletionPrice: decimal.RequireFromString("0.000006"),
}

// FallbackPrice returns the static price for a model id in any of its forms
// ("openrouter/openai/gpt-4o", "openai/gpt-4o" or "gpt-4o").
func FallbackPrice(model string) (prompt, completion decimal.Decimal) {
	key := strings.ToLower(model)
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		key = key[idx+1:]
	}
	key = strings.TrimSuffix(strings.TrimSuffix(key, ":free"), ":online")
	p, ok := ModelPricing[key]
	if !ok {
		p = defaultPrice
	}
	return p.PromptPrice, p.CompletionPrice
}

// CalculateCost calculates estimated cost for token usage
func CalculateCost(model string, promptTokens, completionTokens int) decimal.Decimal {
	prompt, completion := FallbackPrice(model)
	promptCost := prompt.Mul(decimal.NewFromInt(int64(promptTokens)))
	completionCost := completion.Mul(decimal.NewFromInt(int64(completionTokens)))
	return promptCost.Add(completionCost)
}
