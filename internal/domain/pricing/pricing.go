package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"chatlima-server/internal/domain/query"
)

const DefaultCurrency = "USD"

// ModelPricingInfo is one effective-dated price row. Superseded rows are soft-closed, never deleted.
type ModelPricingInfo struct {
	ID               uint            `json:"id"`
	ModelID          string          `json:"modelId"`
	Provider         string          `json:"provider"`
	InputTokenPrice  decimal.Decimal `json:"inputTokenPrice"`
	OutputTokenPrice decimal.Decimal `json:"outputTokenPrice"`
	Currency         string          `json:"currency"`
	EffectiveFrom    time.Time       `json:"effectiveFrom"`
	EffectiveTo      *time.Time      `json:"effectiveTo,omitempty"`
	IsActive         bool            `json:"isActive"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// Filter narrows a pricing listing.
type Filter struct {
	Provider   string
	ModelID    string
	ActiveOnly bool
}

// UpsertInput is the admin request to set the active price of a model.
type UpsertInput struct {
	ModelID          string          `json:"modelId" validate:"required"`
	Provider         string          `json:"provider" validate:"required"`
	InputTokenPrice  decimal.Decimal `json:"inputTokenPrice"`
	OutputTokenPrice decimal.Decimal `json:"outputTokenPrice"`
	Currency         string          `json:"currency" validate:"omitempty,len=3"`
}

// Repository persists pricing rows.
type Repository interface {
	List(ctx context.Context, filter Filter, pagination *query.Pagination) ([]*ModelPricingInfo, int64, error)
	// FindActive returns nil when the model has no active row.
	FindActive(ctx context.Context, modelID string) (*ModelPricingInfo, error)
	// ReplaceActive soft-closes the active row of the model and inserts next in one transaction.
	ReplaceActive(ctx context.Context, next *ModelPricingInfo, closedAt time.Time) error
}

// Source tells where a resolved price came from.
type Source string

const (
	SourcePricingTable Source = "pricing"
	SourceCatalog      Source = "catalog"
	SourceDefault      Source = "default"
)

// Quote is the per-token price used for charging a completion.
type Quote struct {
	ModelID        string
	InputPerToken  decimal.Decimal
	OutputPerToken decimal.Decimal
	Source         Source
}
