package dbschema

import (
	"time"

	"github.com/shopspring/decimal"

	"chatlima-server/internal/domain/pricing"
)

// ModelPricing keeps every price ever set; at most one row per model is active.
type ModelPricing struct {
	ID               uint            `gorm:"primaryKey"`
	ModelID          string          `gorm:"type:varchar(255);not null"`
	Provider         string          `gorm:"type:varchar(50);not null;index"`
	InputTokenPrice  decimal.Decimal `gorm:"type:numeric(20,12);not null"`
	OutputTokenPrice decimal.Decimal `gorm:"type:numeric(20,12);not null"`
	Currency         string          `gorm:"type:char(3);not null;default:'USD'"`
	EffectiveFrom    time.Time       `gorm:"not null"`
	EffectiveTo      *time.Time
	IsActive         bool `gorm:"not null;default:true"`
	CreatedAt        time.Time
}

func (ModelPricing) TableName() string { return "model_pricing" }

func NewSchemaModelPricing(p *pricing.ModelPricingInfo) *ModelPricing {
	return &ModelPricing{
		ID:               p.ID,
		ModelID:          p.ModelID,
		Provider:         p.Provider,
		InputTokenPrice:  p.InputTokenPrice,
		OutputTokenPrice: p.OutputTokenPrice,
		Currency:         p.Currency,
		EffectiveFrom:    p.EffectiveFrom,
		EffectiveTo:      p.EffectiveTo,
		IsActive:         p.IsActive,
		CreatedAt:        p.CreatedAt,
	}
}

func (p *ModelPricing) EtoD() *pricing.ModelPricingInfo {
	return &pricing.ModelPricingInfo{
		ID:               p.ID,
		ModelID:          p.ModelID,
		Provider:         p.Provider,
		InputTokenPrice:  p.InputTokenPrice,
		OutputTokenPrice: p.OutputTokenPrice,
		Currency:         p.Currency,
		EffectiveFrom:    p.EffectiveFrom,
		EffectiveTo:      p.EffectiveTo,
		IsActive:         p.IsActive,
		CreatedAt:        p.CreatedAt,
	}
}
