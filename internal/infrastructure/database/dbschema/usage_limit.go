package dbschema

import (
	"time"

	"chatlima-server/internal/domain/usagelimit"
)

type UsageLimitOverride struct {
	UserID              string `gorm:"type:varchar(64);primaryKey"`
	DailyMessageLimit   *int64
	MonthlyMessageLimit *int64
	UpdatedAt           time.Time
}

func (UsageLimitOverride) TableName() string { return "usage_limit_overrides" }

func NewSchemaUsageLimitOverride(o *usagelimit.Override) *UsageLimitOverride {
	return &UsageLimitOverride{
		UserID:              o.UserID,
		DailyMessageLimit:   o.DailyMessageLimit,
		MonthlyMessageLimit: o.MonthlyMessageLimit,
		UpdatedAt:           o.UpdatedAt,
	}
}

func (o *UsageLimitOverride) EtoD() *usagelimit.Override {
	return &usagelimit.Override{
		UserID:              o.UserID,
		DailyMessageLimit:   o.DailyMessageLimit,
		MonthlyMessageLimit: o.MonthlyMessageLimit,
		UpdatedAt:           o.UpdatedAt,
	}
}
