package tokenusagerepo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"chatlima-server/internal/domain/tokenusage"
	"chatlima-server/internal/utils/platformerrors"
)

const summaryColumns = `
	SUM(prompt_tokens) AS total_prompt_tokens,
	SUM(completion_tokens) AS total_completion_tokens,
	SUM(total_tokens) AS total_tokens,
	COALESCE(SUM(estimated_cost_usd), 0) AS estimated_cost_usd,
	SUM(credits_charged) AS credits_charged,
	COUNT(*) AS request_count`

// TokenUsageRepository implements tokenusage.Repository using GORM
type TokenUsageRepository struct {
	db *gorm.DB
}

var _ tokenusage.Repository = (*TokenUsageRepository)(nil)

func NewTokenUsageRepository(db *gorm.DB) tokenusage.Repository {
	return &TokenUsageRepository{db: db}
}

func wrap(ctx context.Context, err error, msg, uuid string) error {
	if err == nil {
		return nil
	}
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, msg, err, uuid)
}

// Create stores a new token usage record
func (r *TokenUsageRepository) Create(ctx context.Context, usage *tokenusage.TokenUsage) error {
	return wrap(ctx, r.db.WithContext(ctx).Create(usage).Error, "failed to record token usage", "0f7c3a9e-2d64-4b18-8e5a-6c1b9d3f7a42")
}

// GetUserUsage retrieves aggregated usage for a user within a date range
func (r *TokenUsageRepository) GetUserUsage(ctx context.Context, userID string, startDate, endDate time.Time) ([]tokenusage.UsageSummary, error) {
	var summaries []tokenusage.UsageSummary
	err := r.db.WithContext(ctx).
		Model(&tokenusage.TokenUsage{}).
		Select("model, provider,"+summaryColumns).
		Where("user_id = ? AND created_at >= ? AND created_at <= ?", userID, startDate, endDate).
		Group("model, provider").
		Order("total_tokens DESC").
		Scan(&summaries).Error
	return summaries, wrap(ctx, err, "failed to aggregate user usage", "6b2e8d4a-9c13-4f57-a0e6-3d9f1b7c5e28")
}

// GetDailyAggregates retrieves daily aggregated usage based on filters
func (r *TokenUsageRepository) GetDailyAggregates(ctx context.Context, filter tokenusage.UsageFilter) ([]tokenusage.DailyAggregate, error) {
	var aggregates []tokenusage.DailyAggregate

	q := r.db.WithContext(ctx).Model(&tokenusage.TokenUsage{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Model != "" {
		q = q.Where("model = ?", filter.Model)
	}
	if filter.Provider != "" {
		q = q.Where("provider = ?", filter.Provider)
	}
	if !filter.StartDate.IsZero() {
		q = q.Where("created_at >= ?", filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		q = q.Where("created_at <= ?", filter.EndDate)
	}

	err := q.
		Select(`
			DATE(created_at) AS date,
			SUM(prompt_tokens) AS total_prompt_tokens,
			SUM(completion_tokens) AS total_completion_tokens,
			SUM(total_tokens) AS total_tokens,
			COALESCE(SUM(estimated_cost_usd), 0) AS estimated_cost_usd,
			COUNT(*) AS request_count
		`).
		Group("DATE(created_at)").
		Order("date DESC").
		Scan(&aggregates).Error
	return aggregates, wrap(ctx, err, "failed to aggregate daily usage", "2d9a5f1c-7e38-4b64-9c0d-8a3e6f2b1d57")
}

// GetTopUsers retrieves top users by token usage within a date range
func (r *TokenUsageRepository) GetTopUsers(ctx context.Context, startDate, endDate time.Time, limit int) ([]tokenusage.UserUsage, error) {
	var users []tokenusage.UserUsage
	err := r.db.WithContext(ctx).
		Model(&tokenusage.TokenUsage{}).
		Select(`
			user_id,
			SUM(total_tokens) AS total_tokens,
			COALESCE(SUM(estimated_cost_usd), 0) AS estimated_cost_usd,
			COUNT(*) AS request_count
		`).
		Where("created_at >= ? AND created_at <= ?", startDate, endDate).
		Group("user_id").
		Order("total_tokens DESC").
		Limit(limit).
		Scan(&users).Error
	return users, wrap(ctx, err, "failed to rank users by usage", "9e4b1c7a-3f26-4d85-b0a9-5c2d8e6f1a34")
}

// GetUsageByModel retrieves usage grouped by model within a date range
func (r *TokenUsageRepository) GetUsageByModel(ctx context.Context, startDate, endDate time.Time) ([]tokenusage.UsageSummary, error) {
	var summaries []tokenusage.UsageSummary
	err := r.db.WithContext(ctx).
		Model(&tokenusage.TokenUsage{}).
		Select("model, provider,"+summaryColumns).
		Where("created_at >= ? AND created_at <= ?", startDate, endDate).
		Group("model, provider").
		Order("total_tokens DESC").
		Scan(&summaries).Error
	return summaries, wrap(ctx, err, "failed to aggregate usage by model", "4a8c2e6f-1d93-4b57-8e0c-7f3b9a5d2e16")
}
