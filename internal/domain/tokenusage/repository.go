package tokenusage

import (
	"context"
	"time"
)

// Repository defines the interface for token usage data access
type Repository interface {
	// Create stores a new token usage record
	Create(ctx context.Context, usage *TokenUsage) error

	// GetUserUsage retrieves usage for a user grouped by model and provider
	GetUserUsage(ctx context.Context, userID string, startDate, endDate time.Time) ([]UsageSummary, error)

	// GetDailyAggregates retrieves daily aggregated usage based on filters
	GetDailyAggregates(ctx context.Context, filter UsageFilter) ([]DailyAggregate, error)

	// GetTopUsers retrieves top users by token usage within a date range
	GetTopUsers(ctx context.Context, startDate, endDate time.Time, limit int) ([]UserUsage, error)

	// GetUsageByModel retrieves platform usage grouped by model and provider
	GetUsageByModel(ctx context.Context, startDate, endDate time.Time) ([]UsageSummary, error)
}
