package tokenusage

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"chatlima-server/internal/infrastructure/metrics"
	"chatlima-server/internal/utils/platformerrors"
)

// Service provides token usage business logic
type Service struct {
	repo Repository
	log  zerolog.Logger
}

// NewService creates a new token usage service
func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log.With().Str("component", "token-usage").Logger()}
}

// RecordUsage records a new token usage event
func (s *Service) RecordUsage(ctx context.Context, usage *TokenUsage) error {
	if usage.EstimatedCostUSD.IsZero() {
		usage.EstimatedCostUSD = CalculateCost(usage.Model, usage.PromptTokens, usage.CompletionTokens)
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	if err := s.repo.Create(ctx, usage); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to record token usage")
	}
	metrics.RecordTokens(usage.Model, usage.Provider, usage.PromptTokens, usage.CompletionTokens)
	return nil
}

// GetMyUsage retrieves usage summary for a user within a date range
func (s *Service) GetMyUsage(ctx context.Context, userID string, startDate, endDate time.Time) (*UsageResponse, error) {
	summaries, err := s.repo.GetUserUsage(ctx, userID, startDate, endDate)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load usage")
	}
	return buildUsageResponse(summaries, startDate, endDate), nil
}

// GetMyDailyUsage retrieves daily aggregated usage for a user
func (s *Service) GetMyDailyUsage(ctx context.Context, userID string, startDate, endDate time.Time) ([]DailyAggregate, error) {
	return s.repo.GetDailyAggregates(ctx, UsageFilter{UserID: userID, StartDate: startDate, EndDate: endDate})
}

// GetPlatformUsage retrieves total platform usage (admin only)
func (s *Service) GetPlatformUsage(ctx context.Context, startDate, endDate time.Time) (*PlatformUsageResponse, error) {
	byModel, err := s.repo.GetUsageByModel(ctx, startDate, endDate)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load usage by model")
	}
	topUsers, err := s.repo.GetTopUsers(ctx, startDate, endDate, 10)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load top users")
	}

	base := buildUsageResponse(byModel, startDate, endDate)
	return &PlatformUsageResponse{UsageResponse: *base, TopUsers: topUsers}, nil
}

// buildUsageResponse folds per (model, provider) rows into totals and per-dimension breakdowns.
func buildUsageResponse(summaries []UsageSummary, startDate, endDate time.Time) *UsageResponse {
	response := &UsageResponse{
		Period:     Period{StartDate: startDate, EndDate: endDate},
		ByModel:    make([]UsageSummary, 0),
		ByProvider: make([]UsageSummary, 0),
	}
	response.TotalUsage.EstimatedCostUSD = decimal.Zero

	modelMap := make(map[string]*UsageSummary)
	providerMap := make(map[string]*UsageSummary)

	for _, summary := range summaries {
		addInto(&response.TotalUsage, summary)

		if existing, ok := modelMap[summary.Model]; ok {
			addInto(existing, summary)
		} else {
			modelSummary := summary
			modelSummary.Provider = ""
			modelMap[summary.Model] = &modelSummary
		}

		if existing, ok := providerMap[summary.Provider]; ok {
			addInto(existing, summary)
		} else {
			providerSummary := summary
			providerSummary.Model = ""
			providerMap[summary.Provider] = &providerSummary
		}
	}

	for _, v := range modelMap {
		response.ByModel = append(response.ByModel, *v)
	}
	for _, v := range providerMap {
		response.ByProvider = append(response.ByProvider, *v)
	}
	sort.Slice(response.ByModel, func(i, j int) bool { return response.ByModel[i].TotalTokens > response.ByModel[j].TotalTokens })
	sort.Slice(response.ByProvider, func(i, j int) bool { return response.ByProvider[i].TotalTokens > response.ByProvider[j].TotalTokens })

	return response
}

func addInto(dst *UsageSummary, src UsageSummary) {
	dst.TotalPromptTokens += src.TotalPromptTokens
	dst.TotalCompletionTokens += src.TotalCompletionTokens
	dst.TotalTokens += src.TotalTokens
	dst.RequestCount += src.RequestCount
	dst.CreditsCharged += src.CreditsCharged
	dst.EstimatedCostUSD = dst.EstimatedCostUSD.Add(src.EstimatedCostUSD)
}

// UsageResponse represents the API response for usage queries
type UsageResponse struct {
	Period     Period         `json:"period"`
	TotalUsage UsageSummary   `json:"total_usage"`
	ByModel    []UsageSummary `json:"by_model"`
	ByProvider []UsageSummary `json:"by_provider"`
}

// PlatformUsageResponse represents admin platform-wide usage
type PlatformUsageResponse struct {
	UsageResponse
	TopUsers []UserUsage `json:"top_users"`
}

// Period represents a date range for usage queries
type Period struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}
