// Package websearch decides whether a chat request may use provider-side web search.
package websearch

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Context sizes accepted by the OpenRouter web plugin.
const (
	ContextSizeLow    = "low"
	ContextSizeMedium = "medium"
	ContextSizeHigh   = "high"
)

// WebSearchInput describes the request and the caller's entitlements.
type WebSearchInput struct {
	Requested              bool
	ContextSize            string
	IsAnonymous            bool
	HasOwnKey              bool
	Credits                int64
	ModelSupportsWebSearch bool
	UserID                 string
}

// WebSearchResult is the resolved web search configuration.
type WebSearchResult struct {
	Enabled         bool   `json:"enabled"`
	CanUseWebSearch bool   `json:"canUseWebSearch"`
	ContextSize     string `json:"contextSize"`
	// Cost is the credit charge for the request, zero when the user pays with their own key.
	Cost int64 `json:"cost"`
}

// Settings configures web search pricing.
type Settings struct {
	CostCredits int64
}

// ChatWebSearchService gates web search on anonymity, credits and model support.
type ChatWebSearchService struct {
	settings Settings
	log      zerolog.Logger
}

func NewChatWebSearchService(settings Settings, log zerolog.Logger) *ChatWebSearchService {
	if settings.CostCredits <= 0 {
		settings.CostCredits = 5
	}
	return &ChatWebSearchService{
		settings: settings,
		log:      log.With().Str("component", "web-search").Logger(),
	}
}

// CostCredits returns the configured per-request charge.
func (s *ChatWebSearchService) CostCredits() int64 {
	return s.settings.CostCredits
}

// ValidateAndConfigureWebSearch resolves whether web search runs for this request.
// Anonymous callers never get web search, even with their own key.
func (s *ChatWebSearchService) ValidateAndConfigureWebSearch(_ context.Context, in WebSearchInput) WebSearchResult {
	result := WebSearchResult{ContextSize: NormalizeContextSize(in.ContextSize)}

	if in.IsAnonymous {
		if in.Requested {
			s.log.Debug().Str("user_id", in.UserID).Msg("web search denied for anonymous user")
		}
		return result
	}

	permitted := in.Requested && (in.HasOwnKey || in.Credits >= s.settings.CostCredits)
	result.CanUseWebSearch = permitted
	result.Enabled = permitted && in.ModelSupportsWebSearch

	if result.Enabled && !in.HasOwnKey {
		result.Cost = s.settings.CostCredits
	}

	if in.Requested {
		s.log.Debug().
			Str("user_id", in.UserID).
			Bool("own_key", in.HasOwnKey).
			Int64("credits", in.Credits).
			Bool("model_supports", in.ModelSupportsWebSearch).
			Bool("enabled", result.Enabled).
			Msg("web search resolved")
	}
	return result
}

// NormalizeContextSize maps unknown values to medium.
func NormalizeContextSize(size string) string {
	switch strings.ToLower(strings.TrimSpace(size)) {
	case ContextSizeLow:
		return ContextSizeLow
	case ContextSizeHigh:
		return ContextSizeHigh
	default:
		return ContextSizeMedium
	}
}
