package websearch

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestValidateAndConfigureWebSearch(t *testing.T) {
	svc := NewChatWebSearchService(Settings{CostCredits: 5}, zerolog.Nop())

	tests := []struct {
		name string
		in   WebSearchInput
		want WebSearchResult
	}{
		{
			name: "not requested",
			in:   WebSearchInput{Credits: 100, ModelSupportsWebSearch: true},
			want: WebSearchResult{ContextSize: "medium"},
		},
		{
			name: "anonymous with own key is still denied",
			in:   WebSearchInput{Requested: true, IsAnonymous: true, HasOwnKey: true, Credits: 100, ModelSupportsWebSearch: true},
			want: WebSearchResult{ContextSize: "medium"},
		},
		{
			name: "credits cover the cost",
			in:   WebSearchInput{Requested: true, Credits: 5, ModelSupportsWebSearch: true, ContextSize: "HIGH"},
			want: WebSearchResult{Enabled: true, CanUseWebSearch: true, ContextSize: "high", Cost: 5},
		},
		{
			name: "not enough credits",
			in:   WebSearchInput{Requested: true, Credits: 4, ModelSupportsWebSearch: true},
			want: WebSearchResult{ContextSize: "medium"},
		},
		{
			name: "own key is free",
			in:   WebSearchInput{Requested: true, HasOwnKey: true, ModelSupportsWebSearch: true, ContextSize: "low"},
			want: WebSearchResult{Enabled: true, CanUseWebSearch: true, ContextSize: "low"},
		},
		{
			name: "model without web search",
			in:   WebSearchInput{Requested: true, Credits: 50},
			want: WebSearchResult{CanUseWebSearch: true, ContextSize: "medium"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.ValidateAndConfigureWebSearch(context.Background(), tt.in)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnonymousNeverEnabled(t *testing.T) {
	svc := NewChatWebSearchService(Settings{CostCredits: 1}, zerolog.Nop())
	for _, ownKey := range []bool{true, false} {
		for _, supports := range []bool{true, false} {
			for _, credits := range []int64{0, 1, 1000} {
				got := svc.ValidateAndConfigureWebSearch(context.Background(), WebSearchInput{
					Requested:              true,
					IsAnonymous:            true,
					HasOwnKey:              ownKey,
					Credits:                credits,
					ModelSupportsWebSearch: supports,
				})
				assert.False(t, got.Enabled)
				assert.False(t, got.CanUseWebSearch)
				assert.Zero(t, got.Cost)
			}
		}
	}
}
