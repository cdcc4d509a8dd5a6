package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Provider identifies an upstream model router.
type Provider string

const (
	ProviderOpenRouter Provider = "openrouter"
	ProviderRequesty   Provider = "requesty"
)

// Capabilities are the feature flags the chat pipeline gates on.
type Capabilities struct {
	Vision      bool `json:"vision"`
	Reasoning   bool `json:"reasoning"`
	Coding      bool `json:"coding"`
	WebSearch   bool `json:"webSearch"`
	ToolCalling bool `json:"toolCalling"`
}

// ModelInfo is the provider-independent model record.
type ModelInfo struct {
	// ID is "<provider>/<upstream id>", the id clients select.
	ID                  string          `json:"id"`
	UpstreamID          string          `json:"upstreamId"`
	Provider            Provider        `json:"provider"`
	Name                string          `json:"name"`
	Description         string          `json:"description,omitempty"`
	ContextLength       int             `json:"contextLength"`
	InputPricePerToken  decimal.Decimal `json:"inputPricePerToken"`
	OutputPricePerToken decimal.Decimal `json:"outputPricePerToken"`
	Capabilities        Capabilities    `json:"capabilities"`
	Premium             bool            `json:"premium"`
}

// QualifiedID joins provider and upstream id.
func QualifiedID(provider Provider, upstreamID string) string {
	return string(provider) + "/" + upstreamID
}

// SplitModelID separates a qualified id into provider and upstream id. Ids without a
// known provider prefix are treated as OpenRouter ids.
func SplitModelID(id string) (Provider, string) {
	for _, p := range []Provider{ProviderOpenRouter, ProviderRequesty} {
		if rest, ok := strings.CutPrefix(id, string(p)+"/"); ok {
			return p, rest
		}
	}
	return ProviderOpenRouter, id
}
