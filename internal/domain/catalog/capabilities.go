package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	perMillion = decimal.NewFromInt(1_000_000)

	premiumInputThreshold  = decimal.NewFromFloat(3.0)
	premiumOutputThreshold = decimal.NewFromFloat(5.0)
)

var (
	visionMarkers    = []string{"vision", "-vl", "gpt-4o", "gpt-4.1", "claude-3", "claude-sonnet-4", "claude-opus-4", "gemini", "pixtral", "llava", "grok-2-vision"}
	reasoningMarkers = []string{"-r1", "/r1", "o1", "o3", "o4-mini", "reasoning", "thinking", "qwq"}
	codingMarkers    = []string{"code", "coder", "codestral", "devstral"}
)

// PremiumOverrides supplies forced premium flags per model id.
type PremiumOverrides interface {
	PremiumOverride(modelID string) (premium bool, ok bool)
}

// IsPremiumPrice applies the price threshold rule: input >= $3/M tokens or output >= $5/M tokens.
func IsPremiumPrice(inputPerToken, outputPerToken decimal.Decimal) bool {
	return inputPerToken.Mul(perMillion).GreaterThanOrEqual(premiumInputThreshold) ||
		outputPerToken.Mul(perMillion).GreaterThanOrEqual(premiumOutputThreshold)
}

// ClassifyPremium resolves the premium flag, letting an override win over the price rule.
func ClassifyPremium(overrides PremiumOverrides, ids []string, inputPerToken, outputPerToken decimal.Decimal) bool {
	if overrides != nil {
		for _, id := range ids {
			if premium, ok := overrides.PremiumOverride(id); ok {
				return premium
			}
		}
	}
	return IsPremiumPrice(inputPerToken, outputPerToken)
}

// InferCapabilities derives capability flags from substrings of the model id and name.
func InferCapabilities(id, name string) Capabilities {
	haystack := strings.ToLower(id + " " + name)
	return Capabilities{
		Vision:    containsAny(haystack, visionMarkers),
		Reasoning: containsAny(haystack, reasoningMarkers),
		Coding:    containsAny(haystack, codingMarkers),
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
