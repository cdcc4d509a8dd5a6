package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseError reports a provider payload that could not be normalized.
type ParseError struct {
	Provider Provider
	ModelID  string
	Field    string
	Err      error
}

func (e *ParseError) Error() string {
	if e.ModelID == "" {
		return fmt.Sprintf("parse %s model list: %s: %v", e.Provider, e.Field, e.Err)
	}
	return fmt.Sprintf("parse %s model %q: %s: %v", e.Provider, e.ModelID, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseResult holds the models that parsed and the per-entry failures.
type ParseResult struct {
	Models []ModelInfo
	Errors []*ParseError
}

// ProviderParser normalizes one provider's model list response.
type ProviderParser interface {
	Provider() Provider
	// Parse returns an error only when the envelope itself is unreadable.
	Parse(raw []byte) (*ParseResult, error)
}

func parsePrice(provider Provider, modelID, field, raw string) (decimal.Decimal, *ParseError) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ParseError{Provider: provider, ModelID: modelID, Field: field, Err: err}
	}
	// OpenRouter reports "-1" for variable-priced routers.
	if price.IsNegative() {
		return decimal.Zero, nil
	}
	return price, nil
}

func hasString(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), want) {
			return true
		}
	}
	return false
}
