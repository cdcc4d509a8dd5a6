package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

type requestyModelList struct {
	Data []requestyModel `json:"data"`
}

type requestyModel struct {
	ID                string      `json:"id"`
	OwnedBy           string      `json:"owned_by"`
	Description       string      `json:"description"`
	ContextWindow     int         `json:"context_window"`
	InputPrice        json.Number `json:"input_price"`
	OutputPrice       json.Number `json:"output_price"`
	SupportsVision    bool        `json:"supports_vision"`
	SupportsReasoning bool        `json:"supports_reasoning"`
	SupportsTools     bool        `json:"supports_tool_calls"`
}

// RequestyParser parses GET /v1/models from the Requesty router.
type RequestyParser struct {
	overrides PremiumOverrides
}

func NewRequestyParser(overrides PremiumOverrides) *RequestyParser {
	return &RequestyParser{overrides: overrides}
}

func (p *RequestyParser) Provider() Provider {
	return ProviderRequesty
}

func (p *RequestyParser) Parse(raw []byte) (*ParseResult, error) {
	var list requestyModelList
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&list); err != nil {
		return nil, &ParseError{Provider: ProviderRequesty, Field: "body", Err: err}
	}

	result := &ParseResult{Models: make([]ModelInfo, 0, len(list.Data))}
	for _, m := range list.Data {
		if strings.TrimSpace(m.ID) == "" {
			result.Errors = append(result.Errors, &ParseError{Provider: ProviderRequesty, Field: "id", Err: errors.New("missing model id")})
			continue
		}
		input, perr := parsePrice(ProviderRequesty, m.ID, "input_price", m.InputPrice.String())
		if perr != nil {
			result.Errors = append(result.Errors, perr)
			continue
		}
		output, perr := parsePrice(ProviderRequesty, m.ID, "output_price", m.OutputPrice.String())
		if perr != nil {
			result.Errors = append(result.Errors, perr)
			continue
		}

		caps := InferCapabilities(m.ID, m.ID)
		caps.Vision = caps.Vision || m.SupportsVision
		caps.Reasoning = caps.Reasoning || m.SupportsReasoning
		caps.ToolCalling = m.SupportsTools

		id := QualifiedID(ProviderRequesty, m.ID)
		result.Models = append(result.Models, ModelInfo{
			ID:                  id,
			UpstreamID:          m.ID,
			Provider:            ProviderRequesty,
			Name:                displayName(m.ID),
			Description:         m.Description,
			ContextLength:       m.ContextWindow,
			InputPricePerToken:  input,
			OutputPricePerToken: output,
			Capabilities:        caps,
			Premium:             ClassifyPremium(p.overrides, []string{id, m.ID}, input, output),
		})
	}
	return result, nil
}

// displayName turns "openai/gpt-4o" into "gpt-4o".
func displayName(id string) string {
	if idx := strings.LastIndex(id, "/"); idx >= 0 && idx < len(id)-1 {
		return id[idx+1:]
	}
	return id
}
