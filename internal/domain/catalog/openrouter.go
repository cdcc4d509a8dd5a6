package catalog

import (
	"encoding/json"
	"errors"
	"strings"
)

type openRouterModelList struct {
	Data []openRouterModel `json:"data"`
}

type openRouterModel struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	ContextLength int    `json:"context_length"`
	Pricing       struct {
		Prompt     string `json:"prompt"`
		Completion string `json:"completion"`
	} `json:"pricing"`
	Architecture struct {
		Modality        string   `json:"modality"`
		InputModalities []string `json:"input_modalities"`
	} `json:"architecture"`
	SupportedParameters []string `json:"supported_parameters"`
}

// OpenRouterParser parses GET /api/v1/models from OpenRouter.
type OpenRouterParser struct {
	overrides PremiumOverrides
}

func NewOpenRouterParser(overrides PremiumOverrides) *OpenRouterParser {
	return &OpenRouterParser{overrides: overrides}
}

func (p *OpenRouterParser) Provider() Provider {
	return ProviderOpenRouter
}

func (p *OpenRouterParser) Parse(raw []byte) (*ParseResult, error) {
	var list openRouterModelList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, &ParseError{Provider: ProviderOpenRouter, Field: "body", Err: err}
	}

	result := &ParseResult{Models: make([]ModelInfo, 0, len(list.Data))}
	for _, m := range list.Data {
		if strings.TrimSpace(m.ID) == "" {
			result.Errors = append(result.Errors, &ParseError{Provider: ProviderOpenRouter, Field: "id", Err: errors.New("missing model id")})
			continue
		}
		input, perr := parsePrice(ProviderOpenRouter, m.ID, "pricing.prompt", m.Pricing.Prompt)
		if perr != nil {
			result.Errors = append(result.Errors, perr)
			continue
		}
		output, perr := parsePrice(ProviderOpenRouter, m.ID, "pricing.completion", m.Pricing.Completion)
		if perr != nil {
			result.Errors = append(result.Errors, perr)
			continue
		}

		name := m.Name
		if name == "" {
			name = m.ID
		}
		caps := InferCapabilities(m.ID, name)
		if hasString(m.Architecture.InputModalities, "image") || strings.Contains(m.Architecture.Modality, "image->") {
			caps.Vision = true
		}
		if hasString(m.SupportedParameters, "reasoning") || hasString(m.SupportedParameters, "include_reasoning") {
			caps.Reasoning = true
		}
		caps.ToolCalling = hasString(m.SupportedParameters, "tools")
		caps.WebSearch = true

		id := QualifiedID(ProviderOpenRouter, m.ID)
		result.Models = append(result.Models, ModelInfo{
			ID:                  id,
			UpstreamID:          m.ID,
			Provider:            ProviderOpenRouter,
			Name:                name,
			Description:         m.Description,
			ContextLength:       m.ContextLength,
			InputPricePerToken:  input,
			OutputPricePerToken: output,
			Capabilities:        caps,
			Premium:             ClassifyPremium(p.overrides, []string{id, m.ID}, input, output),
		})
	}
	return result, nil
}
