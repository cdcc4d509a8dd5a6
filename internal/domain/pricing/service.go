package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"chatlima-server/internal/domain/catalog"
	"chatlima-server/internal/domain/query"
	"chatlima-server/internal/domain/tokenusage"
	"chatlima-server/internal/utils/platformerrors"
)

// ModelLookup resolves catalog entries for price fallback.
type ModelLookup interface {
	GetModel(ctx context.Context, id string) (*catalog.ModelInfo, error)
}

// PricingService manages admin-maintained model prices.
type PricingService struct {
	repo     Repository
	models   ModelLookup
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
}

func NewPricingService(repo Repository, models ModelLookup, log zerolog.Logger) *PricingService {
	return &PricingService{
		repo:     repo,
		models:   models,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.With().Str("component", "pricing").Logger(),
		now:      time.Now,
	}
}

// List pages through pricing rows, returning the total match count.
func (s *PricingService) List(ctx context.Context, filter Filter, pagination *query.Pagination) ([]*ModelPricingInfo, int64, error) {
	items, total, err := s.repo.List(ctx, filter, pagination)
	if err != nil {
		return nil, 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list model pricing")
	}
	return items, total, nil
}

// Upsert makes input the active price for its model, soft-closing the previous active row.
func (s *PricingService) Upsert(ctx context.Context, input UpsertInput) (*ModelPricingInfo, error) {
	input.ModelID = strings.TrimSpace(input.ModelID)
	input.Provider = strings.TrimSpace(input.Provider)
	if err := s.validate.Struct(input); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "modelId and provider are required", err, "b6d1f4a8-2e97-4c3b-8a5f-0d7e9c1b3a64").WithCode("INVALID_PARAMETERS")
	}
	if input.InputTokenPrice.IsNegative() || input.OutputTokenPrice.IsNegative() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "prices must be non-negative", nil, "3a9e6c2d-8f14-4b7a-9d0e-5c2b8f4a1e79").WithCode("INVALID_PARAMETERS")
	}
	currency := strings.ToUpper(input.Currency)
	if currency == "" {
		currency = DefaultCurrency
	}

	now := s.now().UTC()
	next := &ModelPricingInfo{
		ModelID:          input.ModelID,
		Provider:         input.Provider,
		InputTokenPrice:  input.InputTokenPrice,
		OutputTokenPrice: input.OutputTokenPrice,
		Currency:         currency,
		EffectiveFrom:    now,
		IsActive:         true,
		CreatedAt:        now,
	}
	if err := s.repo.ReplaceActive(ctx, next, now); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to upsert model pricing")
	}

	s.log.Info().
		Str("model", next.ModelID).
		Str("provider", next.Provider).
		Str("input", next.InputTokenPrice.String()).
		Str("output", next.OutputTokenPrice.String()).
		Msg("model pricing updated")
	return next, nil
}

// ActivePricing resolves the charging price: pricing table, then catalog, then static defaults.
func (s *PricingService) ActivePricing(ctx context.Context, modelID string) Quote {
	row, err := s.repo.FindActive(ctx, modelID)
	if err != nil {
		s.log.Warn().Err(err).Str("model", modelID).Msg("pricing lookup failed, falling back")
	}
	if row != nil {
		return Quote{ModelID: modelID, InputPerToken: row.InputTokenPrice, OutputPerToken: row.OutputTokenPrice, Source: SourcePricingTable}
	}

	if s.models != nil {
		if m, err := s.models.GetModel(ctx, modelID); err == nil && m != nil {
			return Quote{ModelID: modelID, InputPerToken: m.InputPricePerToken, OutputPerToken: m.OutputPricePerToken, Source: SourceCatalog}
		}
	}

	in, out := tokenusage.FallbackPrice(modelID)
	return Quote{ModelID: modelID, InputPerToken: in, OutputPerToken: out, Source: SourceDefault}
}
