package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"chatlima-server/internal/config"
	"chatlima-server/internal/utils/platformerrors"
)

const defaultCatalogTTL = 10 * time.Minute

// ModelListFetcher downloads the raw model list of a provider.
type ModelListFetcher interface {
	FetchModelList(ctx context.Context, provider Provider) ([]byte, error)
}

// Settings selects the providers to aggregate and how long their lists are cached.
type Settings struct {
	Providers []Provider
	CacheTTL  time.Duration
}

// ProviderFailure records a provider whose list could not be fetched or decoded.
type ProviderFailure struct {
	Provider Provider
	Err      error
}

// CatalogResult is the merged catalog with partial-failure details.
type CatalogResult struct {
	Models      []ModelInfo
	ParseErrors []*ParseError
	Failures    []ProviderFailure
}

type cacheEntry struct {
	result    *ParseResult
	expiresAt time.Time
}

// ModelCatalogService aggregates provider model lists into ModelInfo records.
type ModelCatalogService struct {
	fetcher  ModelListFetcher
	policy   *config.BlockList
	parsers  map[Provider]ProviderParser
	settings Settings
	log      zerolog.Logger

	mu    sync.RWMutex
	cache *lru.Cache
}

func NewModelCatalogService(fetcher ModelListFetcher, policy *config.BlockList, settings Settings, log zerolog.Logger) (*ModelCatalogService, error) {
	if policy == nil {
		policy = config.NewStaticBlockList(config.ModelPolicyFile{})
	}
	if settings.CacheTTL <= 0 {
		settings.CacheTTL = defaultCatalogTTL
	}
	cache, err := lru.New(16)
	if err != nil {
		return nil, err
	}
	return &ModelCatalogService{
		fetcher: fetcher,
		policy:  policy,
		parsers: map[Provider]ProviderParser{
			ProviderOpenRouter: NewOpenRouterParser(policy),
			ProviderRequesty:   NewRequestyParser(policy),
		},
		settings: settings,
		log:      log.With().Str("component", "model-catalog").Logger(),
		cache:    cache,
	}, nil
}

// ListModels returns the merged, blocklist-filtered catalog sorted by id.
// A failing provider is reported in Failures; the call errors only when nothing could be loaded.
func (s *ModelCatalogService) ListModels(ctx context.Context) (*CatalogResult, error) {
	var (
		mu     sync.Mutex
		result = &CatalogResult{}
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, provider := range s.settings.Providers {
		g.Go(func() error {
			parsed, err := s.providerModels(gctx, provider)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warn().Err(err).Str("provider", string(provider)).Msg("model list unavailable")
				result.Failures = append(result.Failures, ProviderFailure{Provider: provider, Err: err})
				return nil
			}
			result.Models = append(result.Models, parsed.Models...)
			result.ParseErrors = append(result.ParseErrors, parsed.Errors...)
			return nil
		})
	}
	_ = g.Wait()

	result.Models = s.FilterBlocked(result.Models)
	sort.Slice(result.Models, func(i, j int) bool { return result.Models[i].ID < result.Models[j].ID })

	if len(result.Models) == 0 && len(result.Failures) > 0 {
		return result, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, "no model provider is reachable", result.Failures[0].Err, "b0c5f1a2-6f0e-4a57-9d1b-2c9e4b7f6a10")
	}
	return result, nil
}

// GetModel resolves a model by qualified id, or by OpenRouter upstream id.
func (s *ModelCatalogService) GetModel(ctx context.Context, id string) (*ModelInfo, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "model id is required", nil, "5f3b8d0e-2a61-4c1f-8e7a-9b4d2c6e1f30")
	}
	if s.policy.IsBlocked(id) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "model "+id+" is not available", nil, "7a2e9c41-0d5b-4f83-b6e2-1c8d3f9a5b72")
	}

	catalog, err := s.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	provider, upstream := SplitModelID(id)
	for i := range catalog.Models {
		m := catalog.Models[i]
		if m.ID == id || (m.Provider == provider && m.UpstreamID == upstream) {
			return &m, nil
		}
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "model "+id+" is not available", nil, "3c9d1e7f-8b24-4a06-a5f1-6e0b2d4c8a93")
}

// FilterBlocked drops models listed in the block list, matching either id form.
func (s *ModelCatalogService) FilterBlocked(models []ModelInfo) []ModelInfo {
	out := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		if s.policy.IsBlocked(m.ID) || s.policy.IsBlocked(m.UpstreamID) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// ReloadPolicy re-reads the block list and drops cached lists so premium overrides re-apply.
func (s *ModelCatalogService) ReloadPolicy() error {
	if err := s.policy.Reload(); err != nil {
		return err
	}
	s.Refresh()
	s.log.Info().Int("entries", s.policy.Size()).Msg("model policy reloaded")
	return nil
}

// Refresh purges cached provider lists.
func (s *ModelCatalogService) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
}

func (s *ModelCatalogService) providerModels(ctx context.Context, provider Provider) (*ParseResult, error) {
	if cached, ok := s.cached(provider); ok {
		return cached, nil
	}

	parser, ok := s.parsers[provider]
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotImplemented, "no parser for provider "+string(provider), nil, "e4a7b2c9-3d18-4f6e-9a05-7c1b8d2e6f41")
	}

	raw, err := s.fetcher.FetchModelList(ctx, provider)
	if err != nil {
		return nil, err
	}
	parsed, err := parser.Parse(raw)
	if err != nil {
		return nil, err
	}
	for _, perr := range parsed.Errors {
		s.log.Debug().Err(perr).Str("provider", string(provider)).Msg("skipped malformed model entry")
	}

	s.mu.Lock()
	s.cache.Add(provider, cacheEntry{result: parsed, expiresAt: time.Now().Add(s.settings.CacheTTL)})
	s.mu.Unlock()
	return parsed, nil
}

func (s *ModelCatalogService) cached(provider Provider) (*ParseResult, bool) {
	s.mu.RLock()
	val, found := s.cache.Get(provider)
	s.mu.RUnlock()
	if !found {
		return nil, false
	}
	entry := val.(cacheEntry)
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		s.cache.Remove(provider)
		s.mu.Unlock()
		return nil, false
	}
	return entry.result, true
}
