package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlima-server/internal/config"
	"chatlima-server/internal/utils/platformerrors"
)

type fakeFetcher struct {
	mu       sync.Mutex
	payloads map[Provider][]byte
	errs     map[Provider]error
	calls    map[Provider]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		payloads: map[Provider][]byte{
			ProviderOpenRouter: []byte(openRouterFixture),
			ProviderRequesty:   []byte(requestyFixture),
		},
		errs:  map[Provider]error{},
		calls: map[Provider]int{},
	}
}

func (f *fakeFetcher) FetchModelList(_ context.Context, provider Provider) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[provider]++
	if err := f.errs[provider]; err != nil {
		return nil, err
	}
	return f.payloads[provider], nil
}

func (f *fakeFetcher) callCount(p Provider) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[p]
}

func newTestCatalog(t *testing.T, fetcher ModelListFetcher, policy *config.BlockList) *ModelCatalogService {
	t.Helper()
	svc, err := NewModelCatalogService(fetcher, policy, Settings{
		Providers: []Provider{ProviderOpenRouter, ProviderRequesty},
		CacheTTL:  time.Minute,
	}, zerolog.Nop())
	require.NoError(t, err)
	return svc
}

func TestListModels_MergesSortsAndFilters(t *testing.T) {
	policy := config.NewStaticBlockList(config.ModelPolicyFile{
		BlockedModels: []string{"meta-llama/llama-3.1-8b-instruct"},
	})
	svc := newTestCatalog(t, newFakeFetcher(), policy)

	result, err := svc.ListModels(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Failures)
	assert.Len(t, result.ParseErrors, 2)

	ids := make([]string, 0, len(result.Models))
	for _, m := range result.Models {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{
		"openrouter/anthropic/claude-3.5-sonnet",
		"openrouter/openrouter/auto",
		"requesty/deepseek/deepseek-r1",
		"requesty/openai/gpt-4.1",
	}, ids)
}

func TestListModels_ProviderFailureIsPartial(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.errs[ProviderRequesty] = errors.New("connection refused")
	svc := newTestCatalog(t, fetcher, nil)

	result, err := svc.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, ProviderRequesty, result.Failures[0].Provider)
	for _, m := range result.Models {
		assert.Equal(t, ProviderOpenRouter, m.Provider)
	}
}

func TestListModels_AllProvidersDown(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.errs[ProviderRequesty] = errors.New("timeout")
	fetcher.errs[ProviderOpenRouter] = errors.New("timeout")
	svc := newTestCatalog(t, fetcher, nil)

	_, err := svc.ListModels(context.Background())
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal))
}

func TestListModels_UsesCacheUntilRefresh(t *testing.T) {
	fetcher := newFakeFetcher()
	svc := newTestCatalog(t, fetcher, nil)
	ctx := context.Background()

	_, err := svc.ListModels(ctx)
	require.NoError(t, err)
	_, err = svc.ListModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.callCount(ProviderOpenRouter))

	svc.Refresh()
	_, err = svc.ListModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.callCount(ProviderOpenRouter))
}

func TestGetModel(t *testing.T) {
	policy := config.NewStaticBlockList(config.ModelPolicyFile{BlockedModels: []string{"openai/gpt-4.1"}})
	svc := newTestCatalog(t, newFakeFetcher(), policy)
	ctx := context.Background()

	m, err := svc.GetModel(ctx, "openrouter/anthropic/claude-3.5-sonnet")
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-3.5-sonnet", m.UpstreamID)

	m, err = svc.GetModel(ctx, "anthropic/claude-3.5-sonnet")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenRouter, m.Provider)

	_, err = svc.GetModel(ctx, "requesty/openai/gpt-4.1")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	_, err = svc.GetModel(ctx, "openrouter/does/not-exist")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	_, err = svc.GetModel(ctx, "  ")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}
