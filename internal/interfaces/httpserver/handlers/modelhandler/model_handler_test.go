package modelhandler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlima-server/internal/domain"
	"chatlima-server/internal/domain/catalog"
)

type fakeCatalog struct {
	result    *catalog.CatalogResult
	refreshed bool
	reloadErr error
}

func (f *fakeCatalog) ListModels(context.Context) (*catalog.CatalogResult, error) {
	return f.result, nil
}

func (f *fakeCatalog) ReloadPolicy() error { return f.reloadErr }

func (f *fakeCatalog) Refresh() { f.refreshed = true }

func newEngine(f *fakeCatalog, p *domain.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &ModelHandler{catalog: f, logger: zerolog.Nop()}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if p != nil {
			c.Set("principal", *p)
		}
		c.Next()
	})
	r.GET("/api/models", h.ListModels)
	r.POST("/api/admin/models/blocklist/reload", h.ReloadBlocklist)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestListModelsReportsUnavailableProviders(t *testing.T) {
	f := &fakeCatalog{result: &catalog.CatalogResult{
		Models: []catalog.ModelInfo{
			{ID: "openrouter/openai/gpt-4o-mini", UpstreamID: "openai/gpt-4o-mini", Provider: catalog.ProviderOpenRouter, Name: "GPT-4o mini"},
		},
		ParseErrors: []*catalog.ParseError{{}},
		Failures:    []catalog.ProviderFailure{{Provider: catalog.ProviderRequesty, Err: errors.New("timeout")}},
	}}

	w := get(newEngine(f, nil), "/api/models")

	require.Equal(t, http.StatusOK, w.Code)
	var body ModelListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Models, 1)
	assert.Equal(t, "openrouter/openai/gpt-4o-mini", body.Models[0].ID)
	assert.Equal(t, []string{"requesty"}, body.UnavailableProviders)
	assert.Equal(t, 1, body.SkippedModels)
	assert.False(t, f.refreshed)
}

func TestListModelsEmptyCatalogIsArray(t *testing.T) {
	w := get(newEngine(&fakeCatalog{result: &catalog.CatalogResult{}}, nil), "/api/models")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"models":[]}`, w.Body.String())
}

func TestRefreshIsAdminOnly(t *testing.T) {
	user := &domain.Principal{ID: "u1", AuthMethod: domain.AuthMethodJWT}
	admin := &domain.Principal{ID: "u2", AuthMethod: domain.AuthMethodJWT, Roles: []string{"admin"}}

	f := &fakeCatalog{result: &catalog.CatalogResult{}}
	w := get(newEngine(f, nil), "/api/models?refresh=true")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = get(newEngine(f, user), "/api/models?refresh=true")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, f.refreshed)

	w = get(newEngine(f, admin), "/api/models?refresh=true")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.refreshed)

	w = get(newEngine(f, admin), "/api/models?refresh=maybe")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReloadBlocklist(t *testing.T) {
	f := &fakeCatalog{}
	r := newEngine(f, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/admin/models/blocklist/reload", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	f.reloadErr = errors.New("bad yaml")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/admin/models/blocklist/reload", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
