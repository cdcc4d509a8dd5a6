package pricinghandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlima-server/internal/domain"
	"chatlima-server/internal/domain/pricing"
	"chatlima-server/internal/domain/query"
	middleware "chatlima-server/internal/interfaces/httpserver/middlewares"
)

type memoryPricing struct {
	rows       []*pricing.ModelPricingInfo
	filter     pricing.Filter
	pagination *query.Pagination
}

func (r *memoryPricing) List(_ context.Context, f pricing.Filter, p *query.Pagination) ([]*pricing.ModelPricingInfo, int64, error) {
	r.filter, r.pagination = f, p
	var matched []*pricing.ModelPricingInfo
	for _, row := range r.rows {
		if (f.ActiveOnly && !row.IsActive) || (f.Provider != "" && row.Provider != f.Provider) || (f.ModelID != "" && row.ModelID != f.ModelID) {
			continue
		}
		matched = append(matched, row)
	}
	total := int64(len(matched))
	offset, limit := p.OffsetOr(0), p.LimitOr(len(matched))
	if offset > len(matched) {
		offset = len(matched)
	}
	end := min(offset+limit, len(matched))
	return matched[offset:end], total, nil
}

func (r *memoryPricing) FindActive(_ context.Context, modelID string) (*pricing.ModelPricingInfo, error) {
	for _, row := range r.rows {
		if row.ModelID == modelID && row.IsActive {
			return row, nil
		}
	}
	return nil, nil
}

func (r *memoryPricing) ReplaceActive(_ context.Context, next *pricing.ModelPricingInfo, closedAt time.Time) error {
	for _, row := range r.rows {
		if row.ModelID == next.ModelID && row.IsActive {
			row.IsActive = false
			row.EffectiveTo = &closedAt
		}
	}
	next.ID = uint(len(r.rows) + 1)
	r.rows = append(r.rows, next)
	return nil
}

func row(model, provider string, active bool) *pricing.ModelPricingInfo {
	return &pricing.ModelPricingInfo{
		ModelID:          model,
		Provider:         provider,
		InputTokenPrice:  decimal.RequireFromString("0.000001"),
		OutputTokenPrice: decimal.RequireFromString("0.000002"),
		Currency:         "USD",
		IsActive:         active,
	}
}

// newEngine mirrors the pricing routes; X-Test-User and X-Test-Role stand in for the bearer token.
func newEngine(repo *memoryPricing) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &PricingHandler{pricing: pricing.NewPricingService(repo, nil, zerolog.Nop())}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			p := domain.Principal{ID: id, AuthMethod: domain.AuthMethodJWT}
			if role := c.GetHeader("X-Test-Role"); role != "" {
				p.Roles = []string{role}
			}
			c.Set("principal", p)
		}
		c.Next()
	})
	r.GET("/api/pricing/models", h.ListPricing)
	r.PUT("/api/pricing/models", middleware.RequireAdmin(), h.UpsertPricing)
	return r
}

func do(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var admin = map[string]string{"X-Test-User": "admin-1", "X-Test-Role": "admin"}

func TestListPricingPagesAndFilters(t *testing.T) {
	repo := &memoryPricing{rows: []*pricing.ModelPricingInfo{
		row("openrouter/a", "openrouter", true),
		row("openrouter/b", "openrouter", true),
		row("openrouter/c", "openrouter", false),
		row("requesty/a", "requesty", true),
	}}
	r := newEngine(repo)

	w := do(r, http.MethodGet, "/api/pricing/models?page=2&limit=1&provider=%20openrouter%20&activeOnly=true", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, pricing.Filter{Provider: "openrouter", ActiveOnly: true}, repo.filter)
	assert.Equal(t, 1, repo.pagination.OffsetOr(0))

	var body struct {
		Data  []pricing.ModelPricingInfo `json:"data"`
		Total int64                      `json:"total"`
		Page  int                        `json:"page"`
		Limit int                        `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body.Total)
	assert.Equal(t, 2, body.Page)
	assert.Equal(t, 1, body.Limit)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "openrouter/b", body.Data[0].ModelID)
}

func TestListPricingEmptyIsArray(t *testing.T) {
	w := do(newEngine(&memoryPricing{}), http.MethodGet, "/api/pricing/models?modelId=none", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[],"total":0,"page":1,"limit":20}`, w.Body.String())
}

func TestListPricingRejectsBadQuery(t *testing.T) {
	r := newEngine(&memoryPricing{})

	w := do(r, http.MethodGet, "/api/pricing/models?limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_PARAMETERS")

	w = do(r, http.MethodGet, "/api/pricing/models?activeOnly=maybe", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpsertPricingIsAdminOnly(t *testing.T) {
	repo := &memoryPricing{}
	r := newEngine(repo)
	body := `{"modelId":"openrouter/a","provider":"openrouter","inputTokenPrice":"0.000003","outputTokenPrice":"0.000015"}`

	w := do(r, http.MethodPut, "/api/pricing/models", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPut, "/api/pricing/models", body, map[string]string{"X-Test-User": "user-1"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"success":false,"error":{"code":"FORBIDDEN","message":"Admin access required"}}`, w.Body.String())
	assert.Empty(t, repo.rows)

	w = do(r, http.MethodPut, "/api/pricing/models", body, admin)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool                     `json:"success"`
		Data    pricing.ModelPricingInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Data.IsActive)
	assert.Equal(t, "USD", resp.Data.Currency)
	assert.True(t, decimal.RequireFromString("0.000015").Equal(resp.Data.OutputTokenPrice))
	require.Len(t, repo.rows, 1)
}

func TestUpsertPricingValidation(t *testing.T) {
	repo := &memoryPricing{}
	r := newEngine(repo)

	cases := map[string]string{
		"malformed json":   `{"modelId":`,
		"missing provider": `{"modelId":"openrouter/a","inputTokenPrice":"1","outputTokenPrice":"1"}`,
		"negative price":   `{"modelId":"openrouter/a","provider":"openrouter","inputTokenPrice":"-0.1","outputTokenPrice":"1"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(r, http.MethodPut, "/api/pricing/models", body, admin)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp struct {
				Success bool `json:"success"`
				Error   struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, "INVALID_PARAMETERS", resp.Error.Code)
		})
	}
	assert.Empty(t, repo.rows)
}
