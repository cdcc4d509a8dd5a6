package usagehandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlima-server/internal/domain"
	"chatlima-server/internal/domain/tokenusage"
)

type fakeUsage struct {
	daily       []tokenusage.DailyAggregate
	gotUser     string
	start, end  time.Time
	platformHit bool
}

func (f *fakeUsage) GetMyUsage(_ context.Context, userID string, start, end time.Time) (*tokenusage.UsageResponse, error) {
	f.gotUser, f.start, f.end = userID, start, end
	return &tokenusage.UsageResponse{
		Period:     tokenusage.Period{StartDate: start, EndDate: end},
		TotalUsage: tokenusage.UsageSummary{TotalTokens: 300, RequestCount: 2, CreditsCharged: 1},
		ByModel:    []tokenusage.UsageSummary{{Model: "openrouter/a", TotalTokens: 300, RequestCount: 2}},
	}, nil
}

func (f *fakeUsage) GetMyDailyUsage(_ context.Context, userID string, start, end time.Time) ([]tokenusage.DailyAggregate, error) {
	f.gotUser, f.start, f.end = userID, start, end
	return f.daily, nil
}

func (f *fakeUsage) GetPlatformUsage(_ context.Context, start, end time.Time) (*tokenusage.PlatformUsageResponse, error) {
	f.platformHit, f.start, f.end = true, start, end
	return &tokenusage.PlatformUsageResponse{
		UsageResponse: tokenusage.UsageResponse{TotalUsage: tokenusage.UsageSummary{TotalTokens: 900}},
		TopUsers:      []tokenusage.UserUsage{{UserID: "user-1", TotalTokens: 900, RequestCount: 4, EstimatedCostUSD: decimal.Zero}},
	}, nil
}

var fixedNow = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func newEngine(usage UsageReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &UsageHandler{usageService: usage, now: func() time.Time { return fixedNow }}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			c.Set("principal", domain.Principal{ID: id, AuthMethod: domain.AuthMethodJWT})
		}
		c.Next()
	})
	r.GET("/api/usage/me", h.GetMyUsage)
	r.GET("/api/usage/me/daily", h.GetMyDailyUsage)
	r.GET("/api/usage/platform", h.GetPlatformUsage)
	return r
}

func get(r http.Handler, path, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUsageRequiresPrincipal(t *testing.T) {
	usage := &fakeUsage{}
	r := newEngine(usage)
	for _, path := range []string{"/api/usage/me", "/api/usage/me/daily"} {
		w := get(r, path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	assert.Empty(t, usage.gotUser)
}

func TestGetMyUsageDefaultsToLastThirtyDays(t *testing.T) {
	usage := &fakeUsage{}
	w := get(newEngine(usage), "/api/usage/me", "user-1")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "user-1", usage.gotUser)
	assert.Equal(t, fixedNow.AddDate(0, 0, -30), usage.start)
	assert.Equal(t, fixedNow, usage.end)

	var body tokenusage.UsageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(300), body.TotalUsage.TotalTokens)
	require.Len(t, body.ByModel, 1)
	assert.Equal(t, "openrouter/a", body.ByModel[0].Model)
}

func TestGetMyUsageParsesDateRange(t *testing.T) {
	usage := &fakeUsage{}
	w := get(newEngine(usage), "/api/usage/me?start_date=2025-06-01&end_date=2025-06-07", "user-1")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), usage.start)
	assert.Equal(t, time.Date(2025, 6, 7, 23, 59, 59, 0, time.UTC), usage.end)
}

func TestGetMyUsageIgnoresMalformedDates(t *testing.T) {
	usage := &fakeUsage{}
	w := get(newEngine(usage), "/api/usage/me?start_date=06/01/2025&end_date=yesterday", "user-1")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, fixedNow.AddDate(0, 0, -30), usage.start)
	assert.Equal(t, fixedNow, usage.end)
}

func TestGetMyDailyUsage(t *testing.T) {
	usage := &fakeUsage{}
	r := newEngine(usage)

	w := get(r, "/api/usage/me/daily", "user-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	usage.daily = []tokenusage.DailyAggregate{{
		Date:         time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
		TotalTokens:  120,
		RequestCount: 3,
	}}
	w = get(r, "/api/usage/me/daily", "user-1")
	require.Equal(t, http.StatusOK, w.Code)
	var days []tokenusage.DailyAggregate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &days))
	require.Len(t, days, 1)
	assert.Equal(t, int64(120), days[0].TotalTokens)
}

func TestGetPlatformUsage(t *testing.T) {
	usage := &fakeUsage{}
	w := get(newEngine(usage), "/api/usage/platform?start_date=2025-05-01", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.True(t, usage.platformHit)
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), usage.start)

	var body tokenusage.PlatformUsageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(900), body.TotalUsage.TotalTokens)
	require.Len(t, body.TopUsers, 1)
	assert.Equal(t, "user-1", body.TopUsers[0].UserID)
}
