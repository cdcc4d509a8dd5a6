package limithandler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlima-server/internal/domain"
	"chatlima-server/internal/domain/usagelimit"
	"chatlima-server/internal/domain/user"
	"chatlima-server/internal/utils/platformerrors"
)

type fakeLimits struct {
	subject usagelimit.Subject
	updated string
	daily   *int64
	monthly *int64
}

func (f *fakeLimits) GetLimits(_ context.Context, subject usagelimit.Subject) (*usagelimit.UsageView, error) {
	f.subject = subject
	return &usagelimit.UsageView{UserID: subject.UserID, Limits: usagelimit.Limits{Daily: 20, Monthly: 600}}, nil
}

func (f *fakeLimits) UpdateLimits(_ context.Context, userID string, daily, monthly *int64) (*usagelimit.Override, error) {
	f.updated, f.daily, f.monthly = userID, daily, monthly
	return &usagelimit.Override{UserID: userID, DailyMessageLimit: daily, MonthlyMessageLimit: monthly}, nil
}

type fakeUsers map[string]*user.User

func (f fakeUsers) GetUser(ctx context.Context, id string) (*user.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "user not found", nil, "")
}

type fakeCredits map[string]int64

func (f fakeCredits) HasCredits(_ context.Context, userID string, min int64) (bool, error) {
	return f[userID] >= min, nil
}

func newEngine(l *fakeLimits, p domain.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &LimitHandler{
		limits:  l,
		users:   fakeUsers{"anon-9": {ID: "anon-9", IsAnonymous: true}},
		credits: fakeCredits{"paid": 500},
		logger:  zerolog.Nop(),
	}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if p.ID != "" {
			c.Set("principal", p)
		}
		c.Next()
	})
	r.GET("/api/limits/usage", h.GetLimits)
	r.PUT("/api/limits/usage", h.UpdateLimits)
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetLimitsForCaller(t *testing.T) {
	l := &fakeLimits{}
	w := serve(newEngine(l, domain.Principal{ID: "paid", AuthMethod: domain.AuthMethodJWT}), http.MethodGet, "/api/limits/usage", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paid", l.subject.UserID)
	assert.True(t, l.subject.HasCredits)
	assert.Contains(t, w.Body.String(), `"dailyMessageLimit":20`)

	w = serve(newEngine(l, domain.Principal{ID: "free", AuthMethod: domain.AuthMethodJWT}), http.MethodGet, "/api/limits/usage", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, l.subject.HasCredits)

	w = serve(newEngine(l, domain.Principal{}), http.MethodGet, "/api/limits/usage", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetLimitsForAnotherUserIsAdminOnly(t *testing.T) {
	l := &fakeLimits{}
	w := serve(newEngine(l, domain.Principal{ID: "free", AuthMethod: domain.AuthMethodJWT}), http.MethodGet, "/api/limits/usage?userId=anon-9", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := domain.Principal{ID: "boss", AuthMethod: domain.AuthMethodJWT, Roles: []string{"admin"}}
	w = serve(newEngine(l, admin), http.MethodGet, "/api/limits/usage?userId=anon-9", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anon-9", l.subject.UserID)
	assert.True(t, l.subject.IsAnonymous)
	assert.False(t, l.subject.HasCredits)

	w = serve(newEngine(l, admin), http.MethodGet, "/api/limits/usage?userId=ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateLimits(t *testing.T) {
	l := &fakeLimits{}
	admin := domain.Principal{ID: "boss", AuthMethod: domain.AuthMethodJWT, Roles: []string{"admin"}}
	r := newEngine(l, admin)

	w := serve(r, http.MethodPut, "/api/limits/usage", `{"userId":" u7 ","dailyMessageLimit":5,"monthlyMessageLimit":null}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u7", l.updated)
	require.NotNil(t, l.daily)
	assert.EqualValues(t, 5, *l.daily)
	assert.Nil(t, l.monthly)
	assert.Contains(t, w.Body.String(), `"success":true`)

	w = serve(r, http.MethodPut, "/api/limits/usage", `{"dailyMessageLimit":5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_PARAMETERS")
}
