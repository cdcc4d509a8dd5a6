package cleanuphandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlima-server/internal/domain"
	"chatlima-server/internal/domain/cleanup"
	"chatlima-server/internal/domain/query"
	"chatlima-server/internal/utils/platformerrors"
)

type fakeRunner struct {
	params       *cleanup.ExecuteParams
	scheduled    bool
	result       *cleanup.ExecutionResult
	savedConfig  *cleanup.Config
	savedBy      string
	previewedFor int
}

func (f *fakeRunner) Execute(ctx context.Context, params cleanup.ExecuteParams) (*cleanup.ExecutionResult, error) {
	f.params = &params
	if !params.DryRun && params.ConfirmationToken != cleanup.ConfirmationToken {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "confirmation required", nil, "").WithCode("CONFIRMATION_REQUIRED")
	}
	return f.result, nil
}

func (f *fakeRunner) RunScheduled(context.Context) (*cleanup.ExecutionResult, error) {
	f.scheduled = true
	return f.result, nil
}

func (f *fakeRunner) Preview(_ context.Context, thresholdDays int) (*cleanup.PreviewResult, error) {
	f.previewedFor = thresholdDays
	return &cleanup.PreviewResult{ThresholdDays: thresholdDays, CandidatesFound: 7}, nil
}

func (f *fakeRunner) GetConfig(context.Context) (*cleanup.Config, error) {
	cfg := cleanup.DefaultConfig()
	return &cfg, nil
}

func (f *fakeRunner) UpdateConfig(_ context.Context, cfg cleanup.Config, adminUserID string) (*cleanup.Config, error) {
	f.savedConfig = &cfg
	f.savedBy = adminUserID
	return &cfg, nil
}

func (f *fakeRunner) ListLogs(context.Context, *query.Pagination) ([]*cleanup.ExecutionLog, int64, error) {
	return nil, 0, nil
}

func newEngine(f *fakeRunner, p domain.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &CleanupHandler{cleanup: f, logger: zerolog.Nop()}
	r := gin.New()
	g := r.Group("/api/admin/cleanup-users", func(c *gin.Context) {
		c.Set("principal", p)
		c.Next()
	})
	g.POST("/execute", h.Execute)
	g.GET("/preview", h.Preview)
	g.PUT("/config", h.UpdateConfig)
	g.GET("/logs", h.ListLogs)
	return r
}

func request(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var admin = domain.Principal{ID: "admin-1", AuthMethod: domain.AuthMethodJWT, Roles: []string{"admin"}}

func TestExecuteAdminRun(t *testing.T) {
	f := &fakeRunner{result: &cleanup.ExecutionResult{ExecutionID: "e1", UsersDeleted: 2, DeletedUserIDs: []string{"a", "b"}, Errors: []cleanup.UserError{}}}
	r := newEngine(f, admin)

	w := request(r, http.MethodPost, "/api/admin/cleanup-users/execute",
		`{"thresholdDays":60,"batchSize":10,"confirmationToken":"DELETE_ANONYMOUS_USERS"}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, f.params)
	assert.Equal(t, 60, f.params.ThresholdDays)
	assert.Equal(t, 10, f.params.BatchSize)
	assert.Equal(t, cleanup.TriggerAdmin, f.params.TriggeredBy)
	assert.Equal(t, "admin-1", f.params.AdminUserID)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 2, body["data"].(map[string]any)["usersDeleted"])
}

func TestExecuteWithoutConfirmation(t *testing.T) {
	f := &fakeRunner{}
	r := newEngine(f, admin)

	w := request(r, http.MethodPost, "/api/admin/cleanup-users/execute", "")

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "CONFIRMATION_REQUIRED")
	assert.Equal(t, cleanup.DefaultThresholdDays, f.params.ThresholdDays)
	assert.Equal(t, cleanup.DefaultBatchSize, f.params.BatchSize)
}

func TestExecutePartialFailureIs206(t *testing.T) {
	f := &fakeRunner{result: &cleanup.ExecutionResult{
		ExecutionID:    "e2",
		UsersDeleted:   1,
		DeletedUserIDs: []string{"a"},
		Errors:         []cleanup.UserError{{UserID: "b", Error: "fk violation"}},
	}}
	r := newEngine(f, admin)

	w := request(r, http.MethodPost, "/api/admin/cleanup-users/execute", `{"confirmationToken":"DELETE_ANONYMOUS_USERS"}`)

	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Contains(t, w.Body.String(), "fk violation")
}

func TestExecuteFromCronUsesStoredConfig(t *testing.T) {
	f := &fakeRunner{result: &cleanup.ExecutionResult{Skipped: true, DeletedUserIDs: []string{}, Errors: []cleanup.UserError{}}}
	r := newEngine(f, domain.Principal{ID: "cron", AuthMethod: domain.AuthMethodCron})

	w := request(r, http.MethodPost, "/api/admin/cleanup-users/execute", `{"thresholdDays":3}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.scheduled)
	assert.Nil(t, f.params)
	assert.Contains(t, w.Body.String(), "disabled")
}

func TestPreviewAndConfig(t *testing.T) {
	f := &fakeRunner{}
	r := newEngine(f, admin)

	w := request(r, http.MethodGet, "/api/admin/cleanup-users/preview?thresholdDays=90", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 90, f.previewedFor)

	w = request(r, http.MethodGet, "/api/admin/cleanup-users/preview?thresholdDays=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = request(r, http.MethodPut, "/api/admin/cleanup-users/config",
		`{"enabled":true,"thresholdDays":30,"batchSize":25,"schedule":"0 4 * * *"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, f.savedConfig)
	assert.True(t, f.savedConfig.Enabled)
	assert.Equal(t, "admin-1", f.savedBy)

	w = request(r, http.MethodGet, "/api/admin/cleanup-users/logs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}
