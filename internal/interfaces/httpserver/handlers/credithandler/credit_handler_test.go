package credithandler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlima-server/internal/domain"
	"chatlima-server/internal/domain/credit"
)

type fakeCredits struct {
	balance  *credit.Balance
	txs      []*credit.Transaction
	err      error
	gotUser  string
	gotLimit int
}

func (f *fakeCredits) GetBalance(_ context.Context, userID string) (*credit.Balance, error) {
	f.gotUser = userID
	if f.err != nil {
		return nil, f.err
	}
	return f.balance, nil
}

func (f *fakeCredits) ListTransactions(_ context.Context, _ string, limit int) ([]*credit.Transaction, error) {
	f.gotLimit = limit
	return f.txs, nil
}

func newEngine(credits CreditReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &CreditHandler{credits: credits}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			c.Set("principal", domain.Principal{ID: id, AuthMethod: domain.AuthMethodJWT})
		}
		c.Next()
	})
	r.GET("/api/credits", h.GetCredits)
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

func TestGetCreditsRequiresPrincipal(t *testing.T) {
	credits := &fakeCredits{}
	w := get(newEngine(credits), "/api/credits", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
	assert.Empty(t, credits.gotUser)
}

func TestGetCreditsReturnsBalanceAndLedger(t *testing.T) {
	credits := &fakeCredits{
		balance: &credit.Balance{UserID: "user-1", Balance: 42, UpdatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		txs: []*credit.Transaction{{
			ID: "tx-1", UserID: "user-1", Amount: -3, BalanceAfter: 42, Reason: "usage",
			CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		}},
	}
	w := get(newEngine(credits), "/api/credits?limit=5", "user-1")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "user-1", credits.gotUser)
	assert.Equal(t, 5, credits.gotLimit)
	assert.JSONEq(t, `{
		"balance": 42,
		"updatedAt": "2025-03-01T12:00:00Z",
		"transactions": [{"id":"tx-1","userId":"user-1","amount":-3,"balanceAfter":42,"reason":"usage","createdAt":"2025-03-01T12:00:00Z"}]
	}`, w.Body.String())
}

func TestGetCreditsEmptyLedger(t *testing.T) {
	credits := &fakeCredits{balance: &credit.Balance{UserID: "user-2"}}
	w := get(newEngine(credits), "/api/credits?limit=abc", "user-2")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, defaultTransactionLimit, credits.gotLimit)
	assert.JSONEq(t, `{"balance":0,"transactions":[]}`, w.Body.String())
}

func TestGetCreditsStoreFailure(t *testing.T) {
	credits := &fakeCredits{err: errors.New("db down")}
	w := get(newEngine(credits), "/api/credits", "user-1")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
