package credithandler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chatlima-server/internal/domain/credit"
	middleware "chatlima-server/internal/interfaces/httpserver/middlewares"
	"chatlima-server/internal/interfaces/httpserver/responses"
)

const defaultTransactionLimit = 20

type CreditReader interface {
	GetBalance(ctx context.Context, userID string) (*credit.Balance, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]*credit.Transaction, error)
}

// CreditsResponse is the body of GET /api/credits.
type CreditsResponse struct {
	Balance      int64                 `json:"balance"`
	UpdatedAt    string                `json:"updatedAt,omitempty"`
	Transactions []*credit.Transaction `json:"transactions"`
}

type CreditHandler struct {
	credits CreditReader
}

func NewCreditHandler(credits *credit.CreditService) *CreditHandler {
	return &CreditHandler{credits: credits}
}

// GetCredits returns the caller's balance and the ?limit most recent ledger entries.
func (h *CreditHandler) GetCredits(c *gin.Context) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok || principal.ID == "" {
		responses.HandleAppError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}
	ctx := c.Request.Context()

	balance, err := h.credits.GetBalance(ctx, principal.ID)
	if err != nil {
		responses.HandleError(c, err, "Failed to load credits")
		return
	}

	limit := defaultTransactionLimit
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	txs, err := h.credits.ListTransactions(ctx, principal.ID, limit)
	if err != nil {
		responses.HandleError(c, err, "Failed to load credit transactions")
		return
	}
	if txs == nil {
		txs = []*credit.Transaction{}
	}

	resp := CreditsResponse{Balance: balance.Balance, Transactions: txs}
	if !balance.UpdatedAt.IsZero() {
		resp.UpdatedAt = balance.UpdatedAt.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}
