package credit

import (
	"context"
	"errors"
	"time"
)

// Transaction reasons recorded in the credit ledger.
const (
	ReasonSignupBonus = "signup_bonus"
	ReasonGrant       = "grant"
	ReasonUsage       = "usage"
	ReasonWebSearch   = "web_search"
)

// Balance is the current credit balance of a user.
type Balance struct {
	UserID    string    `json:"userId"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Transaction is one ledger entry. Charges carry a negative Amount.
type Transaction struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balanceAfter"`
	Reason       string    `json:"reason"`
	Reference    *string   `json:"reference,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ErrInsufficientCredits is returned by Repository.Apply when a debit would leave the balance negative.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Repository persists balances and ledger entries.
type Repository interface {
	// GetBalance returns zero for users without a balance row.
	GetBalance(ctx context.Context, userID string) (*Balance, error)
	// Apply adds tx.Amount to the balance and appends tx to the ledger atomically.
	Apply(ctx context.Context, tx *Transaction) (*Balance, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]*Transaction, error)
}
