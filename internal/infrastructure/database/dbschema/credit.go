package dbschema

import (
	"time"

	"chatlima-server/internal/domain/credit"
)

type CreditBalance struct {
	UserID    string `gorm:"type:varchar(64);primaryKey"`
	Balance   int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (CreditBalance) TableName() string { return "credit_balances" }

func (b *CreditBalance) EtoD() *credit.Balance {
	return &credit.Balance{UserID: b.UserID, Balance: b.Balance, UpdatedAt: b.UpdatedAt}
}

// CreditTransaction is an append-only ledger row.
type CreditTransaction struct {
	ID           string  `gorm:"type:varchar(64);primaryKey"`
	UserID       string  `gorm:"type:varchar(64);not null;index:idx_credit_transactions_user_created"`
	Amount       int64   `gorm:"not null"`
	BalanceAfter int64   `gorm:"not null"`
	Reason       string  `gorm:"type:varchar(50);not null"`
	Reference    *string `gorm:"type:varchar(255)"`
	CreatedAt    time.Time
}

func (CreditTransaction) TableName() string { return "credit_transactions" }

func NewSchemaCreditTransaction(t *credit.Transaction) *CreditTransaction {
	return &CreditTransaction{
		ID:           t.ID,
		UserID:       t.UserID,
		Amount:       t.Amount,
		BalanceAfter: t.BalanceAfter,
		Reason:       t.Reason,
		Reference:    t.Reference,
		CreatedAt:    t.CreatedAt,
	}
}

func (t *CreditTransaction) EtoD() *credit.Transaction {
	return &credit.Transaction{
		ID:           t.ID,
		UserID:       t.UserID,
		Amount:       t.Amount,
		BalanceAfter: t.BalanceAfter,
		Reason:       t.Reason,
		Reference:    t.Reference,
		CreatedAt:    t.CreatedAt,
	}
}
