package creditrepo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chatlima-server/internal/domain/credit"
	"chatlima-server/internal/infrastructure/database/dbschema"
	"chatlima-server/internal/infrastructure/database/transaction"
	"chatlima-server/internal/utils/platformerrors"
)

type CreditGormRepository struct {
	db *transaction.Database
}

var _ credit.Repository = (*CreditGormRepository)(nil)

func NewCreditGormRepository(db *transaction.Database) credit.Repository {
	return &CreditGormRepository{db: db}
}

// GetBalance returns a zero balance for users without a balance row.
func (repo *CreditGormRepository) GetBalance(ctx context.Context, userID string) (*credit.Balance, error) {
	var entity dbschema.CreditBalance
	err := repo.db.GetTx(ctx).Where("user_id = ?", userID).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &credit.Balance{UserID: userID}, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to load credit balance", err, "1c6e9a3f-5b28-4d74-8a0e-2f9b7d4c6e13")
	}
	return entity.EtoD(), nil
}

// Apply locks the balance row, applies the signed amount and appends the ledger entry in one transaction.
func (repo *CreditGormRepository) Apply(ctx context.Context, tx *credit.Transaction) (*credit.Balance, error) {
	var result *credit.Balance
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		db := repo.db.GetTx(ctx)
		now := time.Now().UTC()

		if err := db.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&dbschema.CreditBalance{UserID: tx.UserID, UpdatedAt: now}).Error; err != nil {
			return err
		}

		var row dbschema.CreditBalance
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", tx.UserID).
			First(&row).Error; err != nil {
			return err
		}

		next := row.Balance + tx.Amount
		if next < 0 {
			return credit.ErrInsufficientCredits
		}
		if err := db.Model(&dbschema.CreditBalance{}).
			Where("user_id = ?", tx.UserID).
			Updates(map[string]any{"balance": next, "updated_at": now}).Error; err != nil {
			return err
		}

		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		tx.BalanceAfter = next
		tx.CreatedAt = now
		if err := db.Create(dbschema.NewSchemaCreditTransaction(tx)).Error; err != nil {
			return err
		}
		result = &credit.Balance{UserID: tx.UserID, Balance: next, UpdatedAt: now}
		return nil
	})
	if errors.Is(err, credit.ErrInsufficientCredits) {
		return nil, err
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to apply credit transaction", err, "8e3a1d7c-6f49-4b25-9c0e-4d8b2a6f1e37")
	}
	return result, nil
}

func (repo *CreditGormRepository) ListTransactions(ctx context.Context, userID string, limit int) ([]*credit.Transaction, error) {
	var entities []dbschema.CreditTransaction
	err := repo.db.GetTx(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to list credit transactions", err, "4b9f2e6a-3c71-4d8e-a5b0-9e1c7f3d2a68")
	}
	out := make([]*credit.Transaction, 0, len(entities))
	for i := range entities {
		out = append(out, entities[i].EtoD())
	}
	return out, nil
}
