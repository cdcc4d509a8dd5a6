package pricingrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"chatlima-server/internal/domain/pricing"
	"chatlima-server/internal/domain/query"
	"chatlima-server/internal/infrastructure/database/dbschema"
	"chatlima-server/internal/infrastructure/database/transaction"
	"chatlima-server/internal/utils/platformerrors"
)

type PricingGormRepository struct {
	db *transaction.Database
}

var _ pricing.Repository = (*PricingGormRepository)(nil)

func NewPricingGormRepository(db *transaction.Database) pricing.Repository {
	return &PricingGormRepository{db: db}
}

func (repo *PricingGormRepository) List(ctx context.Context, filter pricing.Filter, pagination *query.Pagination) ([]*pricing.ModelPricingInfo, int64, error) {
	q := repo.db.GetTx(ctx).Model(&dbschema.ModelPricing{})
	if filter.Provider != "" {
		q = q.Where("provider = ?", filter.Provider)
	}
	if filter.ModelID != "" {
		q = q.Where("model_id = ?", filter.ModelID)
	}
	if filter.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to count model pricing", err, "5c1a8e3f-7b26-4d94-a0c8-3e9f6d2b1a47")
	}

	var entities []dbschema.ModelPricing
	err := q.Session(&gorm.Session{}).
		Order("model_id ASC").
		Order("effective_from DESC").
		Limit(pagination.LimitOr(query.DefaultLimit)).
		Offset(pagination.OffsetOr(0)).
		Find(&entities).
		Error
	if err != nil {
		return nil, 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to list model pricing", err, "9f4d2b7e-3a81-4c56-b9e0-1d7a5c3f8e62")
	}
	out := make([]*pricing.ModelPricingInfo, 0, len(entities))
	for i := range entities {
		out = append(out, entities[i].EtoD())
	}
	return out, total, nil
}

func (repo *PricingGormRepository) FindActive(ctx context.Context, modelID string) (*pricing.ModelPricingInfo, error) {
	var entity dbschema.ModelPricing
	err := repo.db.GetTx(ctx).
		Where("model_id = ? AND is_active = ?", modelID, true).
		First(&entity).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to load active model pricing", err, "3a7e1c9d-6b42-4f85-8e0d-2c5b9a4f7d13")
	}
	return entity.EtoD(), nil
}

// ReplaceActive closes the currently active row of the model and inserts next as the only active one.
func (repo *PricingGormRepository) ReplaceActive(ctx context.Context, next *pricing.ModelPricingInfo, closedAt time.Time) error {
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		db := repo.db.GetTx(ctx)
		if err := db.Model(&dbschema.ModelPricing{}).
			Where("model_id = ? AND is_active = ?", next.ModelID, true).
			Updates(map[string]any{"is_active": false, "effective_to": closedAt}).Error; err != nil {
			return err
		}
		next.IsActive = true
		entity := dbschema.NewSchemaModelPricing(next)
		entity.ID = 0
		if err := db.Create(entity).Error; err != nil {
			return err
		}
		next.ID = entity.ID
		next.CreatedAt = entity.CreatedAt
		return nil
	})
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to replace model pricing", err, "8b2f6d4a-1e93-4c7b-a5d0-7f3e9c1b6a84")
	}
	return nil
}
