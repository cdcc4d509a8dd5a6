package usagelimitrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chatlima-server/internal/domain/usagelimit"
	"chatlima-server/internal/infrastructure/database/dbschema"
	"chatlima-server/internal/utils/platformerrors"
)

type UsageLimitGormRepository struct {
	db *gorm.DB
}

var _ usagelimit.Repository = (*UsageLimitGormRepository)(nil)

func NewUsageLimitGormRepository(db *gorm.DB) usagelimit.Repository {
	return &UsageLimitGormRepository{db: db}
}

func (repo *UsageLimitGormRepository) FindOverride(ctx context.Context, userID string) (*usagelimit.Override, error) {
	var entity dbschema.UsageLimitOverride
	err := repo.db.WithContext(ctx).Where("user_id = ?", userID).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to load usage limit override", err, "7d2b9e4f-1a63-4c85-b0e7-5f3a8d1c6b92")
	}
	return entity.EtoD(), nil
}

// UpsertOverride replaces both limits; a nil limit clears that override.
func (repo *UsageLimitGormRepository) UpsertOverride(ctx context.Context, override *usagelimit.Override) (*usagelimit.Override, error) {
	if override.UpdatedAt.IsZero() {
		override.UpdatedAt = time.Now().UTC()
	}
	entity := dbschema.NewSchemaUsageLimitOverride(override)
	err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"daily_message_limit", "monthly_message_limit", "updated_at"}),
		}).
		Create(entity).
		Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to save usage limit override", err, "2e8c5a1d-9f47-4b36-8d0a-6c4e1b7f3a25")
	}
	return entity.EtoD(), nil
}
