package cleanuprepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chatlima-server/internal/domain/cleanup"
	"chatlima-server/internal/domain/query"
	"chatlima-server/internal/infrastructure/database/dbschema"
	"chatlima-server/internal/infrastructure/database/transaction"
	"chatlima-server/internal/utils/platformerrors"
)

type CleanupGormRepository struct {
	db *transaction.Database
}

var _ cleanup.Repository = (*CleanupGormRepository)(nil)

func NewCleanupGormRepository(db *transaction.Database) cleanup.Repository {
	return &CleanupGormRepository{db: db}
}

func (repo *CleanupGormRepository) candidates(ctx context.Context, cutoff time.Time) *gorm.DB {
	return repo.db.GetTx(ctx).
		Model(&dbschema.User{}).
		Where("is_anonymous = ? AND last_active_at < ?", true, cutoff)
}

// FindCandidates returns the longest inactive anonymous users first.
func (repo *CleanupGormRepository) FindCandidates(ctx context.Context, cutoff time.Time, limit int) ([]cleanup.Candidate, error) {
	var rows []dbschema.User
	err := repo.candidates(ctx, cutoff).
		Select("id", "last_active_at").
		Order("last_active_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to find cleanup candidates", err, "6d3b9f1a-4e72-4c58-8a0d-1f7e3b9c5a26")
	}
	out := make([]cleanup.Candidate, 0, len(rows))
	for _, r := range rows {
		out = append(out, cleanup.Candidate{UserID: r.ID, LastActiveAt: r.LastActiveAt})
	}
	return out, nil
}

func (repo *CleanupGormRepository) CountCandidates(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	if err := repo.candidates(ctx, cutoff).Count(&count).Error; err != nil {
		return 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to count cleanup candidates", err, "2a8e5c1f-9b37-4d64-a0e9-5c2f8b1d7e43")
	}
	return count, nil
}

// DeleteUser removes an anonymous user with its usage records. Chats, messages and credits cascade.
func (repo *CleanupGormRepository) DeleteUser(ctx context.Context, userID string) error {
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		db := repo.db.GetTx(ctx)
		if err := db.Exec("DELETE FROM token_usage WHERE user_id = ?", userID).Error; err != nil {
			return err
		}
		result := db.Where("id = ? AND is_anonymous = ?", userID, true).Delete(&dbschema.User{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"anonymous user not found", err, "7f1c4a9e-3d26-4b85-9e0a-8c5d2f7b1e64")
	}
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to delete user", err, "4e9a2d6b-8c13-4f7e-b5a0-3d1f9c6e2b78")
	}
	return nil
}

func (repo *CleanupGormRepository) GetConfig(ctx context.Context) (*cleanup.Config, error) {
	var entity dbschema.CleanupConfig
	err := repo.db.GetTx(ctx).Where("id = ?", dbschema.CleanupConfigID).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to load cleanup config", err, "9c5e1b3a-7d48-4a26-8f0e-2b6d4c9a1f57")
	}
	return entity.EtoD(), nil
}

func (repo *CleanupGormRepository) SaveConfig(ctx context.Context, cfg *cleanup.Config) error {
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = time.Now().UTC()
	}
	err := repo.db.GetTx(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled", "threshold_days", "batch_size", "schedule", "updated_by", "updated_at"}),
		}).
		Create(dbschema.NewSchemaCleanupConfig(cfg)).
		Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to save cleanup config", err, "1b7d3f9e-5a62-4c84-a9e0-6f2c8d4b1a39")
	}
	return nil
}

func (repo *CleanupGormRepository) AppendLog(ctx context.Context, log *cleanup.ExecutionLog) error {
	if err := repo.db.GetTx(ctx).Create(dbschema.NewSchemaCleanupExecutionLog(log)).Error; err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to append cleanup log", err, "5a3f8c2d-1e79-4b46-8d0c-9e4b2a7f6d15")
	}
	return nil
}

// ListLogs returns execution logs, newest first.
func (repo *CleanupGormRepository) ListLogs(ctx context.Context, pagination *query.Pagination) ([]*cleanup.ExecutionLog, int64, error) {
	db := repo.db.GetTx(ctx)

	var total int64
	if err := db.Model(&dbschema.CleanupExecutionLog{}).Count(&total).Error; err != nil {
		return nil, 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to count cleanup logs", err, "8d6b2e4a-3f19-4c75-b0a8-7e1d5c3f9b26")
	}

	var entities []dbschema.CleanupExecutionLog
	err := db.Order("executed_at DESC").
		Limit(pagination.LimitOr(query.DefaultLimit)).
		Offset(pagination.OffsetOr(0)).
		Find(&entities).
		Error
	if err != nil {
		return nil, 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to list cleanup logs", err, "3c9a7f1e-6b24-4d58-9e0b-1a8f4d2c7e63")
	}
	out := make([]*cleanup.ExecutionLog, 0, len(entities))
	for i := range entities {
		out = append(out, entities[i].EtoD())
	}
	return out, total, nil
}
