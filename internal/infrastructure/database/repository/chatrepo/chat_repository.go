package chatrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chatlima-server/internal/domain/chat"
	"chatlima-server/internal/domain/query"
	"chatlima-server/internal/infrastructure/database/dbschema"
	"chatlima-server/internal/utils/platformerrors"
)

type ChatGormRepository struct {
	db *gorm.DB
}

var _ chat.ChatRepository = (*ChatGormRepository)(nil)

func NewChatGormRepository(db *gorm.DB) chat.ChatRepository {
	return &ChatGormRepository{db: db}
}

func (repo *ChatGormRepository) InsertIfAbsent(ctx context.Context, c *chat.Chat) (bool, error) {
	result := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(dbschema.NewSchemaChat(c))
	if result.Error != nil {
		return false, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to create chat", result.Error, "4f8a2c6e-1b93-4d7a-8e05-9c3b6f1d2a87")
	}
	return result.RowsAffected > 0, nil
}

func (repo *ChatGormRepository) FindByID(ctx context.Context, id string) (*chat.Chat, error) {
	var entity dbschema.Chat
	err := repo.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to find chat", err, "8d2e5b1f-6a47-4c93-b0e8-3f7a1c9d5e26")
	}
	return entity.EtoD(), nil
}

func (repo *ChatGormRepository) Touch(ctx context.Context, id string, at time.Time) error {
	err := repo.db.WithContext(ctx).
		Model(&dbschema.Chat{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", at).
		Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to touch chat", err, "2b6f9d3a-7e15-4a8c-9d40-6c1e8b3f7a52")
	}
	return nil
}

// ListByUser returns the user's chats, most recently updated first.
func (repo *ChatGormRepository) ListByUser(ctx context.Context, userID string, pagination *query.Pagination) ([]*chat.Chat, int64, error) {
	base := repo.db.WithContext(ctx).Model(&dbschema.Chat{}).Where("user_id = ?", userID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to count chats", err, "9a3c7e1d-4f28-4b6a-8c95-1e7d3b9f2a60")
	}

	order := "updated_at DESC"
	if pagination != nil && pagination.Order == "asc" {
		order = "updated_at ASC"
	}
	var entities []dbschema.Chat
	err := base.Session(&gorm.Session{}).
		Order(order).
		Order("id").
		Limit(pagination.LimitOr(query.DefaultLimit)).
		Offset(pagination.OffsetOr(0)).
		Find(&entities).
		Error
	if err != nil {
		return nil, 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to list chats", err, "5e1b8d4a-2c67-4f93-a0d8-7b3e9c6f1d24")
	}

	chats := make([]*chat.Chat, 0, len(entities))
	for i := range entities {
		chats = append(chats, entities[i].EtoD())
	}
	return chats, total, nil
}

// Delete removes the chat when it belongs to userID. Messages go with it through the foreign key.
func (repo *ChatGormRepository) Delete(ctx context.Context, id, userID string) (bool, error) {
	result := repo.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&dbschema.Chat{})
	if result.Error != nil {
		return false, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to delete chat", result.Error, "7c4a1e9b-3d58-4e26-b1f7-0a9d6c3e8b15")
	}
	return result.RowsAffected > 0, nil
}
