package chatrepo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chatlima-server/internal/domain/chat"
	"chatlima-server/internal/infrastructure/database/dbschema"
	"chatlima-server/internal/utils/platformerrors"
)

type MessageGormRepository struct {
	db *gorm.DB
}

var _ chat.MessageRepository = (*MessageGormRepository)(nil)

func NewMessageGormRepository(db *gorm.DB) chat.MessageRepository {
	return &MessageGormRepository{db: db}
}

func (repo *MessageGormRepository) Upsert(ctx context.Context, chatID string, messages []*chat.Message) error {
	if len(messages) == 0 {
		return nil
	}
	rows := make([]*dbschema.Message, 0, len(messages))
	for _, m := range messages {
		rows = append(rows, dbschema.NewSchemaMessage(chatID, m))
	}
	err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		CreateInBatches(rows, 100).
		Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to save messages", err, "3e9d6b2a-8f14-4c7e-a5d0-1b8c4f7e2d93")
	}
	return nil
}

func (repo *MessageGormRepository) ListByChat(ctx context.Context, chatID string) ([]*chat.Message, error) {
	var entities []dbschema.Message
	err := repo.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to list messages", err, "6a2f8c4e-1d95-4b37-9e6a-8c0d3f5b7e19")
	}
	out := make([]*chat.Message, 0, len(entities))
	for i := range entities {
		out = append(out, entities[i].EtoD())
	}
	return out, nil
}
