package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/avoru/habitude-chat/internal/models"
)

// ListMessages возвращает все сообщения беседы в порядке отображения:
// по возрастанию created_at, при равенстве — по идентификатору
func (d *Database) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := d.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// InsertMessage сохраняет сообщение; идентификатор присваивает база
func (d *Database) InsertMessage(ctx context.Context, msg *models.Message) error {
	return d.db.WithContext(ctx).Create(msg).Error
}

func (d *Database) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	if err := d.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateMessage записывает строку целиком: реакции и отметки о
// прочтении обновляются всем списком, не дельтой
func (d *Database) UpdateMessage(ctx context.Context, msg *models.Message) error {
	return d.db.WithContext(ctx).Save(msg).Error
}

// DeleteMessage физически удаляет строку. Используется только для
// структурных исправлений; пользовательское удаление — это UpdateMessage
// с флагом is_deleted.
func (d *Database) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	return d.db.WithContext(ctx).Delete(&models.Message{}, "id = ?", id).Error
}
