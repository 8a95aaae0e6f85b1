package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/avoru/habitude-chat/internal/models"
)

func (d *Database) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	return d.db.WithContext(ctx).Create(conv).Error
}

func (d *Database) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := d.db.WithContext(ctx).First(&conv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (d *Database) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := d.db.WithContext(ctx).Order("created_at ASC").Find(&convs).Error
	return convs, err
}
