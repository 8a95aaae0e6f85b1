package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation — общий таймлайн сообщений сообщества.
// Участники и их профили живут в основном бэкенде, здесь только сам таймлайн.
type Conversation struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`

	Messages []Message `gorm:"foreignKey:ConversationID" json:"-"`
}
