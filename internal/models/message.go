package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Message хранит одно сообщение беседы.
// Строка никогда не удаляется физически: пользовательское удаление
// выставляет IsDeleted, тело при этом скрывается при рендеринге.
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"not null;index" json:"conversation_id"`
	UserID         uuid.UUID `gorm:"not null" json:"user_id"`
	Body           string    `json:"body"`

	// Вложение: публичный URL и исходное имя файла
	AttachmentURL  string `json:"attachment_url,omitempty"`
	AttachmentName string `json:"attachment_name,omitempty"`

	// Ответ на другое сообщение той же беседы (может остаться висячим, если цель удалена)
	ReplyToID *uuid.UUID `gorm:"type:uuid" json:"reply_to_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	IsEdited  bool      `gorm:"default:false" json:"is_edited"`
	IsDeleted bool      `gorm:"default:false" json:"is_deleted"`

	// Реакции и отметки о прочтении хранятся целиком на строке сообщения:
	// единица записи — весь список, не дельта
	Reactions ReactionList `gorm:"type:jsonb;default:'[]'" json:"reactions"`
	SeenBy    UserIDSet    `gorm:"type:jsonb;default:'[]'" json:"seen_by"`
}

// ReactionEntry — один эмодзи и множество отреагировавших пользователей.
// Эмодзи встречается в списке не более одного раза, пользователь в
// пределах записи — не более одного раза.
type ReactionEntry struct {
	Emoji string      `json:"emoji"`
	Users []uuid.UUID `json:"users"`
}

type ReactionList []ReactionEntry

func (r ReactionList) Value() (driver.Value, error) {
	if r == nil {
		r = ReactionList{}
	}
	return json.Marshal(r)
}

func (r *ReactionList) Scan(value interface{}) error {
	if value == nil {
		*r = ReactionList{}
		return nil
	}
	data, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return errors.New("unsupported type for ReactionList")
		}
		data = []byte(s)
	}
	return json.Unmarshal(data, r)
}

// Has проверяет, есть ли у пользователя реакция данным эмодзи
func (r ReactionList) Has(emoji string, userID uuid.UUID) bool {
	for _, entry := range r {
		if entry.Emoji != emoji {
			continue
		}
		for _, u := range entry.Users {
			if u == userID {
				return true
			}
		}
	}
	return false
}

// UserIDSet — множество идентификаторов пользователей в jsonb-колонке
type UserIDSet []uuid.UUID

func (s UserIDSet) Value() (driver.Value, error) {
	if s == nil {
		s = UserIDSet{}
	}
	return json.Marshal(s)
}

func (s *UserIDSet) Scan(value interface{}) error {
	if value == nil {
		*s = UserIDSet{}
		return nil
	}
	data, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("unsupported type for UserIDSet")
		}
		data = []byte(str)
	}
	return json.Unmarshal(data, s)
}

func (s UserIDSet) Contains(userID uuid.UUID) bool {
	for _, u := range s {
		if u == userID {
			return true
		}
	}
	return false
}
