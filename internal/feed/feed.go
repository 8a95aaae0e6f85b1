package feed

import (
	"github.com/google/uuid"

	"github.com/avoru/habitude-chat/internal/models"
)

// EventType определяет виды событий ленты изменений
type EventType string

const (
	// События строк коллекции сообщений
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"

	// События присутствия (набор текста)
	EventTyping     EventType = "typing"
	EventTypingStop EventType = "typing_stop"
)

// Event — одно уведомление ленты. Для insert/update заполнен Message,
// для delete — MessageID, для typing — UserID.
// Гарантии доставки: at-least-once, порядок не гарантируется.
type Event struct {
	Type      EventType       `json:"type"`
	Message   *models.Message `json:"message,omitempty"`
	MessageID uuid.UUID       `json:"message_id,omitempty"`
	UserID    uuid.UUID       `json:"user_id,omitempty"`
}

// Subscription — открытая подписка на ленту одной беседы.
// Канал Events закрывается при обрыве подписки: потребитель обязан
// перечитать коллекцию целиком и подписаться заново, а не ждать
// продолжения с места обрыва.
type Subscription struct {
	Events <-chan Event

	closeFn func()
}

// NewSubscription оборачивает канал событий; closeFn может быть nil
func NewSubscription(events <-chan Event, closeFn func()) *Subscription {
	return &Subscription{Events: events, closeFn: closeFn}
}

func (s *Subscription) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}
