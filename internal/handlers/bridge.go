package handlers

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/avoru/habitude-chat/internal/feed"
	"github.com/avoru/habitude-chat/internal/handlers/dto"
	"github.com/avoru/habitude-chat/internal/models"
	"github.com/avoru/habitude-chat/internal/session"
	ws "github.com/avoru/habitude-chat/internal/websocket"
)

// Bridge пересылает события сессий подключённым UI-клиентам через хаб.
// Менеджер подставляется после создания: менеджеру при конструировании
// нужен колбэк событий, а колбэку — менеджер.
type Bridge struct {
	hub     *ws.Hub
	manager *session.Manager
}

func NewBridge(hub *ws.Hub) *Bridge {
	return &Bridge{hub: hub}
}

func (b *Bridge) SetManager(manager *session.Manager) {
	b.manager = manager
}

// OnEvent превращает событие ленты в кадр UI-протокола и рассылает
// его всем, у кого открыта беседа
func (b *Bridge) OnEvent(conversationID uuid.UUID, ev feed.Event) {
	frame := ws.Frame{
		ConversationID: &conversationID,
		UserID:         ev.UserID,
		Timestamp:      time.Now(),
	}

	switch ev.Type {
	case feed.EventInsert, feed.EventUpdate:
		if ev.Message == nil {
			return
		}
		if ev.Type == feed.EventInsert {
			frame.Type = ws.TypeMessageNew
		} else {
			frame.Type = ws.TypeMessageUpdate
		}
		frame.UserID = ev.Message.UserID
		resp := dto.NewMessageResponse(*ev.Message, b.lookup(conversationID))
		data, err := json.Marshal(resp)
		if err != nil {
			log.Printf("failed to marshal message frame: %v", err)
			return
		}
		frame.Data = data

	case feed.EventDelete:
		frame.Type = ws.TypeMessageDelete
		data, _ := json.Marshal(map[string]uuid.UUID{"message_id": ev.MessageID})
		frame.Data = data

	case feed.EventTyping:
		frame.Type = ws.TypeTyping

	case feed.EventTypingStop:
		frame.Type = ws.TypeTypingStop

	default:
		return
	}

	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("failed to marshal frame: %v", err)
		return
	}
	b.hub.SendToConversation(conversationID, data)
}

// lookup разрешает цели ответов по локальному хранилищу сессии
func (b *Bridge) lookup(conversationID uuid.UUID) func(uuid.UUID) (models.Message, bool) {
	if b.manager == nil {
		return nil
	}
	sess, ok := b.manager.Peek(conversationID)
	if !ok {
		return nil
	}
	return sess.Message
}
