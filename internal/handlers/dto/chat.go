package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/avoru/habitude-chat/internal/models"
)

// Текст-заполнители для рендеринга: тело удалённого сообщения и
// недоступная цель ответа никогда не показываются как есть
const (
	DeletedPlaceholder = "Message deleted"
	ReplyUnavailable   = "Original message unavailable"
)

type SendRequest struct {
	Body      string     `json:"body"`
	ReplyToID *uuid.UUID `json:"reply_to_id,omitempty"`
}

type EditRequest struct {
	Body string `json:"body" binding:"required"`
}

type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

type CreateConversationRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// ReactionGroup — отображаемый вид одной реакции: эмодзи, счётчик
// и кто именно отреагировал
type ReactionGroup struct {
	Emoji string      `json:"emoji"`
	Count int         `json:"count"`
	Users []uuid.UUID `json:"users"`
}

// ReplyPreview — превью цели ответа. Если цель удалена или отсутствует,
// Available=false и Body содержит заполнитель.
type ReplyPreview struct {
	ID        uuid.UUID `json:"id"`
	Available bool      `json:"available"`
	UserID    uuid.UUID `json:"user_id,omitempty"`
	Body      string    `json:"body"`
}

type MessageResponse struct {
	ID             uuid.UUID       `json:"id"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	UserID         uuid.UUID       `json:"user_id"`
	Body           string          `json:"body"`
	AttachmentURL  string          `json:"attachment_url,omitempty"`
	AttachmentName string          `json:"attachment_name,omitempty"`
	Reply          *ReplyPreview   `json:"reply,omitempty"`
	IsEdited       bool            `json:"is_edited"`
	IsDeleted      bool            `json:"is_deleted"`
	Reactions      []ReactionGroup `json:"reactions"`
	SeenBy         []uuid.UUID     `json:"seen_by"`
	CreatedAt      time.Time       `json:"created_at"`
}

type DayGroupResponse struct {
	Label    string            `json:"label"`
	Date     string            `json:"date"`
	Messages []MessageResponse `json:"messages"`
}

// NewMessageResponse готовит сообщение к показу. lookup разрешает цель
// ответа по локальному хранилищу; nil допустим.
func NewMessageResponse(msg models.Message, lookup func(uuid.UUID) (models.Message, bool)) MessageResponse {
	resp := MessageResponse{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		UserID:         msg.UserID,
		Body:           msg.Body,
		AttachmentURL:  msg.AttachmentURL,
		AttachmentName: msg.AttachmentName,
		IsEdited:       msg.IsEdited,
		IsDeleted:      msg.IsDeleted,
		Reactions:      reactionGroups(msg.Reactions),
		SeenBy:         msg.SeenBy,
		CreatedAt:      msg.CreatedAt,
	}
	if resp.SeenBy == nil {
		resp.SeenBy = []uuid.UUID{}
	}

	// У удалённого сообщения скрывается и тело, и вложение — строка
	// остаётся ради непрерывности таймлайна
	if msg.IsDeleted {
		resp.Body = DeletedPlaceholder
		resp.AttachmentURL = ""
		resp.AttachmentName = ""
	}

	if msg.ReplyToID != nil {
		resp.Reply = replyPreview(*msg.ReplyToID, lookup)
	}

	return resp
}

// replyPreview деградирует мягко: висячая ссылка рендерится как
// "оригинал недоступен", а не ломает сообщение
func replyPreview(targetID uuid.UUID, lookup func(uuid.UUID) (models.Message, bool)) *ReplyPreview {
	if lookup != nil {
		if target, ok := lookup(targetID); ok && !target.IsDeleted {
			return &ReplyPreview{
				ID:        target.ID,
				Available: true,
				UserID:    target.UserID,
				Body:      target.Body,
			}
		}
	}
	return &ReplyPreview{ID: targetID, Available: false, Body: ReplyUnavailable}
}

func reactionGroups(list models.ReactionList) []ReactionGroup {
	groups := make([]ReactionGroup, 0, len(list))
	for _, entry := range list {
		groups = append(groups, ReactionGroup{
			Emoji: entry.Emoji,
			Count: len(entry.Users),
			Users: entry.Users,
		})
	}
	return groups
}
