package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avoru/habitude-chat/internal/database"
	"github.com/avoru/habitude-chat/internal/handlers/dto"
	"github.com/avoru/habitude-chat/internal/middleware"
	"github.com/avoru/habitude-chat/internal/session"
)

const maxAttachmentSize = 25 << 20 // 25MB

// ChatHandler — HTTP-операции над сессией беседы
type ChatHandler struct {
	db      *database.Database
	manager *session.Manager
}

func NewChatHandler(db *database.Database, manager *session.Manager) *ChatHandler {
	return &ChatHandler{db: db, manager: manager}
}

// sessionFor достаёт сессию беседы из path-параметра, проверив,
// что беседа существует
func (h *ChatHandler) sessionFor(c *gin.Context) (*session.Session, bool) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return nil, false
	}

	if _, err := h.db.GetConversation(c.Request.Context(), conversationID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return nil, false
	}

	sess, err := h.manager.Get(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open conversation"})
		return nil, false
	}
	return sess, true
}

// GetMessages возвращает сообщения беседы, сгруппированные по дням.
// Подписи дней считаются от момента запроса.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	sess, ok := h.sessionFor(c)
	if !ok {
		return
	}

	groups := sess.GroupedMessages(time.Now())
	result := make([]dto.DayGroupResponse, len(groups))
	for i, group := range groups {
		day := dto.DayGroupResponse{
			Label:    group.Label,
			Date:     group.Date.Format("2006-01-02"),
			Messages: make([]dto.MessageResponse, len(group.Messages)),
		}
		for j, msg := range group.Messages {
			day.Messages[j] = dto.NewMessageResponse(msg, sess.Message)
		}
		result[i] = day
	}

	c.JSON(http.StatusOK, gin.H{"days": result})
}

// SendMessage отправляет сообщение. Принимает JSON либо multipart
// с файлом вложения в поле "file".
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	sess, ok := h.sessionFor(c)
	if !ok {
		return
	}

	draft, ok := h.bindDraft(c)
	if !ok {
		return
	}

	msg, err := sess.Send(c.Request.Context(), userID, draft)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewMessageResponse(*msg, sess.Message))
}

func (h *ChatHandler) bindDraft(c *gin.Context) (session.Draft, bool) {
	var draft session.Draft

	contentType := c.ContentType()
	if contentType == "multipart/form-data" {
		draft.Body = c.PostForm("body")
		if replyTo := c.PostForm("reply_to_id"); replyTo != "" {
			id, err := uuid.Parse(replyTo)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reply_to_id"})
				return draft, false
			}
			draft.ReplyTo = &id
		}

		fileHeader, err := c.FormFile("file")
		if err == nil {
			if fileHeader.Size > maxAttachmentSize {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "attachment too large"})
				return draft, false
			}
			file, err := fileHeader.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read attachment"})
				return draft, false
			}
			defer file.Close()

			data, err := io.ReadAll(file)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read attachment"})
				return draft, false
			}
			draft.Attachment = &session.Attachment{
				Filename: fileHeader.Filename,
				Data:     data,
			}
		}
		return draft, true
	}

	var req dto.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return draft, false
	}
	draft.Body = req.Body
	draft.ReplyTo = req.ReplyToID
	return draft, true
}

// EditMessage меняет текст сообщения; разрешено только автору
func (h *ChatHandler) EditMessage(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	sess, ok := h.sessionFor(c)
	if !ok {
		return
	}

	messageID, err := uuid.Parse(c.Param("messageID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	var req dto.EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := sess.Edit(c.Request.Context(), userID, messageID, req.Body)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewMessageResponse(*msg, sess.Message))
}

// DeleteMessage помечает сообщение удалённым; разрешено только автору
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	sess, ok := h.sessionFor(c)
	if !ok {
		return
	}

	messageID, err := uuid.Parse(c.Param("messageID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	if err := sess.SoftDelete(c.Request.Context(), userID, messageID); err != nil {
		respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "message deleted"})
}

// ToggleReaction переключает реакцию текущего пользователя
func (h *ChatHandler) ToggleReaction(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	sess, ok := h.sessionFor(c)
	if !ok {
		return
	}

	messageID, err := uuid.Parse(c.Param("messageID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	var req dto.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := sess.ToggleReaction(c.Request.Context(), userID, messageID, req.Emoji); err != nil {
		respondSessionError(c, err)
		return
	}

	msg, _ := sess.Message(messageID)
	c.JSON(http.StatusOK, dto.NewMessageResponse(msg, sess.Message))
}

// MarkSeen отмечает самое свежее сообщение прочитанным
func (h *ChatHandler) MarkSeen(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	sess, ok := h.sessionFor(c)
	if !ok {
		return
	}

	if err := sess.MarkSeen(c.Request.Context(), userID); err != nil {
		respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "seen"})
}

// Typing сигнализирует о наборе текста текущим пользователем
func (h *ChatHandler) Typing(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	sess, ok := h.sessionFor(c)
	if !ok {
		return
	}

	sess.Typing(userID)
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// ActiveTypists возвращает, кто сейчас набирает текст (кроме самого
// запрашивающего)
func (h *ChatHandler) ActiveTypists(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	sess, ok := h.sessionFor(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"typists": sess.ActiveTypists(userID)})
}

// respondSessionError переводит ошибки сессии в HTTP-ответы.
// Ни одна из них не фатальна для сессии.
func respondSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrEmptyDraft):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrNotAuthor):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrAttachmentUpload):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
