package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/avoru/habitude-chat/internal/database"
	"github.com/avoru/habitude-chat/internal/handlers/dto"
	"github.com/avoru/habitude-chat/internal/middleware"
	"github.com/avoru/habitude-chat/internal/session"
	ws "github.com/avoru/habitude-chat/internal/websocket"
)

// WebSocketHandler управляет WebSocket-соединениями UI-клиентов.
// Соединение привязано к одной беседе: пока оно живо, пользователь
// считается наблюдателем и для него работает политика прочтения.
type WebSocketHandler struct {
	hub      *ws.Hub
	db       *database.Database
	manager  *session.Manager
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(hub *ws.Hub, db *database.Database, manager *session.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		hub:     hub,
		db:      db,
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: Проверить origin в prod
				return true
			},
		},
	}
}

// HandleWebSocket открывает соединение с беседой
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	if _, err := h.db.GetConversation(c.Request.Context(), conversationID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}

	sess, err := h.manager.Get(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open conversation"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	uid := userID.(uuid.UUID)
	client := ws.NewClient(h.hub, conn, uid, conversationID)

	h.hub.Register(client)
	sess.WatchSeen(uid)

	go client.WritePump()
	go func() {
		defer func() {
			sess.UnwatchSeen(uid)
			sess.StopTyping(uid)
		}()
		client.ReadPump(&frameHandler{sess: sess})
	}()
}

// frameHandler применяет прикладные кадры клиента к сессии
type frameHandler struct {
	sess *session.Session
}

func (f *frameHandler) HandleFrame(client *ws.Client, frame *ws.Frame) error {
	switch frame.Type {
	case ws.TypeSend:
		var req dto.SendRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return ws.ErrInvalidFrame
		}
		_, err := f.sess.Send(context.Background(), frame.UserID, session.Draft{
			Body:    req.Body,
			ReplyTo: req.ReplyToID,
		})
		return err

	case ws.TypeTyping:
		f.sess.Typing(frame.UserID)
		return nil

	case ws.TypeTypingStop:
		f.sess.StopTyping(frame.UserID)
		return nil

	case ws.TypeSeen:
		return f.sess.MarkSeen(context.Background(), frame.UserID)

	default:
		return ws.ErrUnknownFrame
	}
}
