package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avoru/habitude-chat/internal/database"
	"github.com/avoru/habitude-chat/internal/handlers/dto"
	"github.com/avoru/habitude-chat/internal/middleware"
	"github.com/avoru/habitude-chat/internal/models"
)

type ConversationHandler struct {
	db *database.Database
}

func NewConversationHandler(db *database.Database) *ConversationHandler {
	return &ConversationHandler{db: db}
}

// CreateConversation создает новую беседу
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req dto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv := &models.Conversation{
		Name:      req.Name,
		CreatedBy: userID,
		CreatedAt: time.Now(),
	}

	if err := h.db.CreateConversation(c.Request.Context(), conv); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create conversation"})
		return
	}

	c.JSON(http.StatusCreated, conv)
}

// ListConversations возвращает все беседы
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	convs, err := h.db.ListConversations(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// GetConversation возвращает одну беседу
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	conv, err := h.db.GetConversation(c.Request.Context(), mustParseID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}

	c.JSON(http.StatusOK, conv)
}

func mustParseID(c *gin.Context) uuid.UUID {
	id, _ := uuid.Parse(c.Param("id"))
	return id
}
