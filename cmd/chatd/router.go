package main

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/avoru/habitude-chat/internal/handlers"
	"github.com/avoru/habitude-chat/internal/middleware"
	"github.com/avoru/habitude-chat/pkg/auth"
)

func APIEndpoints(
	r *gin.Engine,
	jwtMgr *auth.JWTManager,
	rdb *redis.Client,
	uploadDir string,
	convH *handlers.ConversationHandler,
	chatH *handlers.ChatHandler,
	wsH *handlers.WebSocketHandler,
) {
	// Вложения раздаются как статика
	r.Static("/files", uploadDir)

	api := r.Group("/api/v1", middleware.AuthMiddleware(jwtMgr, rdb))
	{
		api.POST("/conversations", convH.CreateConversation)
		api.GET("/conversations", convH.ListConversations)
		api.GET("/conversations/:id", convH.GetConversation)

		api.GET("/conversations/:id/messages", chatH.GetMessages)
		api.POST("/conversations/:id/messages", chatH.SendMessage)
		api.PATCH("/conversations/:id/messages/:messageID", chatH.EditMessage)
		api.DELETE("/conversations/:id/messages/:messageID", chatH.DeleteMessage)
		api.POST("/conversations/:id/messages/:messageID/reactions", chatH.ToggleReaction)

		api.POST("/conversations/:id/seen", chatH.MarkSeen)
		api.POST("/conversations/:id/typing", chatH.Typing)
		api.GET("/conversations/:id/typists", chatH.ActiveTypists)
	}

	ws := r.Group("/ws", middleware.WSAuthMiddleware(jwtMgr, rdb))
	{
		ws.GET("/conversations/:id", wsH.HandleWebSocket)
	}
}
