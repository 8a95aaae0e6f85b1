package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/avoru/habitude-chat/pkg/auth"
)

const UserIDKey = "userID"

// authenticate проверяет токен: чёрный список в Redis, подпись,
// корректный идентификатор пользователя в subject
func authenticate(c *gin.Context, token string, jwtManager *auth.JWTManager, redisClient *redis.Client) {
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
		c.Abort()
		return
	}

	// Токены, отозванные основным бэкендом, попадают в чёрный список
	exists, err := redisClient.Exists(context.Background(), "blacklist:"+token).Result()
	if err != nil || exists > 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token is blacklisted"})
		c.Abort()
		return
	}

	claims, err := jwtManager.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		c.Abort()
		return
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
		c.Abort()
		return
	}

	c.Set(UserIDKey, userID)
	c.Next()
}

// AuthMiddleware проверяет JWT из Authorization header
func AuthMiddleware(jwtManager *auth.JWTManager, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractTokenFromHeader(c.Request)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			c.Abort()
			return
		}
		authenticate(c, token, jwtManager, redisClient)
	}
}

// WSAuthMiddleware — вариант для WebSocket: браузерный клиент не может
// выставить заголовок при апгрейде, поэтому токен допускается в query
func WSAuthMiddleware(jwtManager *auth.JWTManager, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			authHeader := c.GetHeader("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				token = parts[1]
			}
		}
		authenticate(c, token, jwtManager, redisClient)
	}
}
