package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/avoru/habitude-chat/internal/database"
	"github.com/avoru/habitude-chat/internal/feed"
	"github.com/avoru/habitude-chat/internal/handlers"
	"github.com/avoru/habitude-chat/internal/session"
	"github.com/avoru/habitude-chat/internal/storage"
	ws "github.com/avoru/habitude-chat/internal/websocket"
	"github.com/avoru/habitude-chat/pkg/auth"
)

type Server struct {
	Router  *gin.Engine
	DB      *database.Database
	Redis   *redis.Client
	Hub     *ws.Hub
	Manager *session.Manager
}

func NewServer() *Server {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Println(".env not found, using environment variables")
		}
	}

	dbConn := &database.Database{}
	if err := dbConn.Connect(); err != nil {
		log.Fatalf("Postgres connect failed: %v", err)
	}

	redisOpts, err := redis.ParseURL(os.Getenv("REDIS_URL"))
	if err != nil {
		log.Fatalf("invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Redis connect failed: %v", err)
	}

	jwtMgr := auth.NewJWTManager(
		os.Getenv("JWT_SECRET"),
		24*time.Hour,
	)

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "./uploads"
	}
	baseURL := os.Getenv("PUBLIC_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	files, err := storage.NewDiskStore(uploadDir, baseURL+"/files")
	if err != nil {
		log.Fatalf("attachment storage init failed: %v", err)
	}

	hub := ws.NewHub()
	go hub.Run()

	bridge := handlers.NewBridge(hub)
	manager := session.NewManager(dbConn, files, feed.NewRedisFeed(rdb), bridge.OnEvent)
	bridge.SetManager(manager)

	convH := handlers.NewConversationHandler(dbConn)
	chatH := handlers.NewChatHandler(dbConn, manager)
	wsH := handlers.NewWebSocketHandler(hub, dbConn, manager)

	router := gin.Default()
	APIEndpoints(router, jwtMgr, rdb, uploadDir, convH, chatH, wsH)

	return &Server{
		Router:  router,
		DB:      dbConn,
		Redis:   rdb,
		Hub:     hub,
		Manager: manager,
	}
}

func (s *Server) Run() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	go func() {
		log.Printf("chatd starting on port %s", port)
		if err := s.Router.Run(":" + port); err != nil {
			log.Fatalf("Server run error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	s.Manager.Shutdown()
	s.Hub.Stop()
}

func main() {
	NewServer().Run()
}
