package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// MessageType определяет типы кадров между сервером и UI-клиентом
type MessageType string

const (
	// Системные типы
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"

	// Сервер -> клиент: события беседы, пришедшие по ленте изменений
	TypeMessageNew    MessageType = "message_new"
	TypeMessageUpdate MessageType = "message_update"
	TypeMessageDelete MessageType = "message_delete"

	// Двунаправленные сигналы присутствия и прочтения
	TypeTyping     MessageType = "typing"
	TypeTypingStop MessageType = "typing_stop"
	TypeSeen       MessageType = "seen"

	// Клиент -> сервер: отправка сообщения через WebSocket
	TypeSend MessageType = "send"
)

// Frame — один кадр протокола UI-клиента
type Frame struct {
	Type           MessageType     `json:"type"`
	ConversationID *uuid.UUID      `json:"conversation_id,omitempty"`
	UserID         uuid.UUID       `json:"user_id"`
	Data           json.RawMessage `json:"data,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

type Client struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	ConversationID uuid.UUID
	Conn           *websocket.Conn
	Send           chan []byte
	Hub            *Hub
}

// Hub раздаёт события открытых бесед подключённым UI-клиентам.
// Один пользователь может держать несколько соединений.
type Hub struct {
	clients map[uuid.UUID]*Client

	// Клиенты по открытой беседе
	conversations map[uuid.UUID]map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Контекст для graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub создает новый Hub
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:       make(map[uuid.UUID]*Client),
		conversations: make(map[uuid.UUID]map[uuid.UUID]*Client),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Run запускает hub
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ticker.C:
			h.ping()
		}
	}
}

// Stop останавливает hub
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.Send)
		client.Conn.Close()
	}
	h.clients = make(map[uuid.UUID]*Client)
	h.conversations = make(map[uuid.UUID]map[uuid.UUID]*Client)
}

// Register регистрирует нового клиента
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister отменяет регистрацию клиента
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client

	if _, ok := h.conversations[client.ConversationID]; !ok {
		h.conversations[client.ConversationID] = make(map[uuid.UUID]*Client)
	}
	h.conversations[client.ConversationID][client.ID] = client

	log.Printf("Client registered: %s (user: %s, conversation: %s)", client.ID, client.UserID, client.ConversationID)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	if conv, ok := h.conversations[client.ConversationID]; ok {
		delete(conv, client.ID)
		if len(conv) == 0 {
			delete(h.conversations, client.ConversationID)
		}
	}

	delete(h.clients, client.ID)
	close(client.Send)

	log.Printf("Client unregistered: %s (user: %s)", client.ID, client.UserID)
}

// SendToConversation рассылает кадр всем клиентам с открытой беседой
func (h *Hub) SendToConversation(conversationID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if conv, ok := h.conversations[conversationID]; ok {
		for _, client := range conv {
			select {
			case client.Send <- data:
			default:
				log.Printf("Client %s send channel full", client.ID)
			}
		}
	}
}

// SendToUser отправляет кадр всем соединениям пользователя
func (h *Hub) SendToUser(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.UserID != userID {
			continue
		}
		select {
		case client.Send <- data:
		default:
			log.Printf("Client %s send channel full", client.ID)
		}
	}
}

// ConversationViewers возвращает пользователей с открытой беседой
func (h *Hub) ConversationViewers(conversationID uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	userMap := make(map[uuid.UUID]bool)
	if conv, ok := h.conversations[conversationID]; ok {
		for _, client := range conv {
			userMap[client.UserID] = true
		}
	}

	users := make([]uuid.UUID, 0, len(userMap))
	for userID := range userMap {
		users = append(users, userID)
	}
	return users
}

func (h *Hub) ping() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	frame := Frame{
		Type:      TypePing,
		Timestamp: time.Now(),
	}

	if data, err := json.Marshal(frame); err == nil {
		for _, client := range h.clients {
			select {
			case client.Send <- data:
			default:
			}
		}
	}
}
