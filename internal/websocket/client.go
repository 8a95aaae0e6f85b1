package websocket

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер кадра
	maxMessageSize = 512 * 1024 // 512KB
)

// ClientFrameHandler обрабатывает прикладные кадры клиента
// (send, typing, seen); системные кадры гасятся в ReadPump
type ClientFrameHandler interface {
	HandleFrame(client *Client, frame *Frame) error
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, conversationID uuid.UUID) *Client {
	return &Client{
		ID:             uuid.New(),
		UserID:         userID,
		ConversationID: conversationID,
		Conn:           conn,
		Send:           make(chan []byte, 256),
		Hub:            hub,
	}
}

// ReadPump читает кадры от клиента
func (c *Client) ReadPump(handler ClientFrameHandler) {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame Frame
		err := c.Conn.ReadJSON(&frame)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		// Отправителю нельзя верить на слово: идентификатор берём
		// из аутентифицированного соединения
		frame.UserID = c.UserID
		frame.ConversationID = &c.ConversationID

		if frame.Type == TypePong {
			continue
		}

		if handler != nil {
			if err := handler.HandleFrame(c, &frame); err != nil {
				log.Printf("Error handling frame: %v", err)
				c.SendError(err.Error())
			}
		}
	}
}

// WritePump отправляет кадры клиенту
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.Conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) SendFrame(frameType MessageType, data interface{}) error {
	frame := Frame{
		Type:           frameType,
		ConversationID: &c.ConversationID,
		Timestamp:      time.Now(),
	}

	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return err
		}
		frame.Data = jsonData
	}

	frameData, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	select {
	case c.Send <- frameData:
		return nil
	default:
		return ErrClientQueueFull
	}
}

func (c *Client) SendError(errorMsg string) {
	c.SendFrame("error", map[string]string{
		"error": errorMsg,
	})
}
