package feed

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisFeed — лента изменений поверх Redis pub/sub.
// Одна беседа — один канал, через него идут и события строк, и события
// набора текста. Публикует тот, кто пишет в авторитетное хранилище.
type RedisFeed struct {
	rdb *redis.Client
}

func NewRedisFeed(rdb *redis.Client) *RedisFeed {
	return &RedisFeed{rdb: rdb}
}

func channelName(conversationID uuid.UUID) string {
	return "chat:conversation:" + conversationID.String()
}

// Publish отправляет событие всем подписчикам беседы, включая самого
// публикующего: локальное хранилище отправителя пополняется тем же
// путём, что и у всех остальных
func (f *RedisFeed) Publish(ctx context.Context, conversationID uuid.UUID, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, channelName(conversationID), data).Err()
}

// Subscribe открывает подписку на события беседы.
// Канал Events закрывается при ошибке приёма или отмене контекста.
func (f *RedisFeed) Subscribe(ctx context.Context, conversationID uuid.UUID) (*Subscription, error) {
	pubsub := f.rdb.Subscribe(ctx, channelName(conversationID))

	// Дожидаемся подтверждения подписки, чтобы не потерять события
	// между возвратом из Subscribe и началом чтения
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	events := make(chan Event, 64)

	go func() {
		defer close(events)
		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("feed subscription lost for conversation %s: %v", conversationID, err)
				}
				return
			}

			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("dropping malformed feed event: %v", err)
				continue
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return NewSubscription(events, func() { pubsub.Close() }), nil
}
