package session

import (
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/avoru/habitude-chat/internal/feed"
	"github.com/avoru/habitude-chat/internal/models"
)

// MessageStore — локальная авторитетная копия сообщений одной беседы.
// Единственный источник того, что рендерится. Порядок отображения
// определяется самим хранилищем (created_at, затем id), а не порядком
// доставки событий ленты.
//
// Хранилище не синхронизировано само по себе: блокировку держит Session.
type MessageStore struct {
	byID map[uuid.UUID]models.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{byID: make(map[uuid.UUID]models.Message)}
}

// valid отбрасывает структурно битые записи: без идентификатора или
// без метки времени. Такие записи логируются и никогда не роняют хранилище.
func valid(msg models.Message) bool {
	if msg.ID == uuid.Nil || msg.CreatedAt.IsZero() {
		log.Printf("dropping malformed message record (id=%s, created_at=%s)", msg.ID, msg.CreatedAt)
		return false
	}
	return true
}

// ApplyInsert добавляет сообщение, если его ещё нет.
// Повторная доставка того же идентификатора игнорируется.
func (s *MessageStore) ApplyInsert(msg models.Message) {
	if !valid(msg) {
		return
	}
	if _, exists := s.byID[msg.ID]; exists {
		return
	}
	s.byID[msg.ID] = msg
}

// ApplyUpdate замещает запись целиком. Если записи нет — ведёт себя как
// insert: пропущенный insert не должен навсегда терять update.
func (s *MessageStore) ApplyUpdate(msg models.Message) {
	if !valid(msg) {
		return
	}
	s.byID[msg.ID] = msg
}

// ApplyDelete физически убирает запись из локальной копии.
// Не путать с пользовательским удалением: оно моделируется флагом
// IsDeleted и оставляет строку на месте.
func (s *MessageStore) ApplyDelete(id uuid.UUID) {
	delete(s.byID, id)
}

// Apply — редьюсер событий ленты: чистая функция над состоянием
// хранилища, проверяемая без живой подписки
func (s *MessageStore) Apply(ev feed.Event) {
	switch ev.Type {
	case feed.EventInsert:
		if ev.Message != nil {
			s.ApplyInsert(*ev.Message)
		}
	case feed.EventUpdate:
		if ev.Message != nil {
			s.ApplyUpdate(*ev.Message)
		}
	case feed.EventDelete:
		s.ApplyDelete(ev.MessageID)
	}
}

// Reset полностью замещает содержимое (ресинхронизация после обрыва ленты)
func (s *MessageStore) Reset(msgs []models.Message) {
	s.byID = make(map[uuid.UUID]models.Message, len(msgs))
	for _, msg := range msgs {
		if valid(msg) {
			s.byID[msg.ID] = msg
		}
	}
}

func (s *MessageStore) Get(id uuid.UUID) (models.Message, bool) {
	msg, ok := s.byID[id]
	return msg, ok
}

func (s *MessageStore) Len() int {
	return len(s.byID)
}

// Messages возвращает сообщения в порядке отображения: по возрастанию
// created_at, при равенстве — по идентификатору, чтобы порядок был
// тотальным и детерминированным
func (s *MessageStore) Messages() []models.Message {
	msgs := make([]models.Message, 0, len(s.byID))
	for _, msg := range s.byID {
		msgs = append(msgs, msg)
	}
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID.String() < msgs[j].ID.String()
	})
	return msgs
}

// Latest возвращает самое свежее сообщение
func (s *MessageStore) Latest() (models.Message, bool) {
	msgs := s.Messages()
	if len(msgs) == 0 {
		return models.Message{}, false
	}
	return msgs[len(msgs)-1], true
}

// DayGroup — сообщения одного календарного дня с готовой подписью
type DayGroup struct {
	Label    string
	Date     time.Time
	Messages []models.Message
}

// GroupByDay группирует сообщения по дням в возрастающем порядке.
// Подпись дня вычисляется относительно текущего момента вызывающего
// и нигде не хранится.
func (s *MessageStore) GroupByDay(now time.Time) []DayGroup {
	var groups []DayGroup
	for _, msg := range s.Messages() {
		day := truncateToDay(msg.CreatedAt.In(now.Location()))
		if len(groups) == 0 || !groups[len(groups)-1].Date.Equal(day) {
			groups = append(groups, DayGroup{
				Label: DayLabel(day, now),
				Date:  day,
			})
		}
		groups[len(groups)-1].Messages = append(groups[len(groups)-1].Messages, msg)
	}
	return groups
}

// DayLabel возвращает подпись дня относительно now
func DayLabel(day, now time.Time) string {
	today := truncateToDay(now)
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return day.Format("02.01.2006")
	}
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
