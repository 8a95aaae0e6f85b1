package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avoru/habitude-chat/internal/feed"
	"github.com/avoru/habitude-chat/internal/models"
)

const (
	// seenInterval — период, с которым последнее сообщение помечается
	// прочитанным у наблюдателей (плюс немедленно при изменении хранилища)
	seenInterval = 3 * time.Second

	// resyncDelay — пауза перед повторной подпиской после обрыва ленты
	resyncDelay = time.Second
)

// Store — контракт авторитетного хранилища сообщений
type Store interface {
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
	UpdateMessage(ctx context.Context, msg *models.Message) error
	DeleteMessage(ctx context.Context, id uuid.UUID) error
}

// FileStore — контракт файлового хранилища вложений
type FileStore interface {
	Upload(ctx context.Context, filename string, data []byte) (string, error)
	PublicURL(storedPath string) string
}

// Feed — контракт ленты изменений
type Feed interface {
	Subscribe(ctx context.Context, conversationID uuid.UUID) (*feed.Subscription, error)
	Publish(ctx context.Context, conversationID uuid.UUID, ev feed.Event) error
}

// Draft — черновик исходящего сообщения
type Draft struct {
	Body       string
	ReplyTo    *uuid.UUID
	Attachment *Attachment
}

// Attachment — ещё не загруженное вложение черновика
type Attachment struct {
	Filename string
	Data     []byte
}

// Session держит живое состояние одной открытой беседы: локальное
// хранилище сообщений, присутствие набирающих и подписку на ленту.
// Состояние беседы всегда передаётся явно, никаких синглтонов:
// несколько бесед сосуществуют как несколько Session.
//
// Сообщение попадает в локальное хранилище только через эхо ленты —
// один и тот же путь для своих и чужих сообщений. Send лишь записывает
// в авторитетное хранилище и публикует событие.
type Session struct {
	ConversationID uuid.UUID

	db    Store
	files FileStore
	feed  Feed

	mu       sync.Mutex
	store    *MessageStore
	presence *PresenceTracker

	// Локальные наблюдатели, у которых беседа открыта на экране:
	// для них работает политика отметки прочтения
	watchers map[uuid.UUID]int

	// Дебаунс сигнала набора по локальным пользователям
	typingSentAt map[uuid.UUID]time.Time
	typingStop   map[uuid.UUID]*time.Timer

	// Уведомление наружу о каждом применённом событии (push в UI)
	onEvent func(feed.Event)

	changed chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
}

// NewSession создаёт сессию беседы. OnEvent может быть nil.
func NewSession(conversationID uuid.UUID, db Store, files FileStore, fd Feed, onEvent func(feed.Event)) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ConversationID: conversationID,
		db:             db,
		files:          files,
		feed:           fd,
		store:          NewMessageStore(),
		presence:       NewPresenceTracker(),
		watchers:       make(map[uuid.UUID]int),
		typingSentAt:   make(map[uuid.UUID]time.Time),
		typingStop:     make(map[uuid.UUID]*time.Timer),
		onEvent:        onEvent,
		changed:        make(chan struct{}, 1),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Open загружает историю и запускает цикл подписки и цикл прочтения
func (s *Session) Open(ctx context.Context) error {
	msgs, err := s.db.ListMessages(ctx, s.ConversationID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.mu.Lock()
	s.store.Reset(msgs)
	s.mu.Unlock()

	s.wg.Add(2)
	go s.run()
	go s.seenLoop()
	return nil
}

// Close останавливает подписку, таймеры и фоновые циклы
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for userID, timer := range s.typingStop {
		timer.Stop()
		delete(s.typingStop, userID)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// run — цикл подписки на ленту. Обрыв подписки лечится не доигрыванием
// дельт, а полной перечиткой коллекции и новой подпиской.
func (s *Session) run() {
	defer s.wg.Done()

	for {
		sub, err := s.feed.Subscribe(s.ctx, s.ConversationID)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			log.Printf("feed subscribe failed for conversation %s: %v", s.ConversationID, err)
			if !s.sleep(resyncDelay) {
				return
			}
			continue
		}

		// Сначала подписка, затем полная перечитка: всё, что придёт
		// по ленте во время перечитки, применится поверх идемпотентно
		s.resync()

		for ev := range sub.Events {
			s.dispatch(ev)
		}
		sub.Close()

		if s.ctx.Err() != nil {
			return
		}
		log.Printf("feed disconnected for conversation %s, resubscribing", s.ConversationID)
		if !s.sleep(resyncDelay) {
			return
		}
	}
}

func (s *Session) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Session) resync() {
	msgs, err := s.db.ListMessages(s.ctx, s.ConversationID)
	if err != nil {
		log.Printf("resync failed for conversation %s: %v", s.ConversationID, err)
		return
	}
	s.mu.Lock()
	s.store.Reset(msgs)
	s.mu.Unlock()
	s.notifyChanged()
}

// dispatch применяет событие ленты к локальному состоянию.
// Доставленное по ленте значение всегда побеждает оптимистичное.
func (s *Session) dispatch(ev feed.Event) {
	s.mu.Lock()
	switch ev.Type {
	case feed.EventInsert, feed.EventUpdate, feed.EventDelete:
		s.store.Apply(ev)
	case feed.EventTyping:
		s.presence.RecordTyping(ev.UserID, time.Now())
	case feed.EventTypingStop:
		s.presence.ClearTyping(ev.UserID)
	}
	s.mu.Unlock()

	if s.onEvent != nil {
		s.onEvent(ev)
	}
	if ev.Type != feed.EventTyping && ev.Type != feed.EventTypingStop {
		s.notifyChanged()
	}
}

func (s *Session) notifyChanged() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Send проверяет и отправляет черновик. У черновика должен быть
// непустой текст или вложение. Вложение сперва надёжно сохраняется,
// в сообщение попадает только его публичный URL; при ошибке загрузки
// отправка целиком отменяется, частичное сообщение не создаётся.
//
// Возвращённое сообщение не применяется к локальному хранилищу:
// оно придёт эхом ленты.
func (s *Session) Send(ctx context.Context, userID uuid.UUID, draft Draft) (*models.Message, error) {
	body := strings.TrimSpace(draft.Body)
	if body == "" && draft.Attachment == nil {
		return nil, ErrEmptyDraft
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if draft.ReplyTo != nil {
		if _, ok := s.store.Get(*draft.ReplyTo); !ok {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: reply target %s", ErrMessageNotFound, draft.ReplyTo)
		}
	}
	s.mu.Unlock()

	msg := &models.Message{
		ConversationID: s.ConversationID,
		UserID:         userID,
		Body:           body,
		ReplyToID:      draft.ReplyTo,
		CreatedAt:      time.Now(),
		Reactions:      models.ReactionList{},
		SeenBy:         models.UserIDSet{userID},
	}

	if draft.Attachment != nil {
		storedPath, err := s.files.Upload(ctx, draft.Attachment.Filename, draft.Attachment.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAttachmentUpload, err)
		}
		msg.AttachmentURL = s.files.PublicURL(storedPath)
		msg.AttachmentName = draft.Attachment.Filename
	}

	if err := s.db.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// Отправка завершает набор текста независимо от дебаунса
	s.StopTyping(userID)

	s.publish(feed.Event{Type: feed.EventInsert, Message: msg})
	return msg, nil
}

// Edit заменяет текст сообщения и взводит флаг редактирования
func (s *Session) Edit(ctx context.Context, userID, messageID uuid.UUID, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyDraft
	}

	s.mu.Lock()
	msg, ok := s.store.Get(messageID)
	s.mu.Unlock()
	if !ok {
		return nil, ErrMessageNotFound
	}
	if msg.UserID != userID {
		return nil, ErrNotAuthor
	}

	msg.Body = body
	msg.IsEdited = true

	if err := s.persistUpdate(ctx, msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SoftDelete помечает сообщение удалённым: строка остаётся,
// тело скрывается при рендеринге
func (s *Session) SoftDelete(ctx context.Context, userID, messageID uuid.UUID) error {
	s.mu.Lock()
	msg, ok := s.store.Get(messageID)
	s.mu.Unlock()
	if !ok {
		return ErrMessageNotFound
	}
	if msg.UserID != userID {
		return ErrNotAuthor
	}

	msg.IsDeleted = true
	return s.persistUpdate(ctx, msg)
}

// ToggleReaction переключает реакцию и применяет результат локально
// сразу, не дожидаясь эха ленты: интерактивная задержка важнее.
// Эхо, когда придёт, перезапишет оптимистичное значение.
// При ошибке записи локальное состояние не откатывается.
func (s *Session) ToggleReaction(ctx context.Context, userID, messageID uuid.UUID, emoji string) error {
	s.mu.Lock()
	msg, ok := s.store.Get(messageID)
	if !ok {
		s.mu.Unlock()
		return ErrMessageNotFound
	}
	msg.Reactions = ToggleReaction(msg.Reactions, emoji, userID)
	s.store.ApplyUpdate(msg)
	s.mu.Unlock()
	s.notifyChanged()

	return s.persistUpdate(ctx, msg)
}

// MarkSeen добавляет пользователя в множество видевших самое свежее
// сообщение. Повторный вызов — дешёвый no-op; множество только растёт.
func (s *Session) MarkSeen(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	msg, ok := s.store.Latest()
	if !ok || msg.SeenBy.Contains(userID) {
		s.mu.Unlock()
		return nil
	}
	msg.SeenBy = append(msg.SeenBy, userID)
	s.store.ApplyUpdate(msg)
	s.mu.Unlock()

	return s.persistUpdate(ctx, msg)
}

func (s *Session) persistUpdate(ctx context.Context, msg models.Message) error {
	if err := s.db.UpdateMessage(ctx, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.publish(feed.Event{Type: feed.EventUpdate, Message: &msg})
	return nil
}

func (s *Session) publish(ev feed.Event) {
	if err := s.feed.Publish(s.ctx, s.ConversationID, ev); err != nil && s.ctx.Err() == nil {
		log.Printf("feed publish failed for conversation %s: %v", s.ConversationID, err)
	}
}

// Typing сообщает о наборе текста локальным пользователем.
// Сигнал уходит не чаще TypingResend; через TypingResend без новых
// нажатий автоматически публикуется остановка — независимо от того,
// было ли сообщение в итоге отправлено.
func (s *Session) Typing(userID uuid.UUID) {
	now := time.Now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	send := now.Sub(s.typingSentAt[userID]) >= TypingResend
	if send {
		s.typingSentAt[userID] = now
	}
	if timer, ok := s.typingStop[userID]; ok {
		timer.Stop()
	}
	s.typingStop[userID] = time.AfterFunc(TypingResend, func() {
		s.StopTyping(userID)
	})
	s.mu.Unlock()

	if send {
		s.publish(feed.Event{Type: feed.EventTyping, UserID: userID})
	}
}

// StopTyping явно гасит сигнал набора локального пользователя
func (s *Session) StopTyping(userID uuid.UUID) {
	s.mu.Lock()
	if timer, ok := s.typingStop[userID]; ok {
		timer.Stop()
		delete(s.typingStop, userID)
	}
	delete(s.typingSentAt, userID)
	closed := s.closed
	s.mu.Unlock()

	if !closed {
		s.publish(feed.Event{Type: feed.EventTypingStop, UserID: userID})
	}
}

// ActiveTypists возвращает, кто набирает текст прямо сейчас, кроме самого
// запрашивающего
func (s *Session) ActiveTypists(selfID uuid.UUID) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence.ActiveTypists(selfID, time.Now())
}

// GroupedMessages возвращает сообщения беседы, сгруппированные по дням
func (s *Session) GroupedMessages(now time.Time) []DayGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.GroupByDay(now)
}

// Message возвращает одно сообщение из локального хранилища
func (s *Session) Message(id uuid.UUID) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Get(id)
}

// WatchSeen включает для пользователя политику отметки прочтения:
// пока беседа открыта, самое свежее сообщение периодически помечается
// прочитанным. Исторические непрочитанные не затрагиваются — объём
// записи ограничен ценой полноты.
func (s *Session) WatchSeen(userID uuid.UUID) {
	s.mu.Lock()
	s.watchers[userID]++
	s.mu.Unlock()
	s.notifyChanged()
}

// UnwatchSeen выключает политику прочтения для пользователя
func (s *Session) UnwatchSeen(userID uuid.UUID) {
	s.mu.Lock()
	if s.watchers[userID] > 1 {
		s.watchers[userID]--
	} else {
		delete(s.watchers, userID)
	}
	s.mu.Unlock()
}

// seenLoop помечает последнее сообщение прочитанным у наблюдателей:
// каждые seenInterval и сразу при изменении хранилища
func (s *Session) seenLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(seenInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		case <-s.changed:
		}

		s.mu.Lock()
		watchers := make([]uuid.UUID, 0, len(s.watchers))
		for userID := range s.watchers {
			watchers = append(watchers, userID)
		}
		s.mu.Unlock()

		for _, userID := range watchers {
			if err := s.MarkSeen(s.ctx, userID); err != nil && s.ctx.Err() == nil {
				log.Printf("mark seen failed for user %s: %v", userID, err)
			}
		}
	}
}
