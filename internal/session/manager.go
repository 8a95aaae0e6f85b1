package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/avoru/habitude-chat/internal/feed"
)

// Manager держит по одной открытой сессии на беседу.
// Сессии открываются лениво при первом обращении и живут до Shutdown.
type Manager struct {
	db    Store
	files FileStore
	feed  Feed

	// Вызывается на каждое событие любой беседы (мост в WebSocket-хаб)
	onEvent func(conversationID uuid.UUID, ev feed.Event)

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewManager(db Store, files FileStore, fd Feed, onEvent func(uuid.UUID, feed.Event)) *Manager {
	return &Manager{
		db:       db,
		files:    files,
		feed:     fd,
		onEvent:  onEvent,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Get возвращает сессию беседы, открывая её при необходимости
func (m *Manager) Get(ctx context.Context, conversationID uuid.UUID) (*Session, error) {
	m.mu.Lock()
	if sess, ok := m.sessions[conversationID]; ok {
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	sess := NewSession(conversationID, m.db, m.files, m.feed, func(ev feed.Event) {
		if m.onEvent != nil {
			m.onEvent(conversationID, ev)
		}
	})
	if err := sess.Open(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Параллельный вызов мог открыть сессию первым
	if existing, ok := m.sessions[conversationID]; ok {
		go sess.Close()
		return existing, nil
	}
	m.sessions[conversationID] = sess
	return sess, nil
}

// Peek возвращает уже открытую сессию, не открывая новой
func (m *Manager) Peek(conversationID uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[conversationID]
	return sess, ok
}

// Shutdown закрывает все открытые сессии
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}
