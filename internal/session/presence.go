package session

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	// TypingFreshness — окно свежести: запись о наборе текста старше
	// этого срока считается погасшей
	TypingFreshness = 6 * time.Second

	// TypingResend — интервал повторной отправки сигнала набирающим
	// клиентом и пауза, после которой набор считается прекращённым
	TypingResend = 2 * time.Second

	// maxDisplayedTypists — отображается не больше стольких имён
	maxDisplayedTypists = 3
)

// PresenceTracker хранит метку последнего набора текста по пользователям.
// Записи не удаляются, а гаснут по времени; явный ClearTyping и
// отсутствие записи рендерятся одинаково.
type PresenceTracker struct {
	lastTyping map[uuid.UUID]time.Time
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{lastTyping: make(map[uuid.UUID]time.Time)}
}

// RecordTyping перезаписывает метку на каждый сигнал набора
func (p *PresenceTracker) RecordTyping(userID uuid.UUID, now time.Time) {
	p.lastTyping[userID] = now
}

// ClearTyping гасит запись пользователя
func (p *PresenceTracker) ClearTyping(userID uuid.UUID) {
	delete(p.lastTyping, userID)
}

// ActiveTypists возвращает пользователей, набирающих текст прямо сейчас,
// без самого запрашивающего. Запись активна строго внутри окна свежести:
// ровно на границе — уже неактивна. Самые свежие идут первыми,
// список усечён до maxDisplayedTypists.
func (p *PresenceTracker) ActiveTypists(selfID uuid.UUID, now time.Time) []uuid.UUID {
	type typist struct {
		id uuid.UUID
		at time.Time
	}

	var active []typist
	for id, at := range p.lastTyping {
		if id == selfID {
			continue
		}
		if now.Sub(at) < TypingFreshness {
			active = append(active, typist{id: id, at: at})
		}
	}

	sort.Slice(active, func(i, j int) bool {
		if !active[i].at.Equal(active[j].at) {
			return active[i].at.After(active[j].at)
		}
		return active[i].id.String() < active[j].id.String()
	})

	if len(active) > maxDisplayedTypists {
		active = active[:maxDisplayedTypists]
	}

	ids := make([]uuid.UUID, len(active))
	for i, t := range active {
		ids[i] = t.id
	}
	return ids
}
