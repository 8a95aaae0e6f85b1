package session

import (
	"github.com/google/uuid"

	"github.com/avoru/habitude-chat/internal/models"
)

// ToggleReaction переключает реакцию пользователя на сообщение:
//   - эмодзи есть и пользователь уже в его множестве — пользователь
//     убирается; опустевшая запись удаляется целиком;
//   - эмодзи есть, пользователя нет — пользователь добавляется;
//   - эмодзи нет — создаётся новая запись с одним пользователем.
//
// Исходный список не мутируется, возвращается новый: он записывается
// в хранилище как единое целое.
func ToggleReaction(list models.ReactionList, emoji string, userID uuid.UUID) models.ReactionList {
	out := make(models.ReactionList, 0, len(list)+1)
	found := false

	for _, entry := range list {
		if entry.Emoji != emoji {
			out = append(out, cloneEntry(entry))
			continue
		}

		found = true
		users := make([]uuid.UUID, 0, len(entry.Users)+1)
		removed := false
		for _, u := range entry.Users {
			if u == userID {
				removed = true
				continue
			}
			users = append(users, u)
		}
		if !removed {
			users = append(users, userID)
		}

		// Последний пользователь убрал реакцию — запись исчезает
		if len(users) == 0 {
			continue
		}
		out = append(out, models.ReactionEntry{Emoji: entry.Emoji, Users: users})
	}

	if !found {
		out = append(out, models.ReactionEntry{Emoji: emoji, Users: []uuid.UUID{userID}})
	}

	return out
}

func cloneEntry(entry models.ReactionEntry) models.ReactionEntry {
	users := make([]uuid.UUID, len(entry.Users))
	copy(users, entry.Users)
	return models.ReactionEntry{Emoji: entry.Emoji, Users: users}
}
