package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoru/habitude-chat/internal/models"
)

func TestToggleReactionSelfInverse(t *testing.T) {
	user := uuid.New()
	var list models.ReactionList

	once := ToggleReaction(list, "👍", user)
	require.Len(t, once, 1)
	assert.Equal(t, "👍", once[0].Emoji)
	assert.Equal(t, []uuid.UUID{user}, once[0].Users)

	twice := ToggleReaction(once, "👍", user)
	assert.Empty(t, twice)
}

func TestToggleReactionKeepsOtherUsers(t *testing.T) {
	userA := uuid.New()
	userB := uuid.New()

	// A реагирует, затем B, затем A убирает свою
	list := ToggleReaction(nil, "❤️", userA)
	list = ToggleReaction(list, "❤️", userB)
	list = ToggleReaction(list, "❤️", userA)

	require.Len(t, list, 1)
	assert.Equal(t, "❤️", list[0].Emoji)
	assert.Equal(t, []uuid.UUID{userB}, list[0].Users)
}

func TestToggleReactionNoDuplicateUsers(t *testing.T) {
	user := uuid.New()

	list := ToggleReaction(nil, "🔥", user)
	list = ToggleReaction(list, "🔥", user)
	list = ToggleReaction(list, "🔥", user)

	require.Len(t, list, 1)
	assert.Equal(t, []uuid.UUID{user}, list[0].Users)
}

func TestToggleReactionSeparateEmojis(t *testing.T) {
	user := uuid.New()

	list := ToggleReaction(nil, "👍", user)
	list = ToggleReaction(list, "🎉", user)

	require.Len(t, list, 2)
	assert.Equal(t, "👍", list[0].Emoji)
	assert.Equal(t, "🎉", list[1].Emoji)

	// Уборка одной реакции не трогает другую
	list = ToggleReaction(list, "👍", user)
	require.Len(t, list, 1)
	assert.Equal(t, "🎉", list[0].Emoji)
}

func TestToggleReactionDoesNotMutateInput(t *testing.T) {
	userA := uuid.New()
	userB := uuid.New()

	original := models.ReactionList{{Emoji: "👍", Users: []uuid.UUID{userA}}}
	_ = ToggleReaction(original, "👍", userB)

	assert.Equal(t, []uuid.UUID{userA}, original[0].Users)
}
