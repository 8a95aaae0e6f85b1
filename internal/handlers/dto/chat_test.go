package dto

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoru/habitude-chat/internal/models"
)

func TestDeletedMessageRendersPlaceholder(t *testing.T) {
	msg := models.Message{
		ID:             uuid.New(),
		ConversationID: uuid.New(),
		UserID:         uuid.New(),
		Body:           "secret",
		AttachmentURL:  "http://files/x.png",
		AttachmentName: "x.png",
		IsDeleted:      true,
		CreatedAt:      time.Now(),
	}

	resp := NewMessageResponse(msg, nil)

	assert.Equal(t, DeletedPlaceholder, resp.Body)
	assert.True(t, resp.IsDeleted)
	assert.Empty(t, resp.AttachmentURL)
	assert.Empty(t, resp.AttachmentName)
}

func TestReplyPreviewResolvesTarget(t *testing.T) {
	target := models.Message{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Body:      "original",
		CreatedAt: time.Now(),
	}
	targetID := target.ID

	msg := models.Message{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Body:      "reply",
		ReplyToID: &targetID,
		CreatedAt: time.Now(),
	}

	lookup := func(id uuid.UUID) (models.Message, bool) {
		if id == target.ID {
			return target, true
		}
		return models.Message{}, false
	}

	resp := NewMessageResponse(msg, lookup)
	require.NotNil(t, resp.Reply)
	assert.True(t, resp.Reply.Available)
	assert.Equal(t, "original", resp.Reply.Body)
	assert.Equal(t, target.UserID, resp.Reply.UserID)
}

func TestReplyPreviewDegradesGracefully(t *testing.T) {
	missing := uuid.New()
	msg := models.Message{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Body:      "reply",
		ReplyToID: &missing,
		CreatedAt: time.Now(),
	}

	// Висячая ссылка: цели нет в хранилище
	resp := NewMessageResponse(msg, func(uuid.UUID) (models.Message, bool) {
		return models.Message{}, false
	})
	require.NotNil(t, resp.Reply)
	assert.False(t, resp.Reply.Available)
	assert.Equal(t, ReplyUnavailable, resp.Reply.Body)

	// Цель есть, но помечена удалённой — то же поведение
	deleted := models.Message{ID: missing, Body: "gone", IsDeleted: true, CreatedAt: time.Now()}
	resp = NewMessageResponse(msg, func(id uuid.UUID) (models.Message, bool) {
		return deleted, id == missing
	})
	assert.False(t, resp.Reply.Available)
	assert.Equal(t, ReplyUnavailable, resp.Reply.Body)
}

func TestReactionGroups(t *testing.T) {
	userA := uuid.New()
	userB := uuid.New()
	msg := models.Message{
		ID:        uuid.New(),
		UserID:    userA,
		Body:      "hi",
		CreatedAt: time.Now(),
		Reactions: models.ReactionList{
			{Emoji: "👍", Users: []uuid.UUID{userA, userB}},
			{Emoji: "🎉", Users: []uuid.UUID{userB}},
		},
	}

	resp := NewMessageResponse(msg, nil)
	require.Len(t, resp.Reactions, 2)
	assert.Equal(t, "👍", resp.Reactions[0].Emoji)
	assert.Equal(t, 2, resp.Reactions[0].Count)
	assert.Equal(t, 1, resp.Reactions[1].Count)
}
