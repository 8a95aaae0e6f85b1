package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoru/habitude-chat/internal/feed"
	"github.com/avoru/habitude-chat/internal/models"
)

// fakeBackend эмулирует авторитетное хранилище в памяти
type fakeBackend struct {
	mu        sync.Mutex
	msgs      map[uuid.UUID]models.Message
	insertErr error
	updateErr error
	listCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{msgs: make(map[uuid.UUID]models.Message)}
}

func (f *fakeBackend) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	out := make([]models.Message, 0, len(f.msgs))
	for _, msg := range f.msgs {
		out = append(out, msg)
	}
	return out, nil
}

func (f *fakeBackend) InsertMessage(ctx context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	f.msgs[msg.ID] = *msg
	return nil
}

func (f *fakeBackend) UpdateMessage(ctx context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.msgs[msg.ID] = *msg
	return nil
}

func (f *fakeBackend) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.msgs, id)
	return nil
}

func (f *fakeBackend) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func (f *fakeBackend) stored(id uuid.UUID) (models.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.msgs[id]
	return msg, ok
}

// fakeFeed — синхронная лента: Publish раздаёт событие всем подпискам
type fakeFeed struct {
	mu   sync.Mutex
	subs map[int]chan feed.Event
	next int
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{subs: make(map[int]chan feed.Event)}
}

func (f *fakeFeed) Publish(ctx context.Context, conversationID uuid.UUID, ev feed.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		ch <- ev
	}
	return nil
}

func (f *fakeFeed) Subscribe(ctx context.Context, conversationID uuid.UUID) (*feed.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	ch := make(chan feed.Event, 64)
	f.subs[id] = ch

	// Отмена контекста обрывает подписку, как в реализации на Redis
	go func() {
		<-ctx.Done()
		f.closeSub(id)
	}()

	return feed.NewSubscription(ch, func() { f.closeSub(id) }), nil
}

func (f *fakeFeed) closeSub(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.subs[id]; ok {
		close(ch)
		delete(f.subs, id)
	}
}

// disconnectAll обрывает все подписки, как при потере соединения
func (f *fakeFeed) disconnectAll() {
	f.mu.Lock()
	ids := make([]int, 0, len(f.subs))
	for id := range f.subs {
		ids = append(ids, id)
	}
	f.mu.Unlock()

	for _, id := range ids {
		f.closeSub(id)
	}
}

type fakeFiles struct {
	err error
}

func (f *fakeFiles) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "stored_" + filename, nil
}

func (f *fakeFiles) PublicURL(storedPath string) string {
	return "http://files.local/" + storedPath
}

func openSession(t *testing.T, backend *fakeBackend, fd *fakeFeed, files *fakeFiles) *Session {
	t.Helper()
	sess := NewSession(uuid.New(), backend, files, fd, nil)
	require.NoError(t, sess.Open(context.Background()))
	t.Cleanup(sess.Close)
	return sess
}

func TestSendScenario(t *testing.T) {
	backend := newFakeBackend()
	fd := newFakeFeed()
	sess := openSession(t, backend, fd, &fakeFiles{})

	userA := uuid.New()
	msg, err := sess.Send(context.Background(), userA, Draft{Body: "hi"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, msg.ID)

	// Сообщение попадает в локальное хранилище только эхом ленты
	require.Eventually(t, func() bool {
		_, ok := sess.Message(msg.ID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	got, _ := sess.Message(msg.ID)
	assert.Equal(t, "hi", got.Body)
	assert.False(t, got.IsEdited)
	assert.False(t, got.IsDeleted)
	assert.Empty(t, got.Reactions)
	assert.Equal(t, models.UserIDSet{userA}, got.SeenBy)
}

func TestSendEmptyDraftFailsValidation(t *testing.T) {
	backend := newFakeBackend()
	fd := newFakeFeed()
	sess := openSession(t, backend, fd, &fakeFiles{})

	_, err := sess.Send(context.Background(), uuid.New(), Draft{Body: "   "})
	assert.ErrorIs(t, err, ErrEmptyDraft)

	// Хранилище не изменилось
	assert.Empty(t, sess.GroupedMessages(time.Now()))
	assert.Equal(t, 0, backend.count())
}

func TestSendAttachmentOnly(t *testing.T) {
	backend := newFakeBackend()
	fd := newFakeFeed()
	sess := openSession(t, backend, fd, &fakeFiles{})

	msg, err := sess.Send(context.Background(), uuid.New(), Draft{
		Attachment: &Attachment{Filename: "report.pdf", Data: []byte("data")},
	})
	require.NoError(t, err)
	assert.Equal(t, "http://files.local/stored_report.pdf", msg.AttachmentURL)
	assert.Equal(t, "report.pdf", msg.AttachmentName)
}

func TestSendAttachmentUploadFailureAbortsWholeSend(t *testing.T) {
	backend := newFakeBackend()
	fd := newFakeFeed()
	sess := openSession(t, backend, fd, &fakeFiles{err: errors.New("storage down")})

	_, err := sess.Send(context.Background(), uuid.New(), Draft{
		Body:       "with file",
		Attachment: &Attachment{Filename: "a.png", Data: []byte("x")},
	})
	assert.ErrorIs(t, err, ErrAttachmentUpload)

	// Частичное сообщение не создаётся
	assert.Equal(t, 0, backend.count())
}

func TestSendDanglingReplyTargetRejected(t *testing.T) {
	backend := newFakeBackend()
	fd := newFakeFeed()
	sess := openSession(t, backend, fd, &fakeFiles{})

	missing := uuid.New()
	_, err := sess.Send(context.Background(), uuid.New(), Draft{Body: "re", ReplyTo: &missing})
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestToggleReactionOptimisticWithoutRollback(t *testing.T) {
	backend := newFakeBackend()
	fd := newFakeFeed()
	sess := openSession(t, backend, fd, &fakeFiles{})

	user := uuid.New()
	msg, err := sess.Send(context.Background(), user, Draft{Body: "react to me"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := sess.Message(msg.ID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	// Ошибка записи: локальное состояние сознательно не откатывается
	backend.mu.Lock()
	backend.updateErr = errors.New("write failed")
	backend.mu.Unlock()

	err = sess.ToggleReaction(context.Background(), user, msg.ID, "👍")
	assert.ErrorIs(t, err, ErrPersistence)

	got, _ := sess.Message(msg.ID)
	require.Len(t, got.Reactions, 1)
	assert.True(t, got.Reactions.Has("👍", user))
}

func TestToggleReactionRoundTrip(t *testing.T) {
	backend := newFakeBackend()
	fd := newFakeFeed()
	sess := openSession(t, backend, fd, &fakeFiles{})

	user := uuid.New()
	msg, err := sess.Send(context.Background(), user, Draft{Body: "react"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := sess.Message(msg.ID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sess.ToggleReaction(context.Background(), user, msg.ID, "🎉"))
	stored, _ := backend.stored(msg.ID)
	assert.True(t, stored.Reactions.Has("🎉", user))

	require.NoError(t, sess.ToggleReaction(context.Background(), user, msg.ID, "🎉"))
	stored, _ = backend.stored(msg.ID)
	assert.Empty(t, stored.Reactions)
}

func TestMarkSeenIdempotentAndMonotonic(t *testing.T) {
	backend := newFakeBackend()
	fd := newFakeFeed()
	sess := openSession(t, backend, fd, &fakeFiles{})

	author := uuid.New()
	reader := uuid.New()
	msg, err := sess.Send(context.Background(), author, Draft{Body: "see me"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := sess.Message(msg.ID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sess.MarkSeen(context.Background(), reader))
	require.NoError(t, sess.MarkSeen(context.Background(), reader))
	require.NoError(t, sess.MarkSeen(context.Background(), reader))

	got, _ := sess.Message(msg.ID)
	count := 0
	for _, u := range got.SeenBy {
		if u == reader {
			count++
		}
	}
	assert.Equal(t, 1, count, "no duplicate entries in seen-by")
	assert.True(t, got.SeenBy.Contains(author))
}

func TestEditSetsFlagAndSoftDeleteKeepsRow(t *testing.T) {
	backend := newFakeBackend()
	fd := newFakeFeed()
	sess := openSession(t, backend, fd, &fakeFiles{})

	author := uuid.New()
	other := uuid.New()
	msg, err := sess.Send(context.Background(), author, Draft{Body: "original"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := sess.Message(msg.ID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	_, err = sess.Edit(context.Background(), other, msg.ID, "hack")
	assert.ErrorIs(t, err, ErrNotAuthor)

	edited, err := sess.Edit(context.Background(), author, msg.ID, "fixed")
	require.NoError(t, err)
	assert.True(t, edited.IsEdited)
	assert.Equal(t, "fixed", edited.Body)

	require.NoError(t, sess.SoftDelete(context.Background(), author, msg.ID))
	require.Eventually(t, func() bool {
		got, ok := sess.Message(msg.ID)
		return ok && got.IsDeleted
	}, 2*time.Second, 10*time.Millisecond)

	// Строка остаётся на месте: мягкое удаление — это не ApplyDelete
	got, ok := sess.Message(msg.ID)
	require.True(t, ok)
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, msg.CreatedAt.Unix(), got.CreatedAt.Unix())
}

func TestFeedDisconnectTriggersResync(t *testing.T) {
	backend := newFakeBackend()
	fd := newFakeFeed()
	sess := openSession(t, backend, fd, &fakeFiles{})

	// Сообщение появляется в хранилище, пока подписки нет
	hidden := models.Message{
		ID:             uuid.New(),
		ConversationID: sess.ConversationID,
		UserID:         uuid.New(),
		Body:           "written during outage",
		CreatedAt:      time.Now(),
	}
	require.NoError(t, backend.InsertMessage(context.Background(), &hidden))

	fd.disconnectAll()

	// После обрыва сессия перечитывает коллекцию целиком
	require.Eventually(t, func() bool {
		_, ok := sess.Message(hidden.ID)
		return ok
	}, 5*time.Second, 20*time.Millisecond)
}

func TestTypingDebounceAutoStops(t *testing.T) {
	backend := newFakeBackend()
	fd := newFakeFeed()
	sessA := openSession(t, backend, fd, &fakeFiles{})

	typist := uuid.New()
	viewer := uuid.New()

	sessA.Typing(typist)

	require.Eventually(t, func() bool {
		typists := sessA.ActiveTypists(viewer)
		return len(typists) == 1 && typists[0] == typist
	}, 2*time.Second, 10*time.Millisecond)

	// Через паузу без нажатий набор гасится автоматически
	require.Eventually(t, func() bool {
		return len(sessA.ActiveTypists(viewer)) == 0
	}, 2*TypingResend+time.Second, 20*time.Millisecond)
}
