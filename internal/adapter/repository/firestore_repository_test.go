package repository

import (
	"context"
	"os"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat/internal/domain/entity"
	"relaychat/pkg/errors"
)

// newEmulatorClient connects to the Firestore emulator, skipping the test
// when none is configured.
func newEmulatorClient(t *testing.T) *firestore.Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	client, err := firestore.NewClient(context.Background(), "relaychat-test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestFirestoreUserRepository(t *testing.T) {
	client := newEmulatorClient(t)
	repo := NewFirestoreUserRepository(client)
	ctx := context.Background()
	suffix := uuid.New().String()[:8]

	alice := &entity.User{Username: "Alice" + suffix, Email: "alice" + suffix + "@example.com"}
	require.NoError(t, repo.Create(ctx, alice))

	err := repo.Create(ctx, &entity.User{Username: "x" + suffix, Email: "ALICE" + suffix + "@example.com"})
	assert.True(t, errors.Is(err, errors.CodeConflict))

	got, err := repo.GetByEmail(ctx, alice.Email)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	users, _, err := repo.Search(ctx, "alice"+suffix, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, users, 1)

	_, err = repo.GetByID(ctx, "missing-"+suffix)
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestFirestoreDirectChatUniqueness(t *testing.T) {
	client := newEmulatorClient(t)
	repo := NewFirestoreChatRepository(client)
	ctx := context.Background()
	a, b := uuid.New().String(), uuid.New().String()

	first, err := repo.CreateDirectChat(ctx, a, b)
	require.NoError(t, err)
	second, err := repo.CreateDirectChat(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	found, err := repo.FindDirectChat(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestFirestoreUpdateGroup(t *testing.T) {
	client := newEmulatorClient(t)
	repo := NewFirestoreChatRepository(client)
	ctx := context.Background()

	group := &entity.Chat{ChatName: "team", Users: []string{"a", "b"}, GroupAdmin: "a"}
	require.NoError(t, repo.CreateGroup(ctx, group))

	_, err := repo.UpdateGroup(ctx, group.ID, func(chat *entity.Chat) error {
		return errors.Forbidden("Only the group admin can rename the group", nil)
	})
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	updated, err := repo.UpdateGroup(ctx, group.ID, func(chat *entity.Chat) error {
		chat.ChatName = "Team"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Team", updated.ChatName)
}

func TestFirestoreMessageReactions(t *testing.T) {
	client := newEmulatorClient(t)
	repo := NewFirestoreMessageRepository(client)
	ctx := context.Background()

	chat, err := NewFirestoreChatRepository(client).CreateDirectChat(ctx, uuid.New().String(), uuid.New().String())
	require.NoError(t, err)

	msg := &entity.Message{ChatID: chat.ID, SenderID: "a", Content: "hi", Type: entity.MessageTypeText, ReadBy: []string{"a"}}
	require.NoError(t, repo.Create(ctx, msg))

	once, err := repo.ToggleReaction(ctx, msg.ID, "👍", "a")
	require.NoError(t, err)
	assert.Equal(t, []entity.Reaction{{Emoji: "👍", Users: []string{"a"}}}, once.Reactions)

	twice, err := repo.ToggleReaction(ctx, msg.ID, "👍", "a")
	require.NoError(t, err)
	assert.Empty(t, twice.Reactions)

	read, err := repo.MarkRead(ctx, msg.ID, "b")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, read.ReadBy)

	_, err = repo.ToggleReaction(ctx, "missing", "👍", "a")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestFirestoreMessageHistory(t *testing.T) {
	client := newEmulatorClient(t)
	chats := NewFirestoreChatRepository(client)
	repo := NewFirestoreMessageRepository(client)
	ctx := context.Background()

	chat, err := chats.CreateDirectChat(ctx, uuid.New().String(), uuid.New().String())
	require.NoError(t, err)

	var last *entity.Message
	for _, text := range []string{"one", "two", "three"} {
		last = &entity.Message{ChatID: chat.ID, SenderID: "a", Content: text, Type: entity.MessageTypeText}
		require.NoError(t, repo.Create(ctx, last))
	}

	got, err := chats.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, last.ID, got.LatestMessageID)

	page, total, err := repo.ListByChat(ctx, chat.ID, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, "two", page[0].Content)
	assert.Equal(t, "three", page[1].Content)

	err = repo.Create(ctx, &entity.Message{ChatID: "missing-" + uuid.New().String(), SenderID: "a", Content: "x"})
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}
