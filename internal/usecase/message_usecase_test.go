package usecase

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat/internal/domain/entity"
	"relaychat/internal/infrastructure/ratelimit"
	"relaychat/pkg/errors"
)

func directChat(t *testing.T, env *testEnv) (alice, bob *entity.User, chatID string) {
	t.Helper()
	alice = env.seedUser(t, "alice")
	bob = env.seedUser(t, "bob")
	chat, err := env.chat.AccessChat(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)
	return alice, bob, chat.ID
}

func TestSendMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, bob, chatID := directChat(t, env)

	msg, err := env.message.SendMessage(ctx, alice.ID, SendMessageInput{ChatID: chatID, Content: "  hi bob  "})
	require.NoError(t, err)
	assert.Equal(t, "hi bob", msg.Content)
	assert.Equal(t, entity.MessageTypeText, msg.Type)
	assert.Equal(t, []string{alice.ID}, msg.ReadBy)
	assert.Equal(t, "alice", msg.Sender.Username)
	require.NotNil(t, msg.Chat)
	assert.Equal(t, chatID, msg.Chat.ID)

	chat, err := env.chats.GetByID(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, chat.LatestMessageID)

	events := env.publisher.of("new message")
	require.Len(t, events, 1)
	assert.Equal(t, chatID, events[0].chatID)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, events[0].members)
}

func TestSendMessageRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, _, chatID := directChat(t, env)
	outsider := env.seedUser(t, "mallory")

	_, err := env.message.SendMessage(ctx, alice.ID, SendMessageInput{ChatID: chatID, Content: "   "})
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))

	_, err = env.message.SendMessage(ctx, alice.ID, SendMessageInput{ChatID: chatID, Content: "x", Type: "sticker"})
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))

	_, err = env.message.SendMessage(ctx, outsider.ID, SendMessageInput{ChatID: chatID, Content: "hi"})
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	_, err = env.message.SendMessage(ctx, alice.ID, SendMessageInput{ChatID: "missing", Content: "hi"})
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	env.limiter[ratelimit.ActionSendMessage] = true
	_, err = env.message.SendMessage(ctx, alice.ID, SendMessageInput{ChatID: chatID, Content: "hi"})
	assert.True(t, errors.Is(err, errors.CodeTooManyRequests))

	assert.Empty(t, env.publisher.of("new message"))
}

func TestListMessagesAndMarkRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, bob, chatID := directChat(t, env)
	outsider := env.seedUser(t, "mallory")

	sent, err := env.message.SendMessage(ctx, alice.ID, SendMessageInput{ChatID: chatID, Content: "one"})
	require.NoError(t, err)

	list, total, err := env.message.ListMessages(ctx, bob.ID, chatID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].Sender.Username)

	_, _, err = env.message.ListMessages(ctx, outsider.ID, chatID, 20, 0)
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	for i := 0; i < 2; i++ {
		read, err := env.message.MarkRead(ctx, bob.ID, sent.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{alice.ID, bob.ID}, read.ReadBy)
	}

	_, err = env.message.MarkRead(ctx, outsider.ID, sent.ID)
	assert.True(t, errors.Is(err, errors.CodeForbidden))
}

func TestToggleReaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, bob, chatID := directChat(t, env)

	sent, err := env.message.SendMessage(ctx, alice.ID, SendMessageInput{ChatID: chatID, Content: "hi"})
	require.NoError(t, err)

	on, err := env.message.ToggleReaction(ctx, bob.ID, sent.ID, "👍")
	require.NoError(t, err)
	assert.Equal(t, []entity.Reaction{{Emoji: "👍", Users: []string{bob.ID}}}, on.Reactions)

	events := env.publisher.of("reaction")
	require.Len(t, events, 1)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, events[0].members)

	off, err := env.message.ToggleReaction(ctx, bob.ID, sent.ID, "👍")
	require.NoError(t, err)
	assert.Empty(t, off.Reactions)

	_, err = env.message.ToggleReaction(ctx, bob.ID, sent.ID, "  ")
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))

	_, err = env.message.ToggleReaction(ctx, bob.ID, "missing", "👍")
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	outsider := env.seedUser(t, "mallory")
	_, err = env.message.ToggleReaction(ctx, outsider.ID, sent.ID, "👍")
	assert.True(t, errors.Is(err, errors.CodeForbidden))
}

func TestConcurrentReactionsAreNotLost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, bob, chatID := directChat(t, env)

	sent, err := env.message.SendMessage(ctx, alice.ID, SendMessageInput{ChatID: chatID, Content: "hi"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, uid := range []string{alice.ID, bob.ID} {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			_, err := env.message.ToggleReaction(ctx, uid, sent.ID, "🔥")
			assert.NoError(t, err)
		}(uid)
	}
	wg.Wait()

	got, err := env.messages.GetByID(ctx, sent.ID)
	require.NoError(t, err)
	require.Len(t, got.Reactions, 1)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, got.Reactions[0].Users)
}

func TestSendMediaCreatesTypedMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, _, chatID := directChat(t, env)

	msg, err := env.message.SendMedia(ctx, alice.ID, SendMediaInput{ChatID: chatID, File: bytes.NewReader(pngBytes)})
	require.NoError(t, err)
	assert.Equal(t, entity.MessageTypeImage, msg.Type)
	assert.Contains(t, msg.Content, "https://media.test/")
}

func TestSendMediaUploadFailureCreatesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, _, chatID := directChat(t, env)

	env.message.media = NewMediaUploader(&fakeStore{fail: true}, t.TempDir(), 1<<20)
	_, err := env.message.SendMedia(ctx, alice.ID, SendMediaInput{ChatID: chatID, File: bytes.NewReader(pngBytes)})
	assert.True(t, errors.Is(err, errors.CodeUploadFailed))

	_, total, err := env.message.ListMessages(ctx, alice.ID, chatID, 20, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, env.publisher.of("new message"))
}
