package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat/internal/infrastructure/ratelimit"
	"relaychat/pkg/errors"
)

func TestAccessChatIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")

	first, err := env.chat.AccessChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, first.IsGroupChat)
	assert.Len(t, first.Members, 2)

	second, err := env.chat.AccessChat(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestAccessChatConcurrentCallersShareOneChat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")

	ids := make([]string, 8)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := alice.ID, bob.ID
			if i%2 == 1 {
				a, b = b, a
			}
			resp, err := env.chat.AccessChat(ctx, a, b)
			if assert.NoError(t, err) {
				ids[i] = resp.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	chats, err := env.chat.ListChats(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

func TestAccessChatErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")

	_, err := env.chat.AccessChat(ctx, alice.ID, "")
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))

	_, err = env.chat.AccessChat(ctx, alice.ID, alice.ID)
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))

	_, err = env.chat.AccessChat(ctx, alice.ID, "ghost")
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	env.limiter[ratelimit.ActionCreateChat] = true
	_, err = env.chat.AccessChat(ctx, alice.ID, bob.ID)
	assert.True(t, errors.Is(err, errors.CodeTooManyRequests))
}

func TestCreateGroup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	carol := env.seedUser(t, "carol")

	group, err := env.chat.CreateGroup(ctx, alice.ID, CreateGroupInput{
		Name:  "  Weekend  ",
		Users: []string{bob.ID, carol.ID, bob.ID, alice.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "Weekend", group.ChatName)
	assert.True(t, group.IsGroupChat)
	assert.Equal(t, alice.ID, group.GroupAdmin)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID, carol.ID}, group.Users)
	require.NotNil(t, group.Admin)
	assert.Equal(t, "alice", group.Admin.Username)

	updates := env.publisher.of("chat updated")
	require.Len(t, updates, 1)
	assert.ElementsMatch(t, group.Users, updates[0].members)
}

func TestCreateGroupValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	carol := env.seedUser(t, "carol")

	cases := map[string]CreateGroupInput{
		"empty name":    {Name: "   ", Users: []string{bob.ID, carol.ID}},
		"long name":     {Name: strings.Repeat("é", 51), Users: []string{bob.ID, carol.ID}},
		"too few users": {Name: "x", Users: []string{bob.ID, alice.ID}},
		"unknown user":  {Name: "x", Users: []string{bob.ID, "ghost"}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.chat.CreateGroup(ctx, alice.ID, input)
			assert.True(t, errors.Is(err, errors.CodeInvalidArgument), err)
		})
	}

	_, err := env.chat.CreateGroup(ctx, alice.ID, CreateGroupInput{Name: strings.Repeat("é", 50), Users: []string{bob.ID, carol.ID}})
	assert.NoError(t, err)
}

func newGroup(t *testing.T, env *testEnv) (admin, bob, carol string, chatID string) {
	t.Helper()
	a := env.seedUser(t, "alice")
	b := env.seedUser(t, "bob")
	c := env.seedUser(t, "carol")
	group, err := env.chat.CreateGroup(context.Background(), a.ID, CreateGroupInput{Name: "team", Users: []string{b.ID, c.ID}})
	require.NoError(t, err)
	return a.ID, b.ID, c.ID, group.ID
}

func TestGroupAdminOperations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, bob, carol, chatID := newGroup(t, env)
	dave := env.seedUser(t, "dave")

	_, err := env.chat.RenameGroup(ctx, bob, chatID, "mine")
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	renamed, err := env.chat.RenameGroup(ctx, admin, chatID, "renamed")
	require.NoError(t, err)
	assert.Equal(t, "renamed", renamed.ChatName)

	_, err = env.chat.AddToGroup(ctx, bob, chatID, dave.ID)
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	added, err := env.chat.AddToGroup(ctx, admin, chatID, dave.ID)
	require.NoError(t, err)
	assert.Contains(t, added.Users, dave.ID)

	_, err = env.chat.AddToGroup(ctx, admin, chatID, dave.ID)
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))

	_, err = env.chat.RemoveFromGroup(ctx, bob, chatID, carol)
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	removed, err := env.chat.RemoveFromGroup(ctx, admin, chatID, carol)
	require.NoError(t, err)
	assert.NotContains(t, removed.Users, carol)

	last := env.publisher.of("chat updated")
	assert.Contains(t, last[len(last)-1].members, carol, "removed member is told about the removal")

	evicted := env.publisher.of("evict")
	require.Len(t, evicted, 1)
	assert.Equal(t, chatID, evicted[0].chatID)
	assert.Equal(t, []string{carol}, evicted[0].members)
}

func TestGroupLeaveRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, bob, carol, chatID := newGroup(t, env)

	left, err := env.chat.RemoveFromGroup(ctx, bob, chatID, bob)
	require.NoError(t, err)
	assert.NotContains(t, left.Users, bob)
	require.Len(t, env.publisher.of("evict"), 1)
	assert.Equal(t, []string{bob}, env.publisher.of("evict")[0].members)

	_, err = env.chat.RemoveFromGroup(ctx, admin, chatID, admin)
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))

	_, err = env.chat.TransferAdmin(ctx, admin, chatID, bob)
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument), "former members cannot become admin")

	moved, err := env.chat.TransferAdmin(ctx, admin, chatID, carol)
	require.NoError(t, err)
	assert.Equal(t, carol, moved.GroupAdmin)

	_, err = env.chat.RemoveFromGroup(ctx, carol, chatID, admin)
	require.NoError(t, err)

	_, err = env.chat.RemoveFromGroup(ctx, carol, chatID, carol)
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument), "a group never becomes empty")
}

func TestGroupOperationsOnDirectChat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")

	direct, err := env.chat.AccessChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = env.chat.RenameGroup(ctx, alice.ID, direct.ID, "x")
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))
}

func TestGetChatAndMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, bob, _, chatID := newGroup(t, env)
	outsider := env.seedUser(t, "mallory")

	got, err := env.chat.GetChat(ctx, bob, chatID)
	require.NoError(t, err)
	assert.Len(t, got.Members, 3)

	_, err = env.chat.GetChat(ctx, outsider.ID, chatID)
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	ok, err := env.chat.IsMember(ctx, chatID, bob)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.chat.IsMember(ctx, "missing", bob)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListChatsCarriesLatestMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")

	direct, err := env.chat.AccessChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	sent, err := env.message.SendMessage(ctx, alice.ID, SendMessageInput{ChatID: direct.ID, Content: "hello"})
	require.NoError(t, err)

	chats, err := env.chat.ListChats(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.NotNil(t, chats[0].LatestMessage)
	assert.Equal(t, sent.ID, chats[0].LatestMessage.ID)
	assert.Equal(t, "alice", chats[0].LatestMessage.Sender.Username)

	empty, err := env.chat.ListChats(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
