package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToggleReaction(t *testing.T) {
	t.Run("adds a new emoji group", func(t *testing.T) {
		got := ToggleReaction(nil, "👍", "alice")
		assert.Equal(t, []Reaction{{Emoji: "👍", Users: []string{"alice"}}}, got)
	})

	t.Run("removes the group when the last user leaves", func(t *testing.T) {
		start := []Reaction{{Emoji: "👍", Users: []string{"alice"}}}
		got := ToggleReaction(start, "👍", "alice")
		assert.Empty(t, got)
	})

	t.Run("adds a second user to an existing group", func(t *testing.T) {
		start := []Reaction{{Emoji: "👍", Users: []string{"alice"}}}
		got := ToggleReaction(start, "👍", "bob")
		assert.Equal(t, []Reaction{{Emoji: "👍", Users: []string{"alice", "bob"}}}, got)
	})

	t.Run("double toggle restores the previous state", func(t *testing.T) {
		start := []Reaction{
			{Emoji: "❤️", Users: []string{"carol"}},
			{Emoji: "👍", Users: []string{"alice", "bob"}},
		}
		once := ToggleReaction(start, "👍", "alice")
		twice := ToggleReaction(once, "👍", "alice")

		assert.ElementsMatch(t, []string{"bob"}, once[1].Users)
		assert.Len(t, twice, 2)
		assert.Equal(t, "❤️", twice[0].Emoji)
		assert.ElementsMatch(t, []string{"alice", "bob"}, twice[1].Users)
	})

	t.Run("a user can hold several emojis", func(t *testing.T) {
		got := ToggleReaction(nil, "👍", "alice")
		got = ToggleReaction(got, "🎉", "alice")
		assert.Len(t, got, 2)
	})

	t.Run("does not mutate the input", func(t *testing.T) {
		start := []Reaction{{Emoji: "👍", Users: []string{"alice", "bob"}}}
		_ = ToggleReaction(start, "👍", "alice")
		assert.Equal(t, []string{"alice", "bob"}, start[0].Users)
	})
}

func TestMessageTypeForMIME(t *testing.T) {
	assert.Equal(t, MessageTypeImage, MessageTypeForMIME("image/png"))
	assert.Equal(t, MessageTypeVideo, MessageTypeForMIME("video/mp4"))
	assert.Equal(t, MessageTypeAudio, MessageTypeForMIME("audio/mpeg"))
	assert.Equal(t, MessageTypeFile, MessageTypeForMIME("application/pdf"))
}

func TestDirectKeyForIsSymmetric(t *testing.T) {
	assert.Equal(t, DirectKeyFor("a", "b"), DirectKeyFor("b", "a"))
	assert.Equal(t, "direct_a_b", DirectKeyFor("b", "a"))
}

func TestChatRemoveMember(t *testing.T) {
	chat := &Chat{Users: []string{"a", "b", "c"}}
	assert.True(t, chat.RemoveMember("b"))
	assert.Equal(t, []string{"a", "c"}, chat.Users)
	assert.False(t, chat.RemoveMember("z"))
}

func TestUniqueUsers(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, UniqueUsers([]string{"a", "", "b", "a"}))
}
