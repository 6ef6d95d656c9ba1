package entity

import (
	"strings"
	"time"
)

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeVideo = "video"
	MessageTypeAudio = "audio"
	MessageTypeFile  = "file"
)

type Message struct {
	ID        string     `json:"id" firestore:"id"`
	ChatID    string     `json:"chatId" firestore:"chatId"`
	SenderID  string     `json:"senderId" firestore:"senderId"`
	Content   string     `json:"content" firestore:"content"`
	Type      string     `json:"type" firestore:"type"`
	ReadBy    []string   `json:"readBy" firestore:"readBy"`
	Reactions []Reaction `json:"reactions" firestore:"reactions"`
	CreatedAt time.Time  `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt" firestore:"updatedAt"`
}

// Reaction groups the users that applied one emoji to a message.
type Reaction struct {
	Emoji string   `json:"emoji" firestore:"emoji"`
	Users []string `json:"users" firestore:"users"`
}

func IsValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeAudio, MessageTypeFile:
		return true
	}
	return false
}

// MessageTypeForMIME maps a sniffed media type to a message type tag.
func MessageTypeForMIME(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return MessageTypeImage
	case strings.HasPrefix(mime, "video/"):
		return MessageTypeVideo
	case strings.HasPrefix(mime, "audio/"):
		return MessageTypeAudio
	default:
		return MessageTypeFile
	}
}

// ToggleReaction flips userID's membership in the emoji group and returns the
// new reaction list. The input slice is not modified. Groups left with no
// users are dropped.
func ToggleReaction(reactions []Reaction, emoji, userID string) []Reaction {
	out := make([]Reaction, 0, len(reactions)+1)
	found := false

	for _, r := range reactions {
		if r.Emoji != emoji {
			out = append(out, Reaction{Emoji: r.Emoji, Users: append([]string(nil), r.Users...)})
			continue
		}

		found = true
		users := make([]string, 0, len(r.Users)+1)
		removed := false
		for _, u := range r.Users {
			if u == userID {
				removed = true
				continue
			}
			users = append(users, u)
		}
		if !removed {
			users = append(users, userID)
		}
		if len(users) > 0 {
			out = append(out, Reaction{Emoji: emoji, Users: users})
		}
	}

	if !found {
		out = append(out, Reaction{Emoji: emoji, Users: []string{userID}})
	}

	return out
}

func (m *Message) IsReadBy(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}
