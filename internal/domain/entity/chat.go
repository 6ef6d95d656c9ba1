package entity

import "time"

// MaxGroupNameLength bounds group chat names, counted in runes.
const MaxGroupNameLength = 50

type Chat struct {
	ID              string    `json:"id" firestore:"id"`
	ChatName        string    `json:"chatName" firestore:"chatName"`
	IsGroupChat     bool      `json:"isGroupChat" firestore:"isGroupChat"`
	Users           []string  `json:"users" firestore:"users"`
	GroupAdmin      string    `json:"groupAdmin,omitempty" firestore:"groupAdmin,omitempty"`
	LatestMessageID string    `json:"latestMessageId,omitempty" firestore:"latestMessageId,omitempty"`
	DirectKey       string    `json:"-" firestore:"directKey,omitempty"`
	CreatedAt       time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt" firestore:"updatedAt"`
}

func (c *Chat) HasMember(userID string) bool {
	for _, id := range c.Users {
		if id == userID {
			return true
		}
	}
	return false
}

func (c *Chat) IsAdmin(userID string) bool {
	return c.IsGroupChat && c.GroupAdmin != "" && c.GroupAdmin == userID
}

// RemoveMember drops userID from the member list and reports whether it was present.
func (c *Chat) RemoveMember(userID string) bool {
	for i, id := range c.Users {
		if id == userID {
			c.Users = append(c.Users[:i:i], c.Users[i+1:]...)
			return true
		}
	}
	return false
}

// DirectKeyFor returns the store key of the direct chat between a and b.
// It is symmetric in its arguments.
func DirectKeyFor(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "direct_" + a + "_" + b
}

// UniqueUsers returns ids with duplicates and empty entries removed,
// keeping first-seen order.
func UniqueUsers(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
