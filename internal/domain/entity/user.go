package entity

import (
	"time"
)

const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
	PresenceAway    = "away"
)

type User struct {
	ID           string `json:"id" firestore:"id"`
	Username     string `json:"username" firestore:"username"`
	Email        string `json:"email" firestore:"email"`
	PasswordHash string `json:"-" firestore:"passwordHash"`
	Avatar       string `json:"avatar,omitempty" firestore:"avatar,omitempty"`

	// Online presence
	OnlineStatus string    `json:"onlineStatus" firestore:"onlineStatus"`
	LastSeen     time.Time `json:"lastSeen" firestore:"lastSeen"`

	// Lower-cased copies for prefix search and uniqueness checks
	UsernameLower string `json:"-" firestore:"usernameLower"`
	EmailLower    string `json:"-" firestore:"emailLower"`

	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// PublicProfile is the subset of a user shown to other users.
type PublicProfile struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	Avatar       string    `json:"avatar,omitempty"`
	OnlineStatus string    `json:"onlineStatus"`
	LastSeen     time.Time `json:"lastSeen"`
}

func (u *User) Public() *PublicProfile {
	if u == nil {
		return nil
	}
	status := u.OnlineStatus
	if status == "" {
		status = PresenceOffline
	}
	return &PublicProfile{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Avatar:       u.Avatar,
		OnlineStatus: status,
		LastSeen:     u.LastSeen,
	}
}
