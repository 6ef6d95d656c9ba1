package usecase

import (
	"relaychat/internal/domain/entity"
)

// ChatSummary is the denormalized chat carried on every message.
type ChatSummary struct {
	ID          string   `json:"id"`
	ChatName    string   `json:"chatName"`
	IsGroupChat bool     `json:"isGroupChat"`
	Users       []string `json:"users"`
	GroupAdmin  string   `json:"groupAdmin,omitempty"`
}

func summarize(chat *entity.Chat) *ChatSummary {
	return &ChatSummary{
		ID:          chat.ID,
		ChatName:    chat.ChatName,
		IsGroupChat: chat.IsGroupChat,
		Users:       append([]string(nil), chat.Users...),
		GroupAdmin:  chat.GroupAdmin,
	}
}

type MessageResponse struct {
	*entity.Message
	Sender *entity.PublicProfile `json:"sender"`
	Chat   *ChatSummary          `json:"chat,omitempty"`
}

type ChatResponse struct {
	*entity.Chat
	Members       []*entity.PublicProfile `json:"members"`
	Admin         *entity.PublicProfile   `json:"admin,omitempty"`
	LatestMessage *MessageResponse        `json:"latestMessage,omitempty"`
}

// profileOf falls back to a bare profile when the user record is gone.
func profileOf(users map[string]*entity.User, id string) *entity.PublicProfile {
	if u, ok := users[id]; ok {
		return u.Public()
	}
	return &entity.PublicProfile{ID: id, OnlineStatus: entity.PresenceOffline}
}

func buildChatResponse(chat *entity.Chat, users map[string]*entity.User, latest *entity.Message) *ChatResponse {
	resp := &ChatResponse{
		Chat:    chat,
		Members: make([]*entity.PublicProfile, 0, len(chat.Users)),
	}
	for _, id := range chat.Users {
		resp.Members = append(resp.Members, profileOf(users, id))
	}
	if chat.IsGroupChat && chat.GroupAdmin != "" {
		resp.Admin = profileOf(users, chat.GroupAdmin)
	}
	if latest != nil {
		resp.LatestMessage = &MessageResponse{
			Message: latest,
			Sender:  profileOf(users, latest.SenderID),
		}
	}
	return resp
}
