package websocket

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Event names exchanged on the push channel.
const (
	EventSetup            = "setup"
	EventConnected        = "connected"
	EventJoinChat         = "join chat"
	EventLeaveChat        = "leave chat"
	EventTyping           = "typing"
	EventStopTyping       = "stop typing"
	EventNewMessage       = "new message"
	EventMessageReaction  = "message reaction"
	EventReactionReceived = "reaction received"
	EventUserOnline       = "user online"
	EventUserOffline      = "user offline"
	EventChatUpdated      = "chat updated"
	EventPing             = "ping"
	EventPong             = "pong"
	EventError            = "error"
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

func encode(event string, data interface{}) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: data})
}

// SetupPayload announces the identity of a connection. "_id" and "name" are
// accepted for older clients.
type SetupPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	LegacyID string `json:"_id,omitempty"`
	Name     string `json:"name,omitempty"`
}

func (p SetupPayload) id() string {
	if p.UserID != "" {
		return p.UserID
	}
	return p.LegacyID
}

func (p SetupPayload) name() string {
	if p.Username != "" {
		return p.Username
	}
	return p.Name
}

type ConnectedPayload struct {
	UserID string `json:"userId"`
}

type TypingPayload struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type PresencePayload struct {
	UserID   string     `json:"userId"`
	Username string     `json:"username,omitempty"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

type ReactionPayload struct {
	ChatID         string      `json:"chatId"`
	MessageID      string      `json:"messageId"`
	UpdatedMessage interface{} `json:"updatedMessage"`
}

type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

var errMissingChatID = errors.New("chatId is required")

// parseChatID accepts a bare JSON string or an object with a chatId field.
func parseChatID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errMissingChatID
	}

	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		id = strings.TrimSpace(id)
		if id == "" {
			return "", errMissingChatID
		}
		return id, nil
	}

	var obj struct {
		ChatID string `json:"chatId"`
		ID     string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", err
	}
	if obj.ChatID == "" {
		obj.ChatID = obj.ID
	}
	obj.ChatID = strings.TrimSpace(obj.ChatID)
	if obj.ChatID == "" {
		return "", errMissingChatID
	}
	return obj.ChatID, nil
}

func userRoom(userID string) string {
	return "user:" + userID
}

func chatRoom(chatID string) string {
	return "chat:" + chatID
}
