package websocket

import (
	"context"
	"encoding/json"

	"relaychat/pkg/logger"
)

func (b *Broker) handleInbound(ctx context.Context, c *Connection, env Envelope) {
	switch env.Event {
	case EventSetup:
		var payload SetupPayload
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				b.replyError(c, env.Event, "invalid setup payload")
				return
			}
		}
		if err := b.Setup(ctx, c, payload.id(), payload.name()); err != nil {
			b.replyError(c, env.Event, err.Error())
		}

	case EventJoinChat:
		chatID, err := parseChatID(env.Data)
		if err != nil {
			b.replyError(c, env.Event, err.Error())
			return
		}
		if err := b.JoinChat(ctx, c, chatID); err != nil {
			b.replyError(c, env.Event, err.Error())
		}

	case EventLeaveChat:
		chatID, err := parseChatID(env.Data)
		if err != nil {
			b.replyError(c, env.Event, err.Error())
			return
		}
		b.LeaveChat(c, chatID)

	case EventTyping, EventStopTyping:
		chatID, err := parseChatID(env.Data)
		if err != nil {
			b.replyError(c, env.Event, err.Error())
			return
		}
		if err := b.Typing(c, chatID, env.Event == EventTyping); err != nil {
			b.replyError(c, env.Event, err.Error())
		}

	case EventNewMessage, EventMessageReaction:
		// Pushed by the server once the write is persisted.
		logger.Debug("Ignoring client relay of %q on %s", env.Event, c.ID)

	case EventPing:
		b.sendTo(c, EventPong, nil)

	default:
		b.replyError(c, env.Event, "unknown event")
	}
}

func (b *Broker) replyError(c *Connection, event, message string) {
	b.sendTo(c, EventError, ErrorPayload{Event: event, Message: message})
}
