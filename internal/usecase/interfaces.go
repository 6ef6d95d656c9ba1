package usecase

import (
	"context"
	"time"

	"relaychat/pkg/errors"
	"relaychat/pkg/logger"
)

// EventPublisher pushes persisted changes to connected clients. Delivery is
// best effort and never fails the request that caused it.
type EventPublisher interface {
	PublishNewMessage(chatID, senderID string, memberIDs []string, message interface{})
	PublishReaction(chatID, messageID string, memberIDs []string, message interface{})
	PublishChatUpdated(memberIDs []string, chat interface{})
	// EvictFromChat drops the users' live connections from the chat room.
	EvictFromChat(chatID string, userIDs []string)
}

// TokenVerifier maps a bearer credential to a user id.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

type TokenIssuer interface {
	GenerateToken(userID, username string) (string, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type RateLimiter interface {
	Allow(subject, action string) (bool, time.Duration)
}

type noopPublisher struct{}

func (noopPublisher) PublishNewMessage(string, string, []string, interface{}) {}
func (noopPublisher) PublishReaction(string, string, []string, interface{})   {}
func (noopPublisher) PublishChatUpdated([]string, interface{})                {}
func (noopPublisher) EvictFromChat(string, []string)                          {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

func checkRate(limiter RateLimiter, subject, action string) error {
	if limiter == nil {
		return nil
	}
	if ok, wait := limiter.Allow(subject, action); !ok {
		logger.Warn("Rate limited: %s on %s, retry in %v", subject, action, wait)
		return errors.TooManyRequests("Too many requests, please slow down")
	}
	return nil
}
