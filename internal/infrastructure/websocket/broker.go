package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"relaychat/internal/domain/entity"
	"relaychat/internal/infrastructure/ratelimit"
	"relaychat/pkg/logger"
)

// PresenceRecorder persists a user's presence.
type PresenceRecorder interface {
	SetPresence(ctx context.Context, userID, status string, at time.Time) error
}

// ChatAuthorizer answers chat membership questions against the store.
type ChatAuthorizer interface {
	IsMember(ctx context.Context, chatID, userID string) (bool, error)
}

// Limiter throttles per-user actions such as typing.
type Limiter interface {
	Allow(subject, action string) (bool, time.Duration)
}

type BrokerConfig struct {
	PingTimeout time.Duration
	SendBuffer  int
}

var (
	ErrBrokerClosed     = errors.New("broker is closed")
	ErrNotActive        = errors.New("connection has not completed setup")
	ErrIdentityMismatch = errors.New("setup user does not match the authenticated user")
	ErrMissingUserID    = errors.New("userId is required")
	ErrNotChatMember    = errors.New("not a member of this chat")
	ErrNotInChatRoom    = errors.New("join the chat before sending typing events")
)

// storeTimeout bounds store calls made from socket handlers.
const storeTimeout = 5 * time.Second

// Broker owns every live connection and room table. Rooms are keyed
// "user:<id>" for the private mailbox and "chat:<id>" for joined chats.
type Broker struct {
	mu     sync.RWMutex
	conns  map[string]*Connection
	rooms  map[string]map[string]*Connection
	closed bool

	// presenceLocks serializes online/offline transitions per user.
	presenceLocks map[string]*presenceLock

	presence PresenceRecorder
	authz    ChatAuthorizer
	limiter  Limiter
	config   BrokerConfig
}

func NewBroker(presence PresenceRecorder, authz ChatAuthorizer, limiter Limiter, config BrokerConfig) *Broker {
	if config.PingTimeout <= 0 {
		config.PingTimeout = 60 * time.Second
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = 256
	}
	return &Broker{
		conns:    make(map[string]*Connection),
		rooms:    make(map[string]map[string]*Connection),
		presence: presence,
		authz:    authz,
		limiter:  limiter,
		config:   config,

		presenceLocks: make(map[string]*presenceLock),
	}
}

// Attach registers a freshly upgraded connection. It stays in
// AwaitingSetup until the client announces its identity.
func (b *Broker) Attach(c *Connection) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		c.state = StateDisconnected
		return ErrBrokerClosed
	}
	b.conns[c.ID] = c
	c.state = StateAwaitingSetup
	logger.Debug("Connection %s attached", c.ID)
	return nil
}

// Setup moves c to Active: it joins the user's private room, persists the
// online status and tells every other connection.
func (b *Broker) Setup(ctx context.Context, c *Connection, userID, username string) error {
	if userID == "" {
		userID = c.boundUserID
	}
	if userID == "" {
		return ErrMissingUserID
	}
	if c.boundUserID != "" && userID != c.boundUserID {
		return ErrIdentityMismatch
	}

	b.mu.Lock()
	switch c.state {
	case StateDisconnected:
		b.mu.Unlock()
		return ErrBrokerClosed
	case StateActive:
		if c.userID != userID {
			b.mu.Unlock()
			return ErrIdentityMismatch
		}
		b.mu.Unlock()
		b.sendTo(c, EventConnected, ConnectedPayload{UserID: userID})
		return nil
	}

	c.userID = userID
	c.username = username
	c.state = StateActive
	b.joinLocked(c, userRoom(userID))
	b.mu.Unlock()

	unlock := b.lockPresence(userID)
	defer unlock()

	// A connection that dropped while waiting leaves the offline write to Detach.
	if !b.IsOnline(userID) {
		return ErrNotActive
	}

	now := time.Now()
	if b.presence != nil {
		pctx, cancel := context.WithTimeout(ctx, storeTimeout)
		if err := b.presence.SetPresence(pctx, userID, entity.PresenceOnline, now); err != nil {
			logger.Error("Failed to mark user %s online: %v", userID, err)
		}
		cancel()
	}

	b.sendTo(c, EventConnected, ConnectedPayload{UserID: userID})
	b.BroadcastAll(EventUserOnline, PresencePayload{UserID: userID, Username: username, LastSeen: &now}, c.ID)
	logger.Info("User %s connected on %s", userID, c.ID)
	return nil
}

// JoinChat adds c to the chat room after checking membership in the store.
func (b *Broker) JoinChat(ctx context.Context, c *Connection, chatID string) error {
	userID, ok := b.activeUser(c)
	if !ok {
		return ErrNotActive
	}

	if b.authz != nil {
		actx, cancel := context.WithTimeout(ctx, storeTimeout)
		member, err := b.authz.IsMember(actx, chatID, userID)
		cancel()
		if err != nil {
			return err
		}
		if !member {
			return ErrNotChatMember
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if c.state != StateActive {
		return ErrNotActive
	}
	b.joinLocked(c, chatRoom(chatID))
	logger.Debug("User %s joined chat %s on %s", userID, chatID, c.ID)
	return nil
}

func (b *Broker) LeaveChat(c *Connection, chatID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leaveLocked(c, chatRoom(chatID))
}

// Typing relays a typing or stop-typing event to the chat room, skipping the
// originating connection. Only connections that joined the room may relay.
func (b *Broker) Typing(c *Connection, chatID string, typing bool) error {
	room := chatRoom(chatID)

	b.mu.RLock()
	if c.state != StateActive {
		b.mu.RUnlock()
		return ErrNotActive
	}
	if _, joined := c.rooms[room]; !joined {
		b.mu.RUnlock()
		return ErrNotInChatRoom
	}
	userID, username := c.userID, c.username
	b.mu.RUnlock()

	if typing && b.limiter != nil {
		if ok, _ := b.limiter.Allow(userID, ratelimit.ActionTyping); !ok {
			logger.Debug("Typing event from %s dropped by rate limit", userID)
			return nil
		}
	}

	event := EventStopTyping
	if typing {
		event = EventTyping
	}
	b.BroadcastToRoom(room, event, TypingPayload{ChatID: chatID, UserID: userID, Username: username}, c.ID)
	return nil
}

// PublishNewMessage delivers a persisted message to every chat member except
// the sender. Each connection receives it at most once.
func (b *Broker) PublishNewMessage(chatID, senderID string, memberIDs []string, message interface{}) {
	if len(memberIDs) == 0 {
		logger.Warn("Dropping new message push for chat %s: no members resolved", chatID)
		return
	}

	recipients := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id != senderID {
			recipients = append(recipients, id)
		}
	}
	b.deliverToUsers(recipients, EventNewMessage, message)
}

// PublishReaction delivers the updated message to every member's private
// room, including the reacting user's other devices.
func (b *Broker) PublishReaction(chatID, messageID string, memberIDs []string, message interface{}) {
	if len(memberIDs) == 0 {
		logger.Warn("Dropping reaction push for chat %s: no members resolved", chatID)
		return
	}
	b.deliverToUsers(memberIDs, EventReactionReceived, ReactionPayload{
		ChatID:         chatID,
		MessageID:      messageID,
		UpdatedMessage: message,
	})
}

func (b *Broker) PublishChatUpdated(memberIDs []string, chat interface{}) {
	b.deliverToUsers(memberIDs, EventChatUpdated, chat)
}

func (b *Broker) BroadcastToUser(userID, event string, data interface{}) {
	b.deliverToUsers([]string{userID}, event, data)
}

// BroadcastToRoom sends to every connection in room except exceptConnID.
func (b *Broker) BroadcastToRoom(room, event string, data interface{}, exceptConnID string) {
	b.mu.RLock()
	targets := make([]*Connection, 0, len(b.rooms[room]))
	for id, c := range b.rooms[room] {
		if id != exceptConnID {
			targets = append(targets, c)
		}
	}
	b.mu.RUnlock()

	b.fanOut(targets, event, data)
}

// BroadcastAll sends to every Active connection except exceptConnID.
func (b *Broker) BroadcastAll(event string, data interface{}, exceptConnID string) {
	b.mu.RLock()
	targets := make([]*Connection, 0, len(b.conns))
	for id, c := range b.conns {
		if id != exceptConnID && c.state == StateActive {
			targets = append(targets, c)
		}
	}
	b.mu.RUnlock()

	b.fanOut(targets, event, data)
}

// Detach removes c from every room. When it was the user's last connection
// the user is persisted offline and everyone else is told.
func (b *Broker) Detach(c *Connection) {
	b.mu.Lock()
	if c.state == StateDisconnected {
		b.mu.Unlock()
		return
	}
	wasActive := c.state == StateActive
	c.state = StateDisconnected
	delete(b.conns, c.ID)
	for room := range c.rooms {
		b.leaveLocked(c, room)
	}
	userID, username := c.userID, c.username
	lastConn := wasActive && len(b.rooms[userRoom(userID)]) == 0
	b.mu.Unlock()

	c.close()
	logger.Debug("Connection %s detached", c.ID)

	if !lastConn {
		return
	}

	unlock := b.lockPresence(userID)
	defer unlock()

	// The user may have set up a new connection since the room emptied.
	if b.IsOnline(userID) {
		logger.Debug("User %s reconnected before going offline", userID)
		return
	}

	now := time.Now()
	if b.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		if err := b.presence.SetPresence(ctx, userID, entity.PresenceOffline, now); err != nil {
			logger.Error("Failed to mark user %s offline: %v", userID, err)
		}
		cancel()
	}

	if b.IsOnline(userID) {
		return
	}
	b.BroadcastAll(EventUserOffline, PresencePayload{UserID: userID, Username: username, LastSeen: &now}, "")
	logger.Info("User %s disconnected", userID)
}

// EvictFromChat drops every connection of the given users from the chat
// room. They must join again, which re-checks membership.
func (b *Broker) EvictFromChat(chatID string, userIDs []string) {
	room := chatRoom(chatID)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range userIDs {
		for _, c := range b.rooms[userRoom(id)] {
			if _, joined := c.rooms[room]; joined {
				b.leaveLocked(c, room)
				logger.Debug("Evicted %s from chat %s on %s", id, chatID, c.ID)
			}
		}
	}
}

func (b *Broker) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// IsOnline reports whether userID has at least one Active connection.
func (b *Broker) IsOnline(userID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[userRoom(userID)]) > 0
}

// Close detaches every connection and refuses new ones.
func (b *Broker) Close() error {
	b.mu.Lock()
	b.closed = true
	conns := make([]*Connection, 0, len(b.conns))
	for _, c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	for _, c := range conns {
		b.Detach(c)
	}
	return nil
}

type presenceLock struct {
	mu   sync.Mutex
	refs int
}

// lockPresence takes the user's presence lock and returns its release.
func (b *Broker) lockPresence(userID string) func() {
	b.mu.Lock()
	l, ok := b.presenceLocks[userID]
	if !ok {
		l = &presenceLock{}
		b.presenceLocks[userID] = l
	}
	l.refs++
	b.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		b.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(b.presenceLocks, userID)
		}
		b.mu.Unlock()
	}
}

func (b *Broker) activeUser(c *Connection) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return c.userID, c.state == StateActive
}

func (b *Broker) joinLocked(c *Connection, room string) {
	members, ok := b.rooms[room]
	if !ok {
		members = make(map[string]*Connection)
		b.rooms[room] = members
	}
	members[c.ID] = c
	c.rooms[room] = struct{}{}
}

func (b *Broker) leaveLocked(c *Connection, room string) {
	if members, ok := b.rooms[room]; ok {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(b.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// deliverToUsers resolves each user's private room and sends once per
// connection, even when a user id is listed twice.
func (b *Broker) deliverToUsers(userIDs []string, event string, data interface{}) {
	b.mu.RLock()
	seen := make(map[string]struct{})
	targets := make([]*Connection, 0)
	for _, id := range userIDs {
		for connID, c := range b.rooms[userRoom(id)] {
			if _, dup := seen[connID]; dup {
				continue
			}
			seen[connID] = struct{}{}
			targets = append(targets, c)
		}
	}
	b.mu.RUnlock()

	b.fanOut(targets, event, data)
}

func (b *Broker) sendTo(c *Connection, event string, data interface{}) {
	b.fanOut([]*Connection{c}, event, data)
}

func (b *Broker) fanOut(targets []*Connection, event string, data interface{}) {
	if len(targets) == 0 {
		return
	}
	frame, err := encode(event, data)
	if err != nil {
		logger.Error("Failed to encode %q event: %v", event, err)
		return
	}
	for _, c := range targets {
		if !c.enqueue(frame) {
			logger.Warn("Send buffer full for connection %s, disconnecting", c.ID)
			go b.Detach(c)
		}
	}
}
