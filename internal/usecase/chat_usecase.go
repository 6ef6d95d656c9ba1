package usecase

import (
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"relaychat/internal/domain/entity"
	"relaychat/internal/domain/repository"
	"relaychat/internal/infrastructure/ratelimit"
	"relaychat/pkg/errors"
	"relaychat/pkg/logger"
)

// latestFetchLimit caps concurrent latest-message reads while listing chats.
const latestFetchLimit = 8

type ChatUseCase struct {
	chatRepo    repository.ChatRepository
	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
	publisher   EventPublisher
	rateLimiter RateLimiter
}

func NewChatUseCase(
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	messageRepo repository.MessageRepository,
	publisher EventPublisher,
	rateLimiter RateLimiter,
) *ChatUseCase {
	return &ChatUseCase{
		chatRepo:    chatRepo,
		userRepo:    userRepo,
		messageRepo: messageRepo,
		publisher:   publisherOrNoop(publisher),
		rateLimiter: rateLimiter,
	}
}

type CreateGroupInput struct {
	Name  string
	Users []string
}

// AccessChat returns the direct chat between userID and peerID, creating it
// on first access.
func (uc *ChatUseCase) AccessChat(ctx context.Context, userID, peerID string) (*ChatResponse, error) {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return nil, errors.InvalidArgument("userId is required", nil)
	}
	if peerID == userID {
		return nil, errors.InvalidArgument("Cannot start a chat with yourself", nil)
	}

	if _, err := uc.userRepo.GetByID(ctx, peerID); err != nil {
		return nil, err
	}

	chat, err := uc.chatRepo.FindDirectChat(ctx, userID, peerID)
	if err != nil {
		if !errors.Is(err, errors.CodeNotFound) {
			logger.Error("AccessChat Error: lookup %s/%s failed: %v", userID, peerID, err)
			return nil, err
		}

		if err := checkRate(uc.rateLimiter, userID, ratelimit.ActionCreateChat); err != nil {
			return nil, err
		}

		chat, err = uc.chatRepo.CreateDirectChat(ctx, userID, peerID)
		if err != nil {
			logger.Error("AccessChat Error: create %s/%s failed: %v", userID, peerID, err)
			return nil, err
		}
	}

	return uc.enrich(ctx, chat)
}

// ListChats returns every chat the user belongs to, most recently active first.
func (uc *ChatUseCase) ListChats(ctx context.Context, userID string) ([]*ChatResponse, error) {
	chats, err := uc.chatRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(chats) == 0 {
		return []*ChatResponse{}, nil
	}

	var memberIDs []string
	for _, chat := range chats {
		memberIDs = append(memberIDs, chat.Users...)
		if chat.GroupAdmin != "" {
			memberIDs = append(memberIDs, chat.GroupAdmin)
		}
	}

	latest := make([]*entity.Message, len(chats))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(latestFetchLimit)
	for i, chat := range chats {
		if chat.LatestMessageID == "" {
			continue
		}
		i, msgID := i, chat.LatestMessageID
		g.Go(func() error {
			msg, err := uc.messageRepo.GetByID(gctx, msgID)
			if err != nil {
				if errors.Is(err, errors.CodeNotFound) {
					return nil
				}
				return err
			}
			latest[i] = msg
			return nil
		})
	}

	var users map[string]*entity.User
	g.Go(func() error {
		var err error
		users, err = uc.userRepo.GetByIDs(gctx, entity.UniqueUsers(memberIDs))
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("ListChats Error: user %s: %v", userID, err)
		return nil, err
	}

	out := make([]*ChatResponse, 0, len(chats))
	for i, chat := range chats {
		out = append(out, buildChatResponse(chat, users, latest[i]))
	}
	return out, nil
}

func (uc *ChatUseCase) GetChat(ctx context.Context, userID, chatID string) (*ChatResponse, error) {
	chat, err := uc.memberChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	return uc.enrich(ctx, chat)
}

// IsMember reports whether userID belongs to chatID. A missing chat is not an error.
func (uc *ChatUseCase) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	return NewMembershipChecker(uc.chatRepo).IsMember(ctx, chatID, userID)
}

// MembershipChecker answers chat-room join checks for the socket broker.
type MembershipChecker struct {
	chatRepo repository.ChatRepository
}

func NewMembershipChecker(chatRepo repository.ChatRepository) *MembershipChecker {
	return &MembershipChecker{
		chatRepo: chatRepo,
	}
}

func (m *MembershipChecker) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	chat, err := m.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return chat.HasMember(userID), nil
}

func (uc *ChatUseCase) CreateGroup(ctx context.Context, userID string, input CreateGroupInput) (*ChatResponse, error) {
	name, err := normalizeGroupName(input.Name)
	if err != nil {
		return nil, err
	}

	others := make([]string, 0, len(input.Users))
	for _, id := range entity.UniqueUsers(input.Users) {
		if id != userID {
			others = append(others, id)
		}
	}
	if len(others) < 2 {
		return nil, errors.InvalidArgument("More than 2 users are required to form a group chat", nil)
	}

	if err := checkRate(uc.rateLimiter, userID, ratelimit.ActionCreateChat); err != nil {
		return nil, err
	}

	found, err := uc.userRepo.GetByIDs(ctx, others)
	if err != nil {
		return nil, err
	}
	for _, id := range others {
		if _, ok := found[id]; !ok {
			return nil, errors.InvalidArgument("Unknown user "+id, nil)
		}
	}

	chat := &entity.Chat{
		ChatName:    name,
		IsGroupChat: true,
		Users:       append(others, userID),
		GroupAdmin:  userID,
	}
	if err := uc.chatRepo.CreateGroup(ctx, chat); err != nil {
		logger.Error("CreateGroup Error: %v", err)
		return nil, err
	}

	resp, err := uc.enrich(ctx, chat)
	if err != nil {
		return nil, err
	}
	uc.publisher.PublishChatUpdated(chat.Users, resp)
	return resp, nil
}

func (uc *ChatUseCase) RenameGroup(ctx context.Context, userID, chatID, name string) (*ChatResponse, error) {
	name, err := normalizeGroupName(name)
	if err != nil {
		return nil, err
	}

	chat, err := uc.chatRepo.UpdateGroup(ctx, chatID, func(chat *entity.Chat) error {
		if err := requireGroupAdmin(chat, userID); err != nil {
			return err
		}
		chat.ChatName = name
		return nil
	})
	if err != nil {
		return nil, err
	}

	return uc.announce(ctx, chat, nil)
}

func (uc *ChatUseCase) AddToGroup(ctx context.Context, userID, chatID, memberID string) (*ChatResponse, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, errors.InvalidArgument("userId is required", nil)
	}
	if _, err := uc.userRepo.GetByID(ctx, memberID); err != nil {
		return nil, err
	}

	chat, err := uc.chatRepo.UpdateGroup(ctx, chatID, func(chat *entity.Chat) error {
		if err := requireGroupAdmin(chat, userID); err != nil {
			return err
		}
		if chat.HasMember(memberID) {
			return errors.InvalidArgument("User is already a member of this group", nil)
		}
		chat.Users = append(chat.Users, memberID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return uc.announce(ctx, chat, nil)
}

// RemoveFromGroup removes memberID. The admin may remove anyone; any member
// may remove themselves. The admin cannot leave while others remain, and a
// group is never left empty.
func (uc *ChatUseCase) RemoveFromGroup(ctx context.Context, userID, chatID, memberID string) (*ChatResponse, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, errors.InvalidArgument("userId is required", nil)
	}

	chat, err := uc.chatRepo.UpdateGroup(ctx, chatID, func(chat *entity.Chat) error {
		if !chat.IsGroupChat {
			return errors.InvalidArgument("Not a group chat", nil)
		}
		if !chat.HasMember(userID) {
			return errors.Forbidden("You are not a member of this chat", nil)
		}
		if memberID != userID && !chat.IsAdmin(userID) {
			return errors.Forbidden("Only the group admin can remove members", nil)
		}
		if !chat.HasMember(memberID) {
			return errors.InvalidArgument("User is not a member of this group", nil)
		}
		if len(chat.Users) == 1 {
			return errors.InvalidArgument("A group must keep at least one member", nil)
		}
		if memberID == chat.GroupAdmin {
			return errors.InvalidArgument("Transfer admin rights before the admin leaves the group", nil)
		}
		chat.RemoveMember(memberID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.publisher.EvictFromChat(chat.ID, []string{memberID})
	return uc.announce(ctx, chat, []string{memberID})
}

func (uc *ChatUseCase) TransferAdmin(ctx context.Context, userID, chatID, newAdminID string) (*ChatResponse, error) {
	newAdminID = strings.TrimSpace(newAdminID)
	if newAdminID == "" {
		return nil, errors.InvalidArgument("userId is required", nil)
	}

	chat, err := uc.chatRepo.UpdateGroup(ctx, chatID, func(chat *entity.Chat) error {
		if err := requireGroupAdmin(chat, userID); err != nil {
			return err
		}
		if !chat.HasMember(newAdminID) {
			return errors.InvalidArgument("New admin must be a member of the group", nil)
		}
		chat.GroupAdmin = newAdminID
		return nil
	})
	if err != nil {
		return nil, err
	}

	return uc.announce(ctx, chat, nil)
}

func (uc *ChatUseCase) memberChat(ctx context.Context, userID, chatID string) (*entity.Chat, error) {
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasMember(userID) {
		return nil, errors.Forbidden("You are not a member of this chat", nil)
	}
	return chat, nil
}

func (uc *ChatUseCase) enrich(ctx context.Context, chat *entity.Chat) (*ChatResponse, error) {
	ids := append([]string(nil), chat.Users...)
	if chat.GroupAdmin != "" {
		ids = append(ids, chat.GroupAdmin)
	}
	users, err := uc.userRepo.GetByIDs(ctx, entity.UniqueUsers(ids))
	if err != nil {
		return nil, err
	}

	var latest *entity.Message
	if chat.LatestMessageID != "" {
		latest, err = uc.messageRepo.GetByID(ctx, chat.LatestMessageID)
		if err != nil && !errors.Is(err, errors.CodeNotFound) {
			return nil, err
		}
	}

	return buildChatResponse(chat, users, latest), nil
}

// announce enriches the updated group and pushes it to its members plus extra.
func (uc *ChatUseCase) announce(ctx context.Context, chat *entity.Chat, extra []string) (*ChatResponse, error) {
	resp, err := uc.enrich(ctx, chat)
	if err != nil {
		return nil, err
	}
	uc.publisher.PublishChatUpdated(entity.UniqueUsers(append(append([]string(nil), chat.Users...), extra...)), resp)
	return resp, nil
}

func requireGroupAdmin(chat *entity.Chat, userID string) error {
	if !chat.IsGroupChat {
		return errors.InvalidArgument("Not a group chat", nil)
	}
	if !chat.IsAdmin(userID) {
		return errors.Forbidden("Only the group admin can do that", nil)
	}
	return nil
}

func normalizeGroupName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.InvalidArgument("Group name is required", nil)
	}
	if utf8.RuneCountInString(name) > entity.MaxGroupNameLength {
		return "", errors.InvalidArgument("Group name is too long", nil)
	}
	return name, nil
}
