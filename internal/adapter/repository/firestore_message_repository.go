package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"relaychat/internal/domain/entity"
	"relaychat/internal/domain/repository"
	"relaychat/pkg/errors"
	"relaychat/pkg/logger"
)

const messagesCollection = "messages"

type firestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

func (r *firestoreMessageRepository) messages() *firestore.CollectionRef {
	return r.client.Collection(messagesCollection)
}

func (r *firestoreMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}

	now := time.Now()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now
	}
	message.UpdatedAt = now
	if message.Reactions == nil {
		message.Reactions = []entity.Reaction{}
	}

	msgRef := r.messages().Doc(message.ID)
	chatRef := r.client.Collection(chatsCollection).Doc(message.ChatID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(msgRef, message); err != nil {
			return err
		}
		return tx.Update(chatRef, []firestore.Update{
			{Path: "latestMessageId", Value: message.ID},
			{Path: "updatedAt", Value: now},
		})
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Chat", err)
		}
		return errors.Internal("Failed to create message", err)
	}

	return nil
}

func (r *firestoreMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	doc, err := r.messages().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}

	return decodeMessage(doc)
}

func (r *firestoreMessageRepository) ListByChat(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error) {
	query := r.messages().Where("chatId", "==", chatID).OrderBy("createdAt", firestore.Asc)

	total, err := countQuery(ctx, query)
	if err != nil {
		logger.Error("Firestore error while counting messages for chat %s: %v", chatID, err)
		return nil, 0, errors.Internal("Failed to count messages for chat", err)
	}

	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	messages := make([]*entity.Message, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while iterating messages for chat %s: %v", chatID, err)
			return nil, 0, errors.Internal("Failed to iterate messages", err)
		}

		message, err := decodeMessage(doc)
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, message)
	}

	return messages, total, nil
}

// countQuery runs a server-side count aggregation over q.
func countQuery(ctx context.Context, q firestore.Query) (int64, error) {
	res, err := q.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, err
	}
	v, ok := res["total"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected count result %T", res["total"])
	}
	return v.GetIntegerValue(), nil
}

// ToggleReaction runs inside a transaction; Firestore retries it when another
// writer touched the message between read and commit.
func (r *firestoreMessageRepository) ToggleReaction(ctx context.Context, messageID, emoji, userID string) (*entity.Message, error) {
	ref := r.messages().Doc(messageID)
	var updated *entity.Message

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Message", err)
			}
			return err
		}

		message, err := decodeMessage(doc)
		if err != nil {
			return err
		}
		message.Reactions = entity.ToggleReaction(message.Reactions, emoji, userID)
		message.UpdatedAt = time.Now()

		updated = message
		return tx.Update(ref, []firestore.Update{
			{Path: "reactions", Value: message.Reactions},
			{Path: "updatedAt", Value: message.UpdatedAt},
		})
	})
	if err != nil {
		var appErr *errors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, errors.Internal("Failed to toggle reaction", err)
	}

	return updated, nil
}

func (r *firestoreMessageRepository) MarkRead(ctx context.Context, messageID, userID string) (*entity.Message, error) {
	ref := r.messages().Doc(messageID)
	_, err := ref.Update(ctx, []firestore.Update{
		{Path: "readBy", Value: firestore.ArrayUnion(userID)},
		{Path: "updatedAt", Value: time.Now()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to update message read status", err)
	}

	return r.GetByID(ctx, messageID)
}

func decodeMessage(doc *firestore.DocumentSnapshot) (*entity.Message, error) {
	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	if message.Reactions == nil {
		message.Reactions = []entity.Reaction{}
	}
	return &message, nil
}
