package repository

import (
	"context"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"relaychat/internal/domain/entity"
	"relaychat/internal/domain/repository"
	"relaychat/pkg/errors"
	"relaychat/pkg/logger"
)

const (
	usersCollection = "users"
	// searchScanLimit caps how many documents one prefix query may read.
	searchScanLimit = 200
)

type firestoreUserRepository struct {
	client *firestore.Client
}

func NewFirestoreUserRepository(client *firestore.Client) repository.UserRepository {
	return &firestoreUserRepository{
		client: client,
	}
}

func (r *firestoreUserRepository) users() *firestore.CollectionRef {
	return r.client.Collection(usersCollection)
}

func (r *firestoreUserRepository) Create(ctx context.Context, user *entity.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now()
	user.EmailLower = strings.ToLower(user.Email)
	user.UsernameLower = strings.ToLower(user.Username)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.OnlineStatus == "" {
		user.OnlineStatus = entity.PresenceOffline
	}

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		byEmail, err := tx.Documents(r.users().Where("emailLower", "==", user.EmailLower).Limit(1)).GetAll()
		if err != nil {
			return err
		}
		if len(byEmail) > 0 {
			return errors.Conflict("Email already registered")
		}

		byUsername, err := tx.Documents(r.users().Where("usernameLower", "==", user.UsernameLower).Limit(1)).GetAll()
		if err != nil {
			return err
		}
		if len(byUsername) > 0 {
			return errors.Conflict("Username already taken")
		}

		return tx.Create(r.users().Doc(user.ID), user)
	})
	if err != nil {
		if errors.Is(err, errors.CodeConflict) {
			return err
		}
		if status.Code(err) == codes.AlreadyExists {
			return errors.Conflict("User already exists")
		}
		logger.Error("Failed to create user %s: %v", user.ID, err)
		return errors.Internal("Failed to create user", err)
	}

	return nil
}

func (r *firestoreUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	doc, err := r.users().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("User", err)
		}
		return nil, errors.Internal("Failed to get user", err)
	}

	var user entity.User
	if err := doc.DataTo(&user); err != nil {
		return nil, errors.Internal("Failed to parse user data", err)
	}
	return &user, nil
}

func (r *firestoreUserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	docs, err := r.users().Where("emailLower", "==", strings.ToLower(email)).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to query user", err)
	}
	if len(docs) == 0 {
		return nil, errors.NotFound("User", nil)
	}

	var user entity.User
	if err := docs[0].DataTo(&user); err != nil {
		return nil, errors.Internal("Failed to parse user data", err)
	}
	return &user, nil
}

func (r *firestoreUserRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*entity.User, error) {
	out := make(map[string]*entity.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range entity.UniqueUsers(ids) {
		refs = append(refs, r.users().Doc(id))
	}

	snaps, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, errors.Internal("Failed to get users", err)
	}

	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		var user entity.User
		if err := snap.DataTo(&user); err != nil {
			return nil, errors.Internal("Failed to parse user data", err)
		}
		out[user.ID] = &user
	}
	return out, nil
}

// Search runs one prefix range query per indexed field and merges the results.
func (r *firestoreUserRepository) Search(ctx context.Context, keyword, excludeID string, limit, offset int) ([]*entity.User, int64, error) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))

	var queries []firestore.Query
	if keyword == "" {
		queries = append(queries, r.users().OrderBy("usernameLower", firestore.Asc).Limit(searchScanLimit))
	} else {
		for _, field := range []string{"usernameLower", "emailLower"} {
			queries = append(queries, r.users().
				Where(field, ">=", keyword).
				Where(field, "<", keyword+"\uf8ff").
				Limit(searchScanLimit))
		}
	}

	seen := make(map[string]struct{})
	matches := make([]*entity.User, 0)
	for _, q := range queries {
		docs, err := q.Documents(ctx).GetAll()
		if err != nil {
			return nil, 0, errors.Internal("Failed to search users", err)
		}
		for _, doc := range docs {
			var user entity.User
			if err := doc.DataTo(&user); err != nil {
				return nil, 0, errors.Internal("Failed to parse user data", err)
			}
			if user.ID == excludeID {
				continue
			}
			if _, ok := seen[user.ID]; ok {
				continue
			}
			seen[user.ID] = struct{}{}
			matches = append(matches, &user)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].UsernameLower < matches[j].UsernameLower
	})

	total := int64(len(matches))
	if offset >= len(matches) {
		return []*entity.User{}, total, nil
	}
	end := len(matches)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matches[offset:end], total, nil
}

func (r *firestoreUserRepository) UpdatePresence(ctx context.Context, id, presence string, lastSeen time.Time) error {
	_, err := r.users().Doc(id).Update(ctx, []firestore.Update{
		{Path: "onlineStatus", Value: presence},
		{Path: "lastSeen", Value: lastSeen},
		{Path: "updatedAt", Value: time.Now()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("User", err)
		}
		return errors.Internal("Failed to update presence", err)
	}
	return nil
}
