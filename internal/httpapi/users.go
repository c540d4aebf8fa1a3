package httpapi

import (
	"context"
	"strings"

	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/store"
)

// CollectionUserStore keeps login accounts in the users collection of the
// configured backend.
type CollectionUserStore struct {
	users *store.Collection[domain.UserAccount]
}

func NewCollectionUserStore(backend store.Backend) *CollectionUserStore {
	return &CollectionUserStore{users: store.NewCollection[domain.UserAccount](backend, store.CollectionUsers)}
}

func (s *CollectionUserStore) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	return s.users.Put(ctx, user)
}

func (s *CollectionUserStore) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	return s.users.Load(ctx), nil
}

func (s *CollectionUserStore) UpdateUserPassword(ctx context.Context, username string, password string) error {
	user, err := s.users.Get(ctx, username)
	if err != nil {
		return err
	}
	user.Password = password
	return s.users.Put(ctx, user)
}
