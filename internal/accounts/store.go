package accounts

import (
	"context"

	id "carebridge/pkg/domain"
)

// Store persists accounts. Implementations return sentinel.ErrNotFound when
// the user does not exist.
type Store interface {
	Find(ctx context.Context, userID id.UserID) (*Account, error)
	Create(ctx context.Context, account *Account) error
	SetStatus(ctx context.Context, userID id.UserID, status AccountStatus) error
}
