package accounts

import (
	"context"
	"errors"

	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/requestcontext"
	"carebridge/pkg/sentinel"
)

// Service exposes the account collaborator operations the onboarding and
// access modules rely on.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get loads the account for a user.
// Errors: CodeNotFound when no account exists, CodeStoreUnavailable when the
// store cannot be reached.
func (s *Service) Get(ctx context.Context, userID id.UserID) (*Account, error) {
	account, err := s.store.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeStoreUnavailable, "account store unreachable", err)
	}
	return account, nil
}

// Register creates a new account in pending status. Used by signup plumbing
// and tests; duplicate registration is a conflict.
func (s *Service) Register(ctx context.Context, userID id.UserID, role id.Role) (*Account, error) {
	now := requestcontext.Now(ctx)
	account := &Account{
		UserID:    userID,
		Role:      role,
		Status:    AccountPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "account already exists")
		}
		return nil, dErrors.Wrap(dErrors.CodeStoreUnavailable, "account store unreachable", err)
	}
	return account, nil
}

// SetStatus updates the verification status. Only the admin review flow
// calls this; the onboarding core never changes account status directly.
func (s *Service) SetStatus(ctx context.Context, userID id.UserID, status AccountStatus) error {
	if !status.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unsupported account status: "+string(status))
	}
	if err := s.store.SetStatus(ctx, userID, status); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return dErrors.Wrap(dErrors.CodeStoreUnavailable, "account store unreachable", err)
	}
	return nil
}
