package accounts

import (
	"context"
	"sync"

	id "carebridge/pkg/domain"
	"carebridge/pkg/sentinel"
)

// InMemoryStore is the test and single-node implementation of Store.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[id.UserID]Account
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{accounts: make(map[id.UserID]Account)}
}

func (s *InMemoryStore) Find(_ context.Context, userID id.UserID) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &account, nil
}

func (s *InMemoryStore) Create(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.UserID]; ok {
		return sentinel.ErrConflict
	}
	s.accounts[account.UserID] = *account
	return nil
}

func (s *InMemoryStore) SetStatus(_ context.Context, userID id.UserID, status AccountStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	account.Status = status
	s.accounts[userID] = account
	return nil
}
