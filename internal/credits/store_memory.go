package credits

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]Account
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]Account)}
}

func (s *memoryStore) Get(ctx context.Context, userID string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(userID), nil
}

func (s *memoryStore) Grant(ctx context.Context, userID string, n int) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if n <= 0 {
		return s.Get(ctx, userID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	account := s.ensureLocked(userID)
	account.Balance += n
	account.UpdatedAt = time.Now().UTC()
	s.data[userID] = account
	return account, nil
}

// Deduct is the conditional decrement: it only succeeds when the balance
// covers n. The mutex makes check and write one step.
func (s *memoryStore) Deduct(ctx context.Context, userID string, n int) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if n <= 0 {
		return s.Get(ctx, userID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	account := s.ensureLocked(userID)
	if account.Balance < n {
		return Account{}, ErrInsufficient
	}
	account.Balance -= n
	account.UpdatedAt = time.Now().UTC()
	s.data[userID] = account
	return account, nil
}

func (s *memoryStore) SetUnlimited(ctx context.Context, userID string, unlimited bool) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	account := s.ensureLocked(userID)
	account.Unlimited = unlimited
	account.UpdatedAt = time.Now().UTC()
	s.data[userID] = account
	return account, nil
}

func (s *memoryStore) ensureLocked(userID string) Account {
	account, ok := s.data[userID]
	if !ok {
		account = defaultAccount(userID)
		s.data[userID] = account
	}
	return account
}
