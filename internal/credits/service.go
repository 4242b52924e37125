package credits

import (
	"context"
	"errors"
)

type store interface {
	Get(ctx context.Context, userID string) (Account, error)
	Grant(ctx context.Context, userID string, n int) (Account, error)
	Deduct(ctx context.Context, userID string, n int) (Account, error)
	SetUnlimited(ctx context.Context, userID string, unlimited bool) (Account, error)
}

// Service manages credit balances via an underlying store.
type Service struct {
	store store
	costs Costs
}

// NewService constructs a Service with an in-memory store.
func NewService(costs Costs) *Service {
	return &Service{store: newMemoryStore(), costs: costs}
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(pgStore store, costs Costs) *Service {
	return &Service{store: pgStore, costs: costs}
}

// Get returns the account for a user, initializing defaults if absent.
func (s *Service) Get(ctx context.Context, userID string) (Account, error) {
	return s.store.Get(ctx, userID)
}

// CostFor returns the credit cost of one analysis kind.
func (s *Service) CostFor(kind string) int {
	return s.costs.For(kind)
}

// Grant adds n credits to the user's balance.
func (s *Service) Grant(ctx context.Context, userID string, n int) (Account, error) {
	return s.store.Grant(ctx, userID, n)
}

// TryConsume deducts the cost of kind from the user's balance in one
// conditional step: the deduction happens only when the balance covers it, so
// two concurrent analyses by the same user cannot both pass a stale check.
// Unlimited accounts consume nothing. Returns whether the caller holds full
// access after the call.
func (s *Service) TryConsume(ctx context.Context, userID, kind string) (bool, error) {
	account, err := s.store.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if account.Unlimited {
		return true, nil
	}
	if _, err := s.store.Deduct(ctx, userID, s.costs.For(kind)); err != nil {
		if errors.Is(err, ErrInsufficient) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SetUnlimited flips the unlimited entitlement flag on an account.
func (s *Service) SetUnlimited(ctx context.Context, userID string, unlimited bool) (Account, error) {
	return s.store.SetUnlimited(ctx, userID, unlimited)
}
