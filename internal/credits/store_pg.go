package credits

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type pgStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed credits store.
func NewPGStore(db *sql.DB) *pgStore {
	return &pgStore{DB: db}
}

func (s *pgStore) Get(ctx context.Context, userID string) (Account, error) {
	account, err := s.scanOne(ctx, userID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Account{}, err
	}
	return s.insertDefault(ctx, userID)
}

func (s *pgStore) Grant(ctx context.Context, userID string, n int) (Account, error) {
	if n <= 0 {
		return s.Get(ctx, userID)
	}
	if _, err := s.Get(ctx, userID); err != nil {
		return Account{}, err
	}
	const query = `
UPDATE credit_accounts SET balance = balance + $1, updated_at = $2
WHERE user_id = $3
RETURNING user_id, balance, unlimited, updated_at`
	return s.scanRow(s.DB.QueryRowContext(ctx, query, n, time.Now().UTC(), userID))
}

// Deduct decrements conditionally in a single statement so concurrent
// analyses by one user cannot both pass a stale balance check.
func (s *pgStore) Deduct(ctx context.Context, userID string, n int) (Account, error) {
	if n <= 0 {
		return s.Get(ctx, userID)
	}
	if _, err := s.Get(ctx, userID); err != nil {
		return Account{}, err
	}
	const query = `
UPDATE credit_accounts SET balance = balance - $1, updated_at = $2
WHERE user_id = $3 AND balance >= $1
RETURNING user_id, balance, unlimited, updated_at`
	account, err := s.scanRow(s.DB.QueryRowContext(ctx, query, n, time.Now().UTC(), userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrInsufficient
	}
	return account, err
}

func (s *pgStore) SetUnlimited(ctx context.Context, userID string, unlimited bool) (Account, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return Account{}, err
	}
	const query = `
UPDATE credit_accounts SET unlimited = $1, updated_at = $2
WHERE user_id = $3
RETURNING user_id, balance, unlimited, updated_at`
	return s.scanRow(s.DB.QueryRowContext(ctx, query, unlimited, time.Now().UTC(), userID))
}

func (s *pgStore) scanOne(ctx context.Context, userID string) (Account, error) {
	const query = `
SELECT user_id, balance, unlimited, updated_at FROM credit_accounts WHERE user_id = $1`
	return s.scanRow(s.DB.QueryRowContext(ctx, query, userID))
}

func (s *pgStore) insertDefault(ctx context.Context, userID string) (Account, error) {
	account := defaultAccount(userID)
	const query = `
INSERT INTO credit_accounts (user_id, balance, unlimited, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING user_id, balance, unlimited, updated_at`
	return s.scanRow(s.DB.QueryRowContext(ctx, query, account.UserID, account.Balance, account.Unlimited, account.UpdatedAt))
}

func (s *pgStore) scanRow(row *sql.Row) (Account, error) {
	var account Account
	if err := row.Scan(&account.UserID, &account.Balance, &account.Unlimited, &account.UpdatedAt); err != nil {
		return Account{}, err
	}
	return account, nil
}
