package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pragun-bansal/expense-tracker-sub000/internal/models"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/storage"
)

// GetAccount retrieves an account by id.
func (s *SQLiteStore) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	account := &models.Account{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, name, type, balance, color, created_at FROM accounts WHERE id = ?",
		accountID,
	).Scan(&account.ID, &account.UserID, &account.Name, &account.Type,
		&account.Balance, &account.Color, &account.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %s: %w", accountID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// GetOrCreateOthers returns the user's default "Others" sink account,
// provisioning it on first use.
func (s *SQLiteStore) GetOrCreateOthers(ctx context.Context, userID string) (*models.Account, error) {
	return s.getOrCreateSystemAccount(ctx, userID, models.AccountOthersFixed, "Others")
}

// GetOrCreateGroupLedger returns the user's GroupLedger account,
// provisioning it on first use.
func (s *SQLiteStore) GetOrCreateGroupLedger(ctx context.Context, userID string) (*models.Account, error) {
	return s.getOrCreateSystemAccount(ctx, userID, models.AccountGroupLedger, "GroupLedger")
}

// getOrCreateSystemAccount is an idempotent upsert keyed by the (user_id,
// type) unique index: concurrent calls race on the INSERT, the loser's row
// is dropped by ON CONFLICT DO NOTHING, and both read back the single
// persisted account.
func (s *SQLiteStore) getOrCreateSystemAccount(ctx context.Context, userID string, typ models.AccountType, name string) (*models.Account, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, user_id, name, type, balance, color, created_at)
		 VALUES (?, ?, ?, ?, 0, '', ?)
		 ON CONFLICT DO NOTHING`,
		uuid.New().String(), userID, name, typ, time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to provision %s account: %w", typ, err)
	}

	account := &models.Account{}
	err = s.db.QueryRowContext(ctx,
		"SELECT id, user_id, name, type, balance, color, created_at FROM accounts WHERE user_id = ? AND type = ?",
		userID, typ,
	).Scan(&account.ID, &account.UserID, &account.Name, &account.Type,
		&account.Balance, &account.Color, &account.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read back %s account: %w", typ, err)
	}
	return account, nil
}
