// Package sqlite provides a SQLite-backed implementation of the
// storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/pragun-bansal/expense-tracker-sub000/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection keeps
	// concurrent batches queued instead of failing with SQLITE_BUSY, and
	// makes the pragma below apply to every statement.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Commit applies every batch operation inside one database transaction.
// A failing operation rolls the whole batch back, so balances and entries
// can never be half-applied.
func (s *SQLiteStore) Commit(ctx context.Context, batch *storage.Batch) error {
	if batch.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, op := range batch.Ops {
		if err := s.applyOp(ctx, tx, op); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func (s *SQLiteStore) applyOp(ctx context.Context, tx *sql.Tx, op storage.Op) error {
	switch o := op.(type) {
	case storage.CreateEntry:
		return insertEntry(ctx, tx, o.Entry)

	case storage.DeleteEntry:
		_, err := tx.ExecContext(ctx, "DELETE FROM ledger_entries WHERE id = ?", o.EntryID)
		if err != nil {
			return fmt.Errorf("failed to delete entry %s: %w", o.EntryID, err)
		}
		return nil

	case storage.AdjustBalance:
		// Atomic increment at the store level; concurrent batches touching
		// the same account cannot lose updates.
		res, err := tx.ExecContext(ctx,
			"UPDATE accounts SET balance = balance + ? WHERE id = ?",
			o.Delta, o.AccountID,
		)
		if err != nil {
			return fmt.Errorf("failed to adjust balance of account %s: %w", o.AccountID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to adjust balance of account %s: %w", o.AccountID, err)
		}
		if n == 0 {
			return fmt.Errorf("account %s: %w", o.AccountID, storage.ErrNotFound)
		}
		return nil

	case storage.SetEntryAccount:
		res, err := tx.ExecContext(ctx,
			"UPDATE ledger_entries SET account_id = ? WHERE id = ?",
			o.AccountID, o.EntryID,
		)
		if err != nil {
			return fmt.Errorf("failed to re-point entry %s: %w", o.EntryID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to re-point entry %s: %w", o.EntryID, err)
		}
		if n == 0 {
			return fmt.Errorf("entry %s: %w", o.EntryID, storage.ErrNotFound)
		}
		return nil

	case storage.PutGroupExpense:
		return upsertGroupExpense(ctx, tx, o.Expense)

	case storage.DeleteGroupExpense:
		// Child rows (lenders, splits, links) cascade.
		_, err := tx.ExecContext(ctx, "DELETE FROM group_expenses WHERE id = ?", o.ExpenseID)
		if err != nil {
			return fmt.Errorf("failed to delete group expense %s: %w", o.ExpenseID, err)
		}
		return nil

	case storage.PutSettlement:
		return upsertSettlement(ctx, tx, o.Settlement)

	case storage.DeleteSettlement:
		_, err := tx.ExecContext(ctx, "DELETE FROM settlements WHERE id = ?", o.SettlementID)
		if err != nil {
			return fmt.Errorf("failed to delete settlement %s: %w", o.SettlementID, err)
		}
		return nil

	case storage.SetSplitSettled:
		var settledAt, accountID any
		if o.Settled {
			settledAt = o.SettledAt
			if o.AccountID != "" {
				accountID = o.AccountID
			}
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE expense_splits SET settled = ?, settled_at = ?, settlement_account_id = ?
			 WHERE expense_id = ? AND user_id = ?`,
			o.Settled, settledAt, accountID, o.ExpenseID, o.UserID,
		)
		if err != nil {
			return fmt.Errorf("failed to update split (%s, %s): %w", o.ExpenseID, o.UserID, err)
		}
		return nil

	default:
		return fmt.Errorf("unknown batch op %T", op)
	}
}
