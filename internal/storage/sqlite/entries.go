package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pragun-bansal/expense-tracker-sub000/internal/models"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/storage"
)

const entryColumns = "id, kind, amount, description, date, user_id, account_id, category_id, group_expense_id, settlement_id, group_type"

func insertEntry(ctx context.Context, tx *sql.Tx, entry *models.LedgerEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (`+entryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Kind, entry.Amount, entry.Description, entry.Date,
		entry.UserID, entry.AccountID, entry.CategoryID,
		nullable(entry.GroupExpenseID), nullable(entry.SettlementID), nullable(entry.GroupType),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// nullable maps "" to NULL for optional TEXT columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanEntry(scan func(dest ...any) error) (*models.LedgerEntry, error) {
	entry := &models.LedgerEntry{}
	var groupExpenseID, settlementID, groupType sql.NullString
	err := scan(&entry.ID, &entry.Kind, &entry.Amount, &entry.Description, &entry.Date,
		&entry.UserID, &entry.AccountID, &entry.CategoryID,
		&groupExpenseID, &settlementID, &groupType)
	if err != nil {
		return nil, err
	}
	entry.GroupExpenseID = groupExpenseID.String
	entry.SettlementID = settlementID.String
	entry.GroupType = groupType.String
	return entry, nil
}

// GetEntry retrieves a ledger entry by id.
func (s *SQLiteStore) GetEntry(ctx context.Context, entryID string) (*models.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM ledger_entries WHERE id = ?", entryID)
	entry, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entry %s: %w", entryID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

func (s *SQLiteStore) queryEntries(ctx context.Context, query string, args ...any) ([]*models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	return entries, nil
}

// ListEntriesByAccount returns all entries posting to the account, oldest
// first.
func (s *SQLiteStore) ListEntriesByAccount(ctx context.Context, accountID string) ([]*models.LedgerEntry, error) {
	return s.queryEntries(ctx,
		"SELECT "+entryColumns+" FROM ledger_entries WHERE account_id = ? ORDER BY date, id",
		accountID)
}

// FindEntriesByGroupExpense returns all entries carrying the expense foreign
// key. Heuristic reversal for legacy records without linkage relies on it.
func (s *SQLiteStore) FindEntriesByGroupExpense(ctx context.Context, expenseID string) ([]*models.LedgerEntry, error) {
	return s.queryEntries(ctx,
		"SELECT "+entryColumns+" FROM ledger_entries WHERE group_expense_id = ? ORDER BY date, id",
		expenseID)
}

// FindLegacyEntries pattern-matches entries with no expense linkage at all:
// same owner and kind, amount within a cent, description substring, date
// within the window. Best-effort by construction.
func (s *SQLiteStore) FindLegacyEntries(ctx context.Context, userID string, kind models.EntryKind, amount float64, descContains string, date, window int64) ([]*models.LedgerEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries
		 WHERE user_id = ? AND kind = ? AND ABS(amount - ?) < 0.01
		   AND description LIKE '%' || ? || '%'
		   AND date BETWEEN ? AND ?
		   AND group_expense_id IS NULL
		 ORDER BY date, id`,
		userID, kind, amount, descContains, date-window, date+window)
}
