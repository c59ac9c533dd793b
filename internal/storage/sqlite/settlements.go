package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pragun-bansal/expense-tracker-sub000/internal/models"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/storage"
)

const settlementColumns = `id, group_id, borrower_user_id, lender_user_id, amount, settled_at,
	borrower_account_id, lender_account_id,
	borrower_expense_id, lender_income_id, borrower_lending_id, lender_borrowing_id`

func upsertSettlement(ctx context.Context, tx *sql.Tx, st *models.Settlement) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO settlements (`+settlementColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.GroupID, st.BorrowerUserID, st.LenderUserID, st.Amount, st.SettledAt,
		nullable(st.BorrowerAccountID), nullable(st.LenderAccountID),
		nullable(st.BorrowerExpenseID), nullable(st.LenderIncomeID),
		nullable(st.BorrowerLendingID), nullable(st.LenderBorrowingID),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert settlement: %w", err)
	}
	return nil
}

func scanSettlement(scan func(dest ...any) error) (*models.Settlement, error) {
	st := &models.Settlement{}
	var optional [6]sql.NullString
	err := scan(&st.ID, &st.GroupID, &st.BorrowerUserID, &st.LenderUserID, &st.Amount, &st.SettledAt,
		&optional[0], &optional[1], &optional[2], &optional[3], &optional[4], &optional[5])
	if err != nil {
		return nil, err
	}
	st.BorrowerAccountID = optional[0].String
	st.LenderAccountID = optional[1].String
	st.BorrowerExpenseID = optional[2].String
	st.LenderIncomeID = optional[3].String
	st.BorrowerLendingID = optional[4].String
	st.LenderBorrowingID = optional[5].String
	return st, nil
}

// GetSettlement retrieves a settlement by id.
func (s *SQLiteStore) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+settlementColumns+" FROM settlements WHERE id = ?", settlementID)
	st, err := scanSettlement(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return st, nil
}

// ListSettlementsByGroup retrieves all settlements for a group, newest
// first.
func (s *SQLiteStore) ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+settlementColumns+" FROM settlements WHERE group_id = ? ORDER BY settled_at DESC, id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements by group: %w", err)
	}
	defer rows.Close()

	var settlements []*models.Settlement
	for rows.Next() {
		st, err := scanSettlement(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return settlements, nil
}
