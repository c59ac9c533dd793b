package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pragun-bansal/expense-tracker-sub000/internal/models"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/storage"
)

// Linkage roles as persisted in expense_links.
const (
	rolePaidExpense     = "PAID_EXPENSE"
	rolePaidLending     = "PAID_LENDING"
	roleMemberExpense   = "MEMBER_EXPENSE"
	roleMemberIncome    = "MEMBER_INCOME"
	roleMemberLending   = "MEMBER_LENDING"
	roleMemberBorrowing = "MEMBER_BORROWING"
)

func upsertGroupExpense(ctx context.Context, tx *sql.Tx, exp *models.GroupExpense) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO group_expenses (id, group_id, description, amount, date, split_type, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   description = excluded.description,
		   amount = excluded.amount,
		   date = excluded.date,
		   split_type = excluded.split_type`,
		exp.ID, exp.GroupID, exp.Description, exp.Amount, exp.Date, exp.SplitType, exp.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert group expense: %w", err)
	}

	// Child rows are rewritten wholesale; an edit replaces lenders, splits
	// and linkage together with the entries they point at.
	for _, table := range []string{"group_lenders", "expense_splits", "expense_links"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE expense_id = ?", exp.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, lender := range exp.Lenders {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO group_lenders (expense_id, user_id, amount, account_id) VALUES (?, ?, ?, ?)",
			exp.ID, lender.UserID, lender.Amount, nullable(lender.AccountID),
		)
		if err != nil {
			return fmt.Errorf("failed to insert lender: %w", err)
		}
	}

	for _, split := range exp.Splits {
		var settledAt, accountID any
		if split.Settled {
			settledAt = split.SettledAt
			accountID = nullable(split.SettlementAccountID)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO expense_splits (expense_id, user_id, amount, settled, settled_at, settlement_account_id)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			exp.ID, split.UserID, split.Amount, split.Settled, settledAt, accountID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}

	return insertLinkage(ctx, tx, exp.ID, exp.Linkage)
}

func insertLinkage(ctx context.Context, tx *sql.Tx, expenseID string, l models.TransactionLinkage) error {
	insert := func(role string, ids ...string) error {
		for _, id := range ids {
			if id == "" {
				continue
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO expense_links (expense_id, role, entry_id) VALUES (?, ?, ?)",
				expenseID, role, id,
			)
			if err != nil {
				return fmt.Errorf("failed to insert linkage row: %w", err)
			}
		}
		return nil
	}

	if err := insert(rolePaidExpense, l.PaidByExpenseID); err != nil {
		return err
	}
	if err := insert(rolePaidLending, l.PaidByLendingID); err != nil {
		return err
	}
	if err := insert(roleMemberExpense, l.MemberExpenseIDs...); err != nil {
		return err
	}
	if err := insert(roleMemberIncome, l.MemberIncomeIDs...); err != nil {
		return err
	}
	if err := insert(roleMemberLending, l.MemberLendingIDs...); err != nil {
		return err
	}
	return insert(roleMemberBorrowing, l.MemberBorrowingIDs...)
}

// GetGroupExpense retrieves an expense with its lenders, splits and linkage.
func (s *SQLiteStore) GetGroupExpense(ctx context.Context, expenseID string) (*models.GroupExpense, error) {
	exp := &models.GroupExpense{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, group_id, description, amount, date, split_type, created_by FROM group_expenses WHERE id = ?",
		expenseID,
	).Scan(&exp.ID, &exp.GroupID, &exp.Description, &exp.Amount, &exp.Date, &exp.SplitType, &exp.CreatedBy)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group expense: %w", err)
	}

	if exp.Lenders, err = s.lendersForExpense(ctx, expenseID); err != nil {
		return nil, err
	}
	if exp.Splits, err = s.splitsForExpense(ctx, expenseID); err != nil {
		return nil, err
	}
	if exp.Linkage, err = s.linkageForExpense(ctx, expenseID); err != nil {
		return nil, err
	}
	return exp, nil
}

func (s *SQLiteStore) lendersForExpense(ctx context.Context, expenseID string) ([]models.GroupLender, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, amount, account_id FROM group_lenders WHERE expense_id = ? ORDER BY user_id",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get lenders: %w", err)
	}
	defer rows.Close()

	var lenders []models.GroupLender
	for rows.Next() {
		var lender models.GroupLender
		var accountID sql.NullString
		if err := rows.Scan(&lender.UserID, &lender.Amount, &accountID); err != nil {
			return nil, fmt.Errorf("failed to scan lender: %w", err)
		}
		lender.AccountID = accountID.String
		lenders = append(lenders, lender)
	}
	return lenders, rows.Err()
}

func (s *SQLiteStore) splitsForExpense(ctx context.Context, expenseID string) ([]models.ExpenseSplit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, amount, settled, settled_at, settlement_account_id
		 FROM expense_splits WHERE expense_id = ? ORDER BY user_id`,
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get splits: %w", err)
	}
	defer rows.Close()

	var splits []models.ExpenseSplit
	for rows.Next() {
		split, err := scanSplit(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splits = append(splits, split)
	}
	return splits, rows.Err()
}

func scanSplit(scan func(dest ...any) error) (models.ExpenseSplit, error) {
	var split models.ExpenseSplit
	var settledAt sql.NullInt64
	var accountID sql.NullString
	if err := scan(&split.UserID, &split.Amount, &split.Settled, &settledAt, &accountID); err != nil {
		return split, err
	}
	split.SettledAt = settledAt.Int64
	split.SettlementAccountID = accountID.String
	return split, nil
}

func (s *SQLiteStore) linkageForExpense(ctx context.Context, expenseID string) (models.TransactionLinkage, error) {
	var l models.TransactionLinkage
	rows, err := s.db.QueryContext(ctx,
		"SELECT role, entry_id FROM expense_links WHERE expense_id = ? ORDER BY entry_id",
		expenseID,
	)
	if err != nil {
		return l, fmt.Errorf("failed to get linkage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var role, entryID string
		if err := rows.Scan(&role, &entryID); err != nil {
			return l, fmt.Errorf("failed to scan linkage row: %w", err)
		}
		switch role {
		case rolePaidExpense:
			l.PaidByExpenseID = entryID
		case rolePaidLending:
			l.PaidByLendingID = entryID
		case roleMemberExpense:
			l.MemberExpenseIDs = append(l.MemberExpenseIDs, entryID)
		case roleMemberIncome:
			l.MemberIncomeIDs = append(l.MemberIncomeIDs, entryID)
		case roleMemberLending:
			l.MemberLendingIDs = append(l.MemberLendingIDs, entryID)
		case roleMemberBorrowing:
			l.MemberBorrowingIDs = append(l.MemberBorrowingIDs, entryID)
		}
	}
	return l, rows.Err()
}

// ListGroupExpenses returns all expenses of a group, newest first.
func (s *SQLiteStore) ListGroupExpenses(ctx context.Context, groupID string) ([]*models.GroupExpense, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM group_expenses WHERE group_id = ? ORDER BY date DESC, id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list group expenses: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan expense id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expense ids: %w", err)
	}

	expenses := make([]*models.GroupExpense, 0, len(ids))
	for _, id := range ids {
		exp, err := s.GetGroupExpense(ctx, id)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, exp)
	}
	return expenses, nil
}

// FindSplits returns the borrower's splits with the given settled flag
// within the group, restricted to expenses where the lender is among the
// lenders, ordered by expense date ascending.
func (s *SQLiteStore) FindSplits(ctx context.Context, groupID, borrowerUserID, lenderUserID string, settled bool) ([]storage.SplitRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sp.expense_id, sp.user_id, sp.amount, e.date, sp.settled
		 FROM expense_splits sp
		 JOIN group_expenses e ON e.id = sp.expense_id
		 WHERE e.group_id = ? AND sp.user_id = ? AND sp.settled = ?
		   AND EXISTS (
		     SELECT 1 FROM group_lenders gl
		     WHERE gl.expense_id = sp.expense_id AND gl.user_id = ?
		   )
		 ORDER BY e.date, sp.expense_id`,
		groupID, borrowerUserID, settled, lenderUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find splits: %w", err)
	}
	defer rows.Close()

	var refs []storage.SplitRef
	for rows.Next() {
		var ref storage.SplitRef
		if err := rows.Scan(&ref.ExpenseID, &ref.UserID, &ref.Amount, &ref.Date, &ref.Settled); err != nil {
			return nil, fmt.Errorf("failed to scan split ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
