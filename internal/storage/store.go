// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/pragun-bansal/expense-tracker-sub000/internal/models"
)

// ErrNotFound is returned (wrapped) when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// SplitRef is a query projection of one expense split together with the
// expense it belongs to, used by settlement (un)settling.
type SplitRef struct {
	ExpenseID string
	UserID    string
	Amount    float64
	Date      int64
	Settled   bool
}

// Store defines the interface for ledger storage operations. This
// abstraction allows swapping storage backends without changing the engine.
//
// All balance and entry mutations go through Commit: the store must apply a
// whole Batch atomically or not at all, and must implement balance
// adjustments as record-level atomic increments, not read-modify-write.
type Store interface {
	// GetAccount retrieves an account by id.
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)

	// GetOrCreateOthers returns the user's OTHERS_FIXED sink account,
	// creating it on first use. Idempotent under concurrency: at most one
	// such account per user ever persists.
	GetOrCreateOthers(ctx context.Context, userID string) (*models.Account, error)

	// GetOrCreateGroupLedger returns the user's GROUP_LEDGER account,
	// creating it on first use, with the same idempotency guarantee.
	GetOrCreateGroupLedger(ctx context.Context, userID string) (*models.Account, error)

	// GetOrCreateGroupExpenseCategory returns the id of the single shared
	// "Group Expenses" system category, creating it on first use.
	GetOrCreateGroupExpenseCategory(ctx context.Context) (string, error)

	// CreateGroup persists a new group, assigning ID and CreatedAt.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group with its members.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// GetEntry retrieves a ledger entry by id.
	GetEntry(ctx context.Context, entryID string) (*models.LedgerEntry, error)

	// ListEntriesByAccount returns all entries posting to an account.
	ListEntriesByAccount(ctx context.Context, accountID string) ([]*models.LedgerEntry, error)

	// FindEntriesByGroupExpense returns all entries linked to a group
	// expense by foreign key. Used by legacy heuristic reversal.
	FindEntriesByGroupExpense(ctx context.Context, expenseID string) ([]*models.LedgerEntry, error)

	// FindLegacyEntries pattern-matches unlinked entries by owner, kind,
	// amount (within 0.01), description substring and date window. Used by
	// the oldest-records branch of heuristic reversal; best-effort.
	FindLegacyEntries(ctx context.Context, userID string, kind models.EntryKind, amount float64, descContains string, date, window int64) ([]*models.LedgerEntry, error)

	// GetGroupExpense retrieves an expense with lenders, splits and linkage.
	GetGroupExpense(ctx context.Context, expenseID string) (*models.GroupExpense, error)

	// ListGroupExpenses returns all expenses of a group, newest first.
	ListGroupExpenses(ctx context.Context, groupID string) ([]*models.GroupExpense, error)

	// FindSplits returns the borrower's splits with the given settled flag,
	// within the group, on expenses where the lender is among the lenders.
	// Ordered by expense date ascending.
	FindSplits(ctx context.Context, groupID, borrowerUserID, lenderUserID string, settled bool) ([]SplitRef, error)

	// GetSettlement retrieves a settlement by id.
	GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error)

	// ListSettlementsByGroup returns all settlements of a group, newest
	// first.
	ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error)

	// Commit applies every operation of the batch in one atomic store
	// transaction. A failure of any operation rolls back all of them.
	Commit(ctx context.Context, batch *Batch) error

	// Close releases any resources held by the store.
	Close() error
}
