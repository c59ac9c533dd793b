package storage

import "github.com/pragun-bansal/expense-tracker-sub000/internal/models"

// Op is one operation inside a Batch. The set of implementations is closed;
// stores type-switch over them at commit time.
type Op interface {
	op()
}

// CreateEntry inserts a new ledger entry.
type CreateEntry struct {
	Entry *models.LedgerEntry
}

// DeleteEntry removes a ledger entry by id.
type DeleteEntry struct {
	EntryID string
}

// AdjustBalance increments an account balance by Delta. Stores must compile
// this to an atomic increment (e.g. SET balance = balance + ?), never a
// read-then-write, so concurrent operations on the same account cannot lose
// updates.
type AdjustBalance struct {
	AccountID string
	Delta     float64
}

// SetEntryAccount re-points an existing entry at another account. The only
// in-place entry mutation the engine performs; amount and sign are
// unchanged.
type SetEntryAccount struct {
	EntryID   string
	AccountID string
}

// PutGroupExpense upserts an expense together with its lenders, splits and
// linkage.
type PutGroupExpense struct {
	Expense *models.GroupExpense
}

// DeleteGroupExpense removes an expense and its child rows.
type DeleteGroupExpense struct {
	ExpenseID string
}

// PutSettlement upserts a settlement record.
type PutSettlement struct {
	Settlement *models.Settlement
}

// DeleteSettlement removes a settlement record.
type DeleteSettlement struct {
	SettlementID string
}

// SetSplitSettled flips the settled state of one expense split.
type SetSplitSettled struct {
	ExpenseID string
	UserID    string
	Settled   bool
	SettledAt int64
	AccountID string
}

func (CreateEntry) op()        {}
func (DeleteEntry) op()        {}
func (AdjustBalance) op()      {}
func (SetEntryAccount) op()    {}
func (PutGroupExpense) op()    {}
func (DeleteGroupExpense) op() {}
func (PutSettlement) op()      {}
func (DeleteSettlement) op()   {}
func (SetSplitSettled) op()    {}

// Batch collects the mutations of one logical ledger operation so the store
// can apply them as a single atomic unit. No engine code path touches
// balances or entries outside a batch, which is what keeps a half-applied
// mutation impossible.
type Batch struct {
	Ops []Op
}

// Add appends operations in order.
func (b *Batch) Add(ops ...Op) {
	b.Ops = append(b.Ops, ops...)
}

// Empty reports whether the batch carries no operations.
func (b *Batch) Empty() bool {
	return len(b.Ops) == 0
}
