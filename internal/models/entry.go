package models

// EntryKind is the kind of a ledger entry.
type EntryKind string

const (
	EntryExpense   EntryKind = "EXPENSE"
	EntryIncome    EntryKind = "INCOME"
	EntryLending   EntryKind = "LENDING"
	EntryBorrowing EntryKind = "BORROWING"
)

// Sign returns the balance sign of the kind: Expense and Borrowing decrease
// an account, Income and Lending increase it.
func (k EntryKind) Sign() float64 {
	switch k {
	case EntryExpense, EntryBorrowing:
		return -1
	default:
		return 1
	}
}

// GroupType values classify what produced a group-related ledger entry.
const (
	GroupTypeExpense    = "GROUP_EXPENSE"
	GroupTypeSettlement = "SETTLEMENT"
)

// LedgerEntry is one atomic financial fact bound to exactly one account.
//
// Entries are created only as a side effect of a GroupExpense or Settlement
// mutation and are never edited in place; edits of the parent delete and
// recreate them. The single exception is re-pointing a settlement entry's
// AccountID, where the amount and sign are unchanged.
type LedgerEntry struct {
	// ID is the unique identifier for the entry (UUID format).
	ID string

	// Kind is the entry kind; it determines the balance sign.
	Kind EntryKind

	// Amount is always positive; the sign comes from Kind.
	Amount float64

	// Description is the human-readable description, usually inherited from
	// the group expense or settlement that produced the entry.
	Description string

	// Date is the Unix timestamp of the underlying financial event.
	Date int64

	// UserID is the owning user.
	UserID string

	// AccountID is the account this entry posts to.
	AccountID string

	// CategoryID is the expense category.
	CategoryID string

	// GroupExpenseID links back to the group expense that produced this
	// entry, empty for settlement entries.
	GroupExpenseID string

	// SettlementID links back to the settlement that produced this entry,
	// empty for group-expense entries.
	SettlementID string

	// GroupType records what produced the entry (GroupTypeExpense or
	// GroupTypeSettlement), empty for personal entries.
	GroupType string
}

// BalanceDelta is the signed effect of this entry on its account balance.
func (e *LedgerEntry) BalanceDelta() float64 {
	return e.Kind.Sign() * e.Amount
}
