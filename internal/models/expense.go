package models

// SplitType says how a group expense is divided among its members.
type SplitType string

const (
	SplitEqual  SplitType = "EQUAL"
	SplitCustom SplitType = "CUSTOM"
)

// GroupLender is one user who actually paid part of a group expense, and
// from which personal account. AccountID may be empty, in which case the
// user's Others account is used.
type GroupLender struct {
	UserID    string
	Amount    float64
	AccountID string
}

// ExpenseSplit is one user's share of a group expense and its settlement
// state.
type ExpenseSplit struct {
	UserID string
	Amount float64

	// Settled is true once a settlement has paid this share off.
	Settled bool

	// SettledAt is the Unix timestamp of settlement, zero when unsettled.
	SettledAt int64

	// SettlementAccountID is the account the settling payment came from,
	// empty when unsettled.
	SettlementAccountID string
}

// TransactionLinkage is the canonical index of every ledger entry a group
// expense produced. It is the only way to guarantee exact reversal: reversal
// walks these ids, applies the inverse balance delta and deletes the entry.
//
// Records created before linkage existed carry an empty linkage and can only
// be reversed heuristically.
type TransactionLinkage struct {
	// PaidByExpenseID and PaidByLendingID are the entries of the single
	// largest payer.
	PaidByExpenseID string
	PaidByLendingID string

	// Member arrays hold the entries of every other participant.
	MemberExpenseIDs   []string
	MemberIncomeIDs    []string
	MemberLendingIDs   []string
	MemberBorrowingIDs []string
}

// EntryIDs returns every non-empty entry id in the linkage.
func (l TransactionLinkage) EntryIDs() []string {
	ids := make([]string, 0,
		2+len(l.MemberExpenseIDs)+len(l.MemberIncomeIDs)+len(l.MemberLendingIDs)+len(l.MemberBorrowingIDs))
	if l.PaidByExpenseID != "" {
		ids = append(ids, l.PaidByExpenseID)
	}
	if l.PaidByLendingID != "" {
		ids = append(ids, l.PaidByLendingID)
	}
	ids = append(ids, l.MemberExpenseIDs...)
	ids = append(ids, l.MemberIncomeIDs...)
	ids = append(ids, l.MemberLendingIDs...)
	ids = append(ids, l.MemberBorrowingIDs...)
	return ids
}

// Empty reports whether the linkage references no entries at all, which
// marks a legacy record.
func (l TransactionLinkage) Empty() bool {
	return len(l.EntryIDs()) == 0
}

// GroupExpense is a shared expense fanned out into each participant's
// private ledger.
//
// Lifecycle: the expense and its linked entries are created together; edits
// destroy and recreate the linked set; deletes destroy the linked set and
// the record itself.
type GroupExpense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group this expense belongs to.
	GroupID string

	// Description is the human-readable description.
	Description string

	// Amount is the total amount of the expense.
	Amount float64

	// Date is the Unix timestamp the expense was incurred.
	Date int64

	// SplitType says how Splits were derived.
	SplitType SplitType

	// CreatedBy is the user who recorded the expense.
	CreatedBy string

	// Lenders is who actually paid; amounts sum to Amount.
	Lenders []GroupLender

	// Splits is who owes what; amounts sum to Amount.
	Splits []ExpenseSplit

	// Linkage indexes every ledger entry this expense produced.
	Linkage TransactionLinkage
}
