package models

// SettlementSide selects which party of a settlement an operation targets.
type SettlementSide string

const (
	SideBorrower SettlementSide = "borrower"
	SideLender   SettlementSide = "lender"
)

// Settlement records a real payment closing (part of) a pairwise group debt.
//
// Recording a settlement produces at most four ledger entries: an Expense
// and a debt-reducing Lending for the borrower, an Income and a
// credit-reducing Borrowing for the lender. Their ids are kept on the
// settlement for exact reversal, same as a group expense linkage.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// GroupID is the group the settled debt belongs to.
	GroupID string

	// BorrowerUserID is the user who paid (debtor settling up).
	BorrowerUserID string

	// LenderUserID is the user who received payment (creditor being paid).
	LenderUserID string

	// Amount is the payment amount.
	Amount float64

	// SettledAt is the Unix timestamp when the settlement was recorded.
	SettledAt int64

	// BorrowerAccountID is the account the payment came from; empty means
	// the borrower's Others account was used.
	BorrowerAccountID string

	// LenderAccountID is the account the payment went into; empty means the
	// lender's Others account was used.
	LenderAccountID string

	// Entry linkage, the basis for exact reversal on delete.
	BorrowerExpenseID string
	LenderIncomeID    string
	BorrowerLendingID string
	LenderBorrowingID string
}

// EntryIDs returns the non-empty linked entry ids.
func (s *Settlement) EntryIDs() []string {
	var ids []string
	for _, id := range []string{s.BorrowerExpenseID, s.LenderIncomeID, s.BorrowerLendingID, s.LenderBorrowingID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
