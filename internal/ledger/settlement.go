package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pragun-bansal/expense-tracker-sub000/internal/models"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/storage"
)

// Recorder turns a real payment between two group members into ledger
// entries that net both parties' GroupLedger balances toward zero, and
// reverses them exactly on delete.
type Recorder struct {
	store storage.Store
}

// NewRecorder creates a Recorder on top of the given store.
func NewRecorder(store storage.Store) *Recorder {
	return &Recorder{store: store}
}

// Record queues the four entries of a settlement: the borrower pays out of
// a personal account (Expense) and sheds debt (Lending in GroupLedger), the
// lender takes the money in (Income) and sheds credit (Borrowing in
// GroupLedger). Entry ids are written back onto the settlement for later
// reversal. Splits the payment plausibly covers are marked settled, oldest
// expense first, while they fit within the amount.
func (r *Recorder) Record(ctx context.Context, b *storage.Batch, st *models.Settlement) error {
	if st.Amount <= 0 {
		return validationf("settlement amount must be positive, got %.2f", st.Amount)
	}
	if st.BorrowerUserID == st.LenderUserID {
		return validationf("borrower and lender must differ")
	}
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	if st.SettledAt == 0 {
		st.SettledAt = time.Now().Unix()
	}

	categoryID, err := r.store.GetOrCreateGroupExpenseCategory(ctx)
	if err != nil {
		return err
	}

	newEntry := func(userID, accountID string, kind models.EntryKind) *models.LedgerEntry {
		return &models.LedgerEntry{
			ID:           uuid.New().String(),
			Kind:         kind,
			Amount:       st.Amount,
			Description:  "Settlement",
			Date:         st.SettledAt,
			UserID:       userID,
			AccountID:    accountID,
			CategoryID:   categoryID,
			SettlementID: st.ID,
			GroupType:    models.GroupTypeSettlement,
		}
	}

	post := func(entry *models.LedgerEntry) {
		b.Add(storage.CreateEntry{Entry: entry})
		b.Add(storage.AdjustBalance{AccountID: entry.AccountID, Delta: entry.BalanceDelta()})
	}

	borrowerAccountID := st.BorrowerAccountID
	if borrowerAccountID == "" {
		others, err := r.store.GetOrCreateOthers(ctx, st.BorrowerUserID)
		if err != nil {
			return err
		}
		borrowerAccountID = others.ID
	}
	lenderAccountID := st.LenderAccountID
	if lenderAccountID == "" {
		others, err := r.store.GetOrCreateOthers(ctx, st.LenderUserID)
		if err != nil {
			return err
		}
		lenderAccountID = others.ID
	}

	borrowerLedger, err := r.store.GetOrCreateGroupLedger(ctx, st.BorrowerUserID)
	if err != nil {
		return err
	}
	lenderLedger, err := r.store.GetOrCreateGroupLedger(ctx, st.LenderUserID)
	if err != nil {
		return err
	}

	expense := newEntry(st.BorrowerUserID, borrowerAccountID, models.EntryExpense)
	lending := newEntry(st.BorrowerUserID, borrowerLedger.ID, models.EntryLending)
	income := newEntry(st.LenderUserID, lenderAccountID, models.EntryIncome)
	borrowing := newEntry(st.LenderUserID, lenderLedger.ID, models.EntryBorrowing)
	post(expense)
	post(lending)
	post(income)
	post(borrowing)

	st.BorrowerExpenseID = expense.ID
	st.BorrowerLendingID = lending.ID
	st.LenderIncomeID = income.ID
	st.LenderBorrowingID = borrowing.ID
	b.Add(storage.PutSettlement{Settlement: st})

	return r.settleSplits(ctx, b, st, borrowerAccountID)
}

// settleSplits marks the borrower's unsettled splits toward this lender as
// settled, oldest expense first, as long as each split fully fits within
// the remaining settlement amount. A payment smaller than every open split
// settles nothing; the GroupLedger entries still carry its full effect.
func (r *Recorder) settleSplits(ctx context.Context, b *storage.Batch, st *models.Settlement, borrowerAccountID string) error {
	refs, err := r.store.FindSplits(ctx, st.GroupID, st.BorrowerUserID, st.LenderUserID, false)
	if err != nil {
		return err
	}

	remaining := st.Amount
	for _, ref := range refs {
		if ref.Amount > remaining+Epsilon {
			continue
		}
		b.Add(storage.SetSplitSettled{
			ExpenseID: ref.ExpenseID,
			UserID:    ref.UserID,
			Settled:   true,
			SettledAt: st.SettledAt,
			AccountID: borrowerAccountID,
		})
		remaining -= ref.Amount
		if remaining < Epsilon {
			break
		}
	}
	return nil
}

// ReassignAccount re-points which personal account received or sent the
// settlement money: the old account gets the inverse delta, the new one the
// original delta, and the entry itself is updated in place. The only entry
// mutation the engine performs, legal because amount and sign are
// unchanged. The GroupLedger entries are never reassigned.
func (r *Recorder) ReassignAccount(ctx context.Context, b *storage.Batch, st *models.Settlement, side models.SettlementSide, newAccountID string) error {
	var entryID string
	switch side {
	case models.SideBorrower:
		entryID = st.BorrowerExpenseID
	case models.SideLender:
		entryID = st.LenderIncomeID
	default:
		return validationf("unknown settlement side %q", side)
	}
	if entryID == "" {
		return &InconsistencyError{
			Op:     "reassign",
			Record: st.ID,
			Err:    errors.New("settlement has no linked entry for side " + string(side)),
		}
	}

	entry, err := r.store.GetEntry(ctx, entryID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &InconsistencyError{Op: "reassign", Record: st.ID, Err: err}
		}
		return err
	}
	if entry.AccountID == newAccountID {
		return nil
	}
	if _, err := r.store.GetAccount(ctx, newAccountID); err != nil {
		return err
	}

	b.Add(storage.AdjustBalance{AccountID: entry.AccountID, Delta: -entry.BalanceDelta()})
	b.Add(storage.AdjustBalance{AccountID: newAccountID, Delta: entry.BalanceDelta()})
	b.Add(storage.SetEntryAccount{EntryID: entry.ID, AccountID: newAccountID})

	switch side {
	case models.SideBorrower:
		st.BorrowerAccountID = newAccountID
	case models.SideLender:
		st.LenderAccountID = newAccountID
	}
	b.Add(storage.PutSettlement{Settlement: st})
	return nil
}

// Delete queues the exact reversal of a settlement: all linked entries are
// reversed (missing ones skipped, same idempotency rule as expense
// reversal), the record is deleted, and splits this settlement is believed
// to have paid off are unsettled. The selection is a coarse heuristic,
// every settled split owned by the borrower, within the group, on expenses
// where the lender is among the lenders, and can unsettle splits a
// different settlement paid when the same pair has several concurrent
// debts. Returns how many splits were unsettled.
func (r *Recorder) Delete(ctx context.Context, b *storage.Batch, st *models.Settlement) (int, error) {
	if err := reverseEntries(ctx, r.store, b, st.EntryIDs()); err != nil {
		return 0, err
	}
	b.Add(storage.DeleteSettlement{SettlementID: st.ID})

	refs, err := r.store.FindSplits(ctx, st.GroupID, st.BorrowerUserID, st.LenderUserID, true)
	if err != nil {
		return 0, err
	}
	for _, ref := range refs {
		b.Add(storage.SetSplitSettled{
			ExpenseID: ref.ExpenseID,
			UserID:    ref.UserID,
			Settled:   false,
		})
	}
	return len(refs), nil
}
