// Package ledger implements the group ledger engine: fanning a shared
// expense out into each participant's private accounts, reversing it
// exactly on edit or delete, and recording settlements of pairwise debts.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pragun-bansal/expense-tracker-sub000/internal/metrics"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/models"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/storage"
)

// Epsilon is the reconciliation tolerance, one cent.
const Epsilon = 0.01

// legacyDateWindow bounds the date match of the oldest-records heuristic.
const legacyDateWindow = 60 // seconds

// epsilonDec mirrors Epsilon for decimal comparisons.
var epsilonDec = decimal.RequireFromString("0.01")

// Synchronizer fans a group expense out into ledger entries and reverses
// them. Reversal is polymorphic over two strategies: linked (authoritative,
// walks the stored linkage) and heuristic (best-effort, only for legacy
// records without linkage, and only when enabled).
type Synchronizer struct {
	store     storage.Store
	linked    linkedReversal
	heuristic heuristicReversal

	// legacyFallback allows heuristic reversal of records with an empty
	// linkage. Off by default: new code never produces unlinked records,
	// so an empty linkage on the default path is an inconsistency.
	legacyFallback bool
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLegacyFallback enables heuristic reversal for records created before
// linkage existed. Keep it off unless legacy data is still being migrated.
func WithLegacyFallback(enabled bool) Option {
	return func(s *Synchronizer) {
		s.legacyFallback = enabled
	}
}

// NewSynchronizer creates a Synchronizer on top of the given store.
func NewSynchronizer(store storage.Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:     store,
		linked:    linkedReversal{store: store},
		heuristic: heuristicReversal{store: store},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// stake is one participant's position in a single group expense.
type stake struct {
	paid      float64 // contributed as lender
	owed      float64 // owes via split
	accountID string  // lender's chosen personal account, may be empty
}

// net is the participant's classification: >0 net lender, <0 net borrower.
func (st stake) net() float64 {
	return st.paid - st.owed
}

// stakes folds lenders and splits into per-user positions and returns the
// user ids in deterministic order.
func stakes(exp *models.GroupExpense) (map[string]*stake, []string) {
	byUser := make(map[string]*stake)
	get := func(userID string) *stake {
		if st, ok := byUser[userID]; ok {
			return st
		}
		st := &stake{}
		byUser[userID] = st
		return st
	}

	for _, lender := range exp.Lenders {
		st := get(lender.UserID)
		st.paid += lender.Amount
		if lender.AccountID != "" {
			st.accountID = lender.AccountID
		}
	}
	for _, split := range exp.Splits {
		get(split.UserID).owed += split.Amount
	}

	users := make([]string, 0, len(byUser))
	for userID := range byUser {
		users = append(users, userID)
	}
	sort.Strings(users)
	return byUser, users
}

// largestPayer returns the user who paid the single largest lender amount;
// ties go to the lexicographically smaller user id so linkage layout is
// deterministic. Empty when nobody lent.
func largestPayer(byUser map[string]*stake, users []string) string {
	var payer string
	var max float64
	for _, userID := range users {
		if paid := byUser[userID].paid; paid > max+Epsilon/2 {
			payer = userID
			max = paid
		}
	}
	return payer
}

// Validate rejects an expense whose lender or split sums do not reconcile
// with its amount within one cent, before any store write.
func Validate(exp *models.GroupExpense) error {
	if exp.Amount <= 0 {
		return validationf("amount must be positive, got %.2f", exp.Amount)
	}

	amount := decimal.NewFromFloat(exp.Amount)
	lent := decimal.Zero
	for _, lender := range exp.Lenders {
		if lender.Amount <= 0 {
			return validationf("lender %s amount must be positive", lender.UserID)
		}
		lent = lent.Add(decimal.NewFromFloat(lender.Amount))
	}
	if lent.Sub(amount).Abs().Cmp(epsilonDec) > 0 {
		return validationf("lender amounts sum to %s, expense amount is %s", lent, amount)
	}

	owed := decimal.Zero
	for _, split := range exp.Splits {
		if split.Amount <= 0 {
			return validationf("split for %s must be positive", split.UserID)
		}
		owed = owed.Add(decimal.NewFromFloat(split.Amount))
	}
	if owed.Sub(amount).Abs().Cmp(epsilonDec) > 0 {
		return validationf("split amounts sum to %s, expense amount is %s", owed, amount)
	}
	return nil
}

// Apply classifies every participant of a new group expense as net lender,
// net borrower or net even, queues the resulting entries and balance
// adjustments on the batch, and returns the linkage to persist with the
// expense. Nothing is written until the caller commits the batch.
func (s *Synchronizer) Apply(ctx context.Context, b *storage.Batch, exp *models.GroupExpense, categoryID string) (models.TransactionLinkage, error) {
	var linkage models.TransactionLinkage

	if err := Validate(exp); err != nil {
		return linkage, err
	}

	byUser, users := stakes(exp)
	payer := largestPayer(byUser, users)

	newEntry := func(userID, accountID string, kind models.EntryKind, amount float64) *models.LedgerEntry {
		return &models.LedgerEntry{
			ID:             uuid.New().String(),
			Kind:           kind,
			Amount:         amount,
			Description:    exp.Description,
			Date:           exp.Date,
			UserID:         userID,
			AccountID:      accountID,
			CategoryID:     categoryID,
			GroupExpenseID: exp.ID,
			GroupType:      models.GroupTypeExpense,
		}
	}

	for _, userID := range users {
		st := byUser[userID]

		var expenseID, lendingID, borrowingID string

		if st.paid > 0 {
			accountID := st.accountID
			if accountID == "" {
				others, err := s.store.GetOrCreateOthers(ctx, userID)
				if err != nil {
					return linkage, err
				}
				accountID = others.ID
			}
			entry := newEntry(userID, accountID, models.EntryExpense, st.paid)
			b.Add(storage.CreateEntry{Entry: entry})
			b.Add(storage.AdjustBalance{AccountID: accountID, Delta: -st.paid})
			expenseID = entry.ID
		}

		if net := st.net(); net > Epsilon || net < -Epsilon {
			groupLedger, err := s.store.GetOrCreateGroupLedger(ctx, userID)
			if err != nil {
				return linkage, err
			}
			if net > 0 {
				entry := newEntry(userID, groupLedger.ID, models.EntryLending, net)
				b.Add(storage.CreateEntry{Entry: entry})
				b.Add(storage.AdjustBalance{AccountID: groupLedger.ID, Delta: net})
				lendingID = entry.ID
			} else {
				entry := newEntry(userID, groupLedger.ID, models.EntryBorrowing, -net)
				b.Add(storage.CreateEntry{Entry: entry})
				b.Add(storage.AdjustBalance{AccountID: groupLedger.ID, Delta: net})
				borrowingID = entry.ID
			}
		}
		// net within Epsilon of zero: contribution and obligation cancel
		// exactly, no GroupLedger entry.

		if userID == payer {
			linkage.PaidByExpenseID = expenseID
			linkage.PaidByLendingID = lendingID
			if borrowingID != "" {
				linkage.MemberBorrowingIDs = append(linkage.MemberBorrowingIDs, borrowingID)
			}
			continue
		}
		if expenseID != "" {
			linkage.MemberExpenseIDs = append(linkage.MemberExpenseIDs, expenseID)
		}
		if lendingID != "" {
			linkage.MemberLendingIDs = append(linkage.MemberLendingIDs, lendingID)
		}
		if borrowingID != "" {
			linkage.MemberBorrowingIDs = append(linkage.MemberBorrowingIDs, borrowingID)
		}
	}

	return linkage, nil
}

// ReverseExpense undoes every ledger entry the expense produced, choosing
// the linked strategy when a linkage exists and the heuristic one for
// legacy records (only when the fallback is enabled).
func (s *Synchronizer) ReverseExpense(ctx context.Context, b *storage.Batch, exp *models.GroupExpense) error {
	if !exp.Linkage.Empty() {
		return s.linked.Reverse(ctx, b, exp)
	}
	if !s.legacyFallback {
		return &InconsistencyError{
			Op:     "reverse",
			Record: exp.ID,
			Err:    errors.New("expense has no transaction linkage"),
		}
	}

	metrics.LegacyFallbacks.Inc()
	slog.Warn("reversing legacy group expense without linkage",
		"expense_id", exp.ID,
		"group_id", exp.GroupID,
	)
	return s.heuristic.Reverse(ctx, b, exp)
}

// Edit reverses the old state and applies the new one in the same batch, so
// the store commits both halves as one atomic unit. A failure between them
// surfaces as an error from Commit with nothing applied.
func (s *Synchronizer) Edit(ctx context.Context, b *storage.Batch, old, updated *models.GroupExpense, categoryID string) (models.TransactionLinkage, error) {
	if err := s.ReverseExpense(ctx, b, old); err != nil {
		return models.TransactionLinkage{}, err
	}
	return s.Apply(ctx, b, updated, categoryID)
}

// reverseEntries queues the inverse balance delta and deletion of each
// entry. Ids that no longer resolve are skipped, making reversal
// idempotent.
func reverseEntries(ctx context.Context, store storage.Store, b *storage.Batch, ids []string) error {
	for _, id := range ids {
		entry, err := store.GetEntry(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue // already reversed
		}
		if err != nil {
			return fmt.Errorf("failed to load entry for reversal: %w", err)
		}
		b.Add(storage.AdjustBalance{AccountID: entry.AccountID, Delta: -entry.BalanceDelta()})
		b.Add(storage.DeleteEntry{EntryID: entry.ID})
		metrics.ReversedEntries.Inc()
	}
	return nil
}

// linkedReversal is the authoritative strategy: it walks the stored entry
// ids of the linkage.
type linkedReversal struct {
	store storage.Store
}

func (r linkedReversal) Reverse(ctx context.Context, b *storage.Batch, exp *models.GroupExpense) error {
	return reverseEntries(ctx, r.store, b, exp.Linkage.EntryIDs())
}

// heuristicReversal is the best-effort strategy for records created before
// linkage existed. It first searches entries by the expense foreign key;
// for the very oldest records, which lack even that, it pattern-matches per
// participant by owner, kind, amount, description substring and a ±60s date
// window. It may over- or under-match.
type heuristicReversal struct {
	store storage.Store
}

func (r heuristicReversal) Reverse(ctx context.Context, b *storage.Batch, exp *models.GroupExpense) error {
	entries, err := r.store.FindEntriesByGroupExpense(ctx, exp.ID)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		ids := make([]string, len(entries))
		for i, entry := range entries {
			ids[i] = entry.ID
		}
		return reverseEntries(ctx, r.store, b, ids)
	}

	// Oldest records: no foreign key either. Recompute what the expense
	// should have produced and search for each expected entry.
	byUser, users := stakes(exp)
	used := make(map[string]bool)

	reverseMatch := func(userID string, kind models.EntryKind, amount float64) error {
		candidates, err := r.store.FindLegacyEntries(ctx, userID, kind, amount, exp.Description, exp.Date, legacyDateWindow)
		if err != nil {
			return err
		}
		for _, entry := range candidates {
			if used[entry.ID] {
				continue
			}
			used[entry.ID] = true
			return reverseEntries(ctx, r.store, b, []string{entry.ID})
		}
		slog.Warn("legacy reversal found no matching entry",
			"expense_id", exp.ID,
			"user_id", userID,
			"kind", kind,
			"amount", amount,
		)
		return nil
	}

	for _, userID := range users {
		st := byUser[userID]
		if st.paid > 0 {
			if err := reverseMatch(userID, models.EntryExpense, st.paid); err != nil {
				return err
			}
		}
		switch net := st.net(); {
		case net > Epsilon:
			if err := reverseMatch(userID, models.EntryLending, net); err != nil {
				return err
			}
		case net < -Epsilon:
			if err := reverseMatch(userID, models.EntryBorrowing, -net); err != nil {
				return err
			}
		}
	}
	return nil
}
