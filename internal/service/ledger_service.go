// Package service exposes the group ledger engine to the surrounding API
// layer: group expense lifecycle, settlements and balance queries, with
// authorization checks in front of every mutation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pragun-bansal/expense-tracker-sub000/internal/calculator"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/events"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/ledger"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/metrics"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/models"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/storage"
)

// ErrForbidden is returned when the caller is neither group admin nor a
// party to the record being touched.
var ErrForbidden = errors.New("forbidden")

// LedgerService orchestrates the synchronizer, settlement recorder and
// netting engine behind the external interface.
type LedgerService struct {
	store     storage.Store
	sync      *ledger.Synchronizer
	recorder  *ledger.Recorder
	alerter   BudgetAlerter
	names     NameResolver
	publisher events.Publisher
}

// Option configures a LedgerService.
type Option func(*LedgerService)

// WithPublisher sets the event publisher for settlement notifications.
func WithPublisher(p events.Publisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

// WithBudgetAlerter sets the budget-alert hook.
func WithBudgetAlerter(a BudgetAlerter) Option {
	return func(s *LedgerService) { s.alerter = a }
}

// WithNameResolver sets the display-name resolver for event payloads.
func WithNameResolver(n NameResolver) Option {
	return func(s *LedgerService) { s.names = n }
}

// WithLegacyFallback enables heuristic reversal of pre-linkage records.
func WithLegacyFallback(enabled bool) Option {
	return func(s *LedgerService) {
		s.sync = ledger.NewSynchronizer(s.store, ledger.WithLegacyFallback(enabled))
	}
}

// NewLedgerService creates the service with the given storage backend.
func NewLedgerService(store storage.Store, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:     store,
		sync:      ledger.NewSynchronizer(store),
		recorder:  ledger.NewRecorder(store),
		alerter:   NoopBudgetAlerter{},
		names:     NoopNameResolver{},
		publisher: events.Noop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExpenseInput carries the caller-supplied fields of a group expense.
type ExpenseInput struct {
	Description string
	Amount      float64
	Date        int64
	SplitType   models.SplitType
	Lenders     []models.GroupLender
	Splits      []models.ExpenseSplit
}

// CreateGroup persists a new group administered by the caller.
func (s *LedgerService) CreateGroup(ctx context.Context, callerID, name string, members []string) (*models.Group, error) {
	group := &models.Group{
		Name:        name,
		AdminUserID: callerID,
		Members:     members,
	}
	if !group.HasMember(callerID) {
		group.Members = append(group.Members, callerID)
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, err
	}
	slog.Info("Group created", "group_id", group.ID, "admin", callerID)
	return group, nil
}

// CreateGroupExpense validates and applies a new shared expense, returning
// it with the persisted transaction linkage.
func (s *LedgerService) CreateGroupExpense(ctx context.Context, callerID, groupID string, in ExpenseInput) (*models.GroupExpense, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(callerID) && group.AdminUserID != callerID {
		return nil, ErrForbidden
	}

	exp := &models.GroupExpense{
		ID:          uuid.New().String(),
		GroupID:     groupID,
		Description: in.Description,
		Amount:      in.Amount,
		Date:        in.Date,
		SplitType:   in.SplitType,
		CreatedBy:   callerID,
		Lenders:     in.Lenders,
		Splits:      in.Splits,
	}
	if exp.Date == 0 {
		exp.Date = time.Now().Unix()
	}
	if exp.SplitType == "" {
		exp.SplitType = models.SplitEqual
	}

	categoryID, err := s.store.GetOrCreateGroupExpenseCategory(ctx)
	if err != nil {
		return nil, err
	}

	batch := &storage.Batch{}
	linkage, err := s.sync.Apply(ctx, batch, exp, categoryID)
	if err != nil {
		slog.Error("CreateGroupExpense apply failed", "group_id", groupID, "error", err)
		return nil, err
	}
	exp.Linkage = linkage
	batch.Add(storage.PutGroupExpense{Expense: exp})

	if err := s.store.Commit(ctx, batch); err != nil {
		slog.Error("CreateGroupExpense commit failed", "expense_id", exp.ID, "error", err)
		return nil, err
	}
	metrics.GroupExpenseSyncs.WithLabelValues("apply").Inc()
	slog.Info("Group expense created",
		"expense_id", exp.ID,
		"group_id", groupID,
		"amount", exp.Amount,
		"participants", len(exp.Splits),
	)

	s.alertLenders(ctx, exp.Lenders, categoryID)
	return exp, nil
}

// UpdateGroupExpense reverses the old state and reapplies the new one as a
// single atomic unit.
func (s *LedgerService) UpdateGroupExpense(ctx context.Context, callerID, expenseID string, in ExpenseInput) (*models.GroupExpense, error) {
	old, err := s.store.GetGroupExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeExpense(ctx, callerID, old); err != nil {
		return nil, err
	}

	updated := &models.GroupExpense{
		ID:          old.ID,
		GroupID:     old.GroupID,
		Description: in.Description,
		Amount:      in.Amount,
		Date:        in.Date,
		SplitType:   in.SplitType,
		CreatedBy:   old.CreatedBy,
		Lenders:     in.Lenders,
		Splits:      in.Splits,
	}
	if updated.Date == 0 {
		updated.Date = old.Date
	}
	if updated.SplitType == "" {
		updated.SplitType = old.SplitType
	}

	categoryID, err := s.store.GetOrCreateGroupExpenseCategory(ctx)
	if err != nil {
		return nil, err
	}

	batch := &storage.Batch{}
	linkage, err := s.sync.Edit(ctx, batch, old, updated, categoryID)
	if err != nil {
		slog.Error("UpdateGroupExpense failed", "expense_id", expenseID, "error", err)
		return nil, err
	}
	updated.Linkage = linkage
	batch.Add(storage.PutGroupExpense{Expense: updated})

	if err := s.store.Commit(ctx, batch); err != nil {
		slog.Error("UpdateGroupExpense commit failed", "expense_id", expenseID, "error", err)
		return nil, err
	}
	metrics.GroupExpenseSyncs.WithLabelValues("edit").Inc()
	slog.Info("Group expense updated", "expense_id", expenseID, "amount", updated.Amount)

	s.alertLenders(ctx, updated.Lenders, categoryID)
	return updated, nil
}

// DeleteGroupExpense reverses every linked entry and removes the record.
func (s *LedgerService) DeleteGroupExpense(ctx context.Context, callerID, expenseID string) error {
	exp, err := s.store.GetGroupExpense(ctx, expenseID)
	if err != nil {
		return err
	}
	if err := s.authorizeExpense(ctx, callerID, exp); err != nil {
		return err
	}

	batch := &storage.Batch{}
	if err := s.sync.ReverseExpense(ctx, batch, exp); err != nil {
		slog.Error("DeleteGroupExpense reversal failed", "expense_id", expenseID, "error", err)
		return err
	}
	batch.Add(storage.DeleteGroupExpense{ExpenseID: expenseID})

	if err := s.store.Commit(ctx, batch); err != nil {
		slog.Error("DeleteGroupExpense commit failed", "expense_id", expenseID, "error", err)
		return err
	}
	metrics.GroupExpenseSyncs.WithLabelValues("reverse").Inc()
	slog.Info("Group expense deleted", "expense_id", expenseID)
	return nil
}

// GetGroupExpense retrieves an expense for a group member.
func (s *LedgerService) GetGroupExpense(ctx context.Context, callerID, expenseID string) (*models.GroupExpense, error) {
	exp, err := s.store.GetGroupExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	group, err := s.store.GetGroup(ctx, exp.GroupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(callerID) && group.AdminUserID != callerID {
		return nil, ErrForbidden
	}
	return exp, nil
}

// ListGroupExpenses returns all expenses of a group, newest first, for a
// group member.
func (s *LedgerService) ListGroupExpenses(ctx context.Context, callerID, groupID string) ([]*models.GroupExpense, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(callerID) && group.AdminUserID != callerID {
		return nil, ErrForbidden
	}
	return s.store.ListGroupExpenses(ctx, groupID)
}

// ListSettlements returns all settlements of a group, newest first, for a
// group member.
func (s *LedgerService) ListSettlements(ctx context.Context, callerID, groupID string) ([]*models.Settlement, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(callerID) && group.AdminUserID != callerID {
		return nil, ErrForbidden
	}
	return s.store.ListSettlementsByGroup(ctx, groupID)
}

// RecordSettlement records a real payment from borrower to lender and nets
// both parties' GroupLedger balances toward zero.
func (s *LedgerService) RecordSettlement(ctx context.Context, callerID, groupID, borrowerUserID, lenderUserID string, amount float64, borrowerAccountID, lenderAccountID string) (*models.Settlement, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if callerID != borrowerUserID && callerID != lenderUserID && callerID != group.AdminUserID {
		return nil, ErrForbidden
	}

	st := &models.Settlement{
		GroupID:           groupID,
		BorrowerUserID:    borrowerUserID,
		LenderUserID:      lenderUserID,
		Amount:            amount,
		BorrowerAccountID: borrowerAccountID,
		LenderAccountID:   lenderAccountID,
	}

	batch := &storage.Batch{}
	if err := s.recorder.Record(ctx, batch, st); err != nil {
		slog.Error("RecordSettlement failed", "group_id", groupID, "error", err)
		return nil, err
	}
	if err := s.store.Commit(ctx, batch); err != nil {
		slog.Error("RecordSettlement commit failed", "settlement_id", st.ID, "error", err)
		return nil, err
	}
	metrics.Settlements.WithLabelValues("record").Inc()
	slog.Info("Settlement recorded",
		"settlement_id", st.ID,
		"group_id", groupID,
		"borrower", borrowerUserID,
		"lender", lenderUserID,
		"amount", amount,
	)

	if categoryID, err := s.store.GetOrCreateGroupExpenseCategory(ctx); err == nil {
		s.alertUser(ctx, borrowerUserID, categoryID)
	}
	s.publish(events.TopicSettlementCreated, events.SettlementCreated{
		SettlementID: st.ID,
		GroupID:      st.GroupID,
		Borrower:     st.BorrowerUserID,
		BorrowerName: s.displayName(ctx, st.BorrowerUserID),
		Lender:       st.LenderUserID,
		LenderName:   s.displayName(ctx, st.LenderUserID),
		Amount:       st.Amount,
		SettledAt:    st.SettledAt,
	})
	return st, nil
}

// UpdateSettlementAccount re-points which account received or sent the
// settlement money.
func (s *LedgerService) UpdateSettlementAccount(ctx context.Context, callerID, settlementID string, side models.SettlementSide, accountID string) error {
	st, err := s.store.GetSettlement(ctx, settlementID)
	if err != nil {
		return err
	}
	if err := s.authorizeSettlement(ctx, callerID, st); err != nil {
		return err
	}

	batch := &storage.Batch{}
	if err := s.recorder.ReassignAccount(ctx, batch, st, side, accountID); err != nil {
		slog.Error("UpdateSettlementAccount failed", "settlement_id", settlementID, "error", err)
		return err
	}
	if err := s.store.Commit(ctx, batch); err != nil {
		slog.Error("UpdateSettlementAccount commit failed", "settlement_id", settlementID, "error", err)
		return err
	}
	metrics.Settlements.WithLabelValues("reassign").Inc()
	slog.Info("Settlement account updated", "settlement_id", settlementID, "side", side, "account_id", accountID)
	return nil
}

// DeleteSettlement reverses the settlement's entries, removes the record
// and unsettles the splits it plausibly paid off. Returns how many splits
// were unsettled.
func (s *LedgerService) DeleteSettlement(ctx context.Context, callerID, settlementID string) (int, error) {
	st, err := s.store.GetSettlement(ctx, settlementID)
	if err != nil {
		return 0, err
	}
	if err := s.authorizeSettlement(ctx, callerID, st); err != nil {
		return 0, err
	}

	batch := &storage.Batch{}
	count, err := s.recorder.Delete(ctx, batch, st)
	if err != nil {
		slog.Error("DeleteSettlement failed", "settlement_id", settlementID, "error", err)
		return 0, err
	}
	if err := s.store.Commit(ctx, batch); err != nil {
		slog.Error("DeleteSettlement commit failed", "settlement_id", settlementID, "error", err)
		return 0, err
	}
	metrics.Settlements.WithLabelValues("delete").Inc()
	slog.Info("Settlement deleted", "settlement_id", settlementID, "unsettled_splits", count)

	s.publish(events.TopicSettlementDeleted, events.SettlementDeleted{
		SettlementID:    st.ID,
		GroupID:         st.GroupID,
		Borrower:        st.BorrowerUserID,
		Lender:          st.LenderUserID,
		Amount:          st.Amount,
		UnsettledSplits: count,
	})
	return count, nil
}

// GetNetBalances returns each member's net position in the group. Positive
// means owed money, negative means owes money.
func (s *LedgerService) GetNetBalances(ctx context.Context, callerID, groupID string) (map[string]float64, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(callerID) && group.AdminUserID != callerID {
		return nil, ErrForbidden
	}
	return s.netBalances(ctx, groupID)
}

// GetSuggestedSettlements reduces the group's net balances to a minimal
// list of suggested transfers.
func (s *LedgerService) GetSuggestedSettlements(ctx context.Context, callerID, groupID string) ([]calculator.Transfer, error) {
	balances, err := s.GetNetBalances(ctx, callerID, groupID)
	if err != nil {
		return nil, err
	}
	return calculator.SuggestSettlements(balances), nil
}

func (s *LedgerService) netBalances(ctx context.Context, groupID string) (map[string]float64, error) {
	expenses, err := s.store.ListGroupExpenses(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return calculator.NetBalances(expenses), nil
}

// authorizeExpense admits the group admin and anyone who lent or owes on
// the expense.
func (s *LedgerService) authorizeExpense(ctx context.Context, callerID string, exp *models.GroupExpense) error {
	group, err := s.store.GetGroup(ctx, exp.GroupID)
	if err != nil {
		return err
	}
	if callerID == group.AdminUserID || callerID == exp.CreatedBy {
		return nil
	}
	for _, lender := range exp.Lenders {
		if lender.UserID == callerID {
			return nil
		}
	}
	for _, split := range exp.Splits {
		if split.UserID == callerID {
			return nil
		}
	}
	return ErrForbidden
}

// authorizeSettlement admits the group admin and either party.
func (s *LedgerService) authorizeSettlement(ctx context.Context, callerID string, st *models.Settlement) error {
	if callerID == st.BorrowerUserID || callerID == st.LenderUserID {
		return nil
	}
	group, err := s.store.GetGroup(ctx, st.GroupID)
	if err != nil {
		return err
	}
	if callerID == group.AdminUserID {
		return nil
	}
	return ErrForbidden
}

// alertLenders fires the budget hook for every distinct lender.
func (s *LedgerService) alertLenders(ctx context.Context, lenders []models.GroupLender, categoryID string) {
	seen := make(map[string]bool, len(lenders))
	for _, lender := range lenders {
		if seen[lender.UserID] {
			continue
		}
		seen[lender.UserID] = true
		s.alertUser(ctx, lender.UserID, categoryID)
	}
}

func (s *LedgerService) alertUser(ctx context.Context, userID, categoryID string) {
	if err := s.alerter.OnExpensePosted(ctx, userID, categoryID); err != nil {
		slog.Warn("budget alert hook failed", "user_id", userID, "error", err)
	}
}

func (s *LedgerService) publish(topic string, event any) {
	if err := s.publisher.Publish(topic, event); err != nil {
		slog.Warn("event publish failed", "topic", topic, "error", err)
	}
}

func (s *LedgerService) displayName(ctx context.Context, userID string) string {
	name, err := s.names.DisplayName(ctx, userID)
	if err != nil {
		slog.Warn("display name lookup failed", "user_id", userID, "error", err)
		return ""
	}
	return name
}
