package service_test

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/pragun-bansal/expense-tracker-sub000/internal/events"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/models"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/service"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/storage"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/storage/sqlite"
)

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	topics []string
	events []any
}

func (p *capturingPublisher) Publish(topic string, event any) error {
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

// capturingAlerter records which users the budget hook fired for.
type capturingAlerter struct {
	users []string
}

func (a *capturingAlerter) OnExpensePosted(ctx context.Context, userID, categoryID string) error {
	a.users = append(a.users, userID)
	return nil
}

type staticNames struct{}

func (staticNames) DisplayName(ctx context.Context, userID string) (string, error) {
	return "Name of " + userID, nil
}

type fixture struct {
	store     storage.Store
	svc       *service.LedgerService
	publisher *capturingPublisher
	alerter   *capturingAlerter
	group     *models.Group
}

func newFixture(t *testing.T, members ...string) *fixture {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	publisher := &capturingPublisher{}
	alerter := &capturingAlerter{}
	svc := service.NewLedgerService(store,
		service.WithPublisher(publisher),
		service.WithBudgetAlerter(alerter),
		service.WithNameResolver(staticNames{}),
	)

	group, err := svc.CreateGroup(context.Background(), members[0], "Trip", members)
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return &fixture{store: store, svc: svc, publisher: publisher, alerter: alerter, group: group}
}

func (f *fixture) balance(t *testing.T, accountID string) float64 {
	t.Helper()
	account, err := f.store.GetAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("GetAccount(%s) failed: %v", accountID, err)
	}
	return account.Balance
}

func (f *fixture) groupLedger(t *testing.T, userID string) string {
	t.Helper()
	account, err := f.store.GetOrCreateGroupLedger(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetOrCreateGroupLedger(%s) failed: %v", userID, err)
	}
	return account.ID
}

func dinner(amount float64, lenderAmount float64, splits ...models.ExpenseSplit) service.ExpenseInput {
	return service.ExpenseInput{
		Description: "Dinner",
		Amount:      amount,
		Date:        1700000000,
		SplitType:   models.SplitEqual,
		Lenders:     []models.GroupLender{{UserID: "alice", Amount: lenderAmount}},
		Splits:      splits,
	}
}

func TestCreateGroup(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	if f.group.AdminUserID != "alice" {
		t.Errorf("expected alice as admin, got %s", f.group.AdminUserID)
	}
	if !f.group.HasMember("alice") || !f.group.HasMember("bob") {
		t.Errorf("expected both members, got %v", f.group.Members)
	}

	// The caller is always a member, even when omitted from the list.
	group, err := f.svc.CreateGroup(context.Background(), "carol", "Solo", []string{"dave"})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if !group.HasMember("carol") {
		t.Errorf("expected creator added as member, got %v", group.Members)
	}
}

func TestCreateGroupExpense(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	exp, err := f.svc.CreateGroupExpense(ctx, "alice", f.group.ID,
		dinner(100, 100,
			models.ExpenseSplit{UserID: "alice", Amount: 50},
			models.ExpenseSplit{UserID: "bob", Amount: 50},
		))
	if err != nil {
		t.Fatalf("CreateGroupExpense failed: %v", err)
	}
	if exp.Linkage.Empty() {
		t.Error("expected a transaction linkage on the created expense")
	}

	if got := f.balance(t, f.groupLedger(t, "alice")); got != 50 {
		t.Errorf("expected alice's group ledger at 50, got %f", got)
	}
	if got := f.balance(t, f.groupLedger(t, "bob")); got != -50 {
		t.Errorf("expected bob's group ledger at -50, got %f", got)
	}

	if len(f.alerter.users) != 1 || f.alerter.users[0] != "alice" {
		t.Errorf("expected one budget alert for alice, got %v", f.alerter.users)
	}

	t.Run("readable by members", func(t *testing.T) {
		got, err := f.svc.GetGroupExpense(ctx, "bob", exp.ID)
		if err != nil {
			t.Fatalf("GetGroupExpense failed: %v", err)
		}
		if got.Amount != 100 {
			t.Errorf("expected amount 100, got %f", got.Amount)
		}
	})

	t.Run("non-members forbidden", func(t *testing.T) {
		if _, err := f.svc.GetGroupExpense(ctx, "mallory", exp.ID); !errors.Is(err, service.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
		_, err := f.svc.CreateGroupExpense(ctx, "mallory", f.group.ID,
			dinner(10, 10, models.ExpenseSplit{UserID: "mallory", Amount: 10}))
		if !errors.Is(err, service.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("unknown group", func(t *testing.T) {
		_, err := f.svc.CreateGroupExpense(ctx, "alice", "no-such-group",
			dinner(10, 10, models.ExpenseSplit{UserID: "alice", Amount: 10}))
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestUpdateGroupExpense(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()

	exp, err := f.svc.CreateGroupExpense(ctx, "alice", f.group.ID,
		dinner(100, 100,
			models.ExpenseSplit{UserID: "alice", Amount: 50},
			models.ExpenseSplit{UserID: "bob", Amount: 50},
		))
	if err != nil {
		t.Fatalf("CreateGroupExpense failed: %v", err)
	}

	updated, err := f.svc.UpdateGroupExpense(ctx, "bob", exp.ID,
		dinner(120, 120,
			models.ExpenseSplit{UserID: "alice", Amount: 60},
			models.ExpenseSplit{UserID: "bob", Amount: 60},
		))
	if err != nil {
		t.Fatalf("UpdateGroupExpense failed: %v", err)
	}
	if updated.CreatedBy != "alice" {
		t.Errorf("expected creator preserved, got %s", updated.CreatedBy)
	}

	if got := f.balance(t, f.groupLedger(t, "alice")); got != 60 {
		t.Errorf("expected alice's group ledger at 60 after edit, got %f", got)
	}
	if got := f.balance(t, f.groupLedger(t, "bob")); got != -60 {
		t.Errorf("expected bob's group ledger at -60 after edit, got %f", got)
	}

	t.Run("uninvolved member forbidden", func(t *testing.T) {
		// carol is in the group but not a party to this expense.
		_, err := f.svc.UpdateGroupExpense(ctx, "carol", exp.ID,
			dinner(10, 10, models.ExpenseSplit{UserID: "alice", Amount: 10}))
		if !errors.Is(err, service.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})
}

func TestDeleteGroupExpense(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	exp, err := f.svc.CreateGroupExpense(ctx, "alice", f.group.ID,
		dinner(100, 100,
			models.ExpenseSplit{UserID: "alice", Amount: 50},
			models.ExpenseSplit{UserID: "bob", Amount: 50},
		))
	if err != nil {
		t.Fatalf("CreateGroupExpense failed: %v", err)
	}

	if err := f.svc.DeleteGroupExpense(ctx, "alice", exp.ID); err != nil {
		t.Fatalf("DeleteGroupExpense failed: %v", err)
	}

	if got := f.balance(t, f.groupLedger(t, "alice")); got != 0 {
		t.Errorf("expected alice's group ledger back at 0, got %f", got)
	}
	if got := f.balance(t, f.groupLedger(t, "bob")); got != 0 {
		t.Errorf("expected bob's group ledger back at 0, got %f", got)
	}
	if _, err := f.svc.GetGroupExpense(ctx, "alice", exp.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSettlementLifecycle(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	if _, err := f.svc.CreateGroupExpense(ctx, "alice", f.group.ID,
		dinner(100, 100,
			models.ExpenseSplit{UserID: "alice", Amount: 50},
			models.ExpenseSplit{UserID: "bob", Amount: 50},
		)); err != nil {
		t.Fatalf("CreateGroupExpense failed: %v", err)
	}

	st, err := f.svc.RecordSettlement(ctx, "bob", f.group.ID, "bob", "alice", 50, "", "")
	if err != nil {
		t.Fatalf("RecordSettlement failed: %v", err)
	}

	if got := f.balance(t, f.groupLedger(t, "alice")); got != 0 {
		t.Errorf("expected alice's group ledger settled to 0, got %f", got)
	}
	if got := f.balance(t, f.groupLedger(t, "bob")); got != 0 {
		t.Errorf("expected bob's group ledger settled to 0, got %f", got)
	}

	if len(f.publisher.topics) != 1 || f.publisher.topics[0] != events.TopicSettlementCreated {
		t.Fatalf("expected one settlement.created event, got %v", f.publisher.topics)
	}
	created, ok := f.publisher.events[0].(events.SettlementCreated)
	if !ok {
		t.Fatalf("unexpected event payload %T", f.publisher.events[0])
	}
	if created.SettlementID != st.ID || created.Amount != 50 {
		t.Errorf("event payload mismatch: %+v", created)
	}
	if created.BorrowerName != "Name of bob" || created.LenderName != "Name of alice" {
		t.Errorf("expected resolved display names, got %+v", created)
	}

	t.Run("outsider cannot delete", func(t *testing.T) {
		if _, err := f.svc.DeleteSettlement(ctx, "mallory", st.ID); !errors.Is(err, service.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("delete restores debt", func(t *testing.T) {
		count, err := f.svc.DeleteSettlement(ctx, "alice", st.ID)
		if err != nil {
			t.Fatalf("DeleteSettlement failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 split unsettled, got %d", count)
		}
		if got := f.balance(t, f.groupLedger(t, "bob")); got != -50 {
			t.Errorf("expected bob's debt restored to -50, got %f", got)
		}

		deleted, ok := f.publisher.events[len(f.publisher.events)-1].(events.SettlementDeleted)
		if !ok {
			t.Fatalf("expected settlement.deleted event, got %T", f.publisher.events[len(f.publisher.events)-1])
		}
		if deleted.SettlementID != st.ID || deleted.UnsettledSplits != 1 {
			t.Errorf("event payload mismatch: %+v", deleted)
		}
	})
}

func TestRecordSettlementAuthorization(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()

	// carol is neither party nor admin.
	if _, err := f.svc.RecordSettlement(ctx, "carol", f.group.ID, "bob", "alice", 10, "", ""); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("expected ErrForbidden for bystander, got %v", err)
	}

	// The admin may record on behalf of others.
	if _, err := f.svc.RecordSettlement(ctx, "alice", f.group.ID, "bob", "carol", 10, "", ""); err != nil {
		t.Errorf("expected admin to record settlement, got %v", err)
	}
}

func TestUpdateSettlementAccount(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	st, err := f.svc.RecordSettlement(ctx, "bob", f.group.ID, "bob", "alice", 25, "", "")
	if err != nil {
		t.Fatalf("RecordSettlement failed: %v", err)
	}

	// Stands in for another personal account of bob's.
	newAccount, err := f.store.GetOrCreateOthers(ctx, "carol")
	if err != nil {
		t.Fatalf("GetOrCreateOthers failed: %v", err)
	}

	if err := f.svc.UpdateSettlementAccount(ctx, "bob", st.ID, models.SideBorrower, newAccount.ID); err != nil {
		t.Fatalf("UpdateSettlementAccount failed: %v", err)
	}
	if got := f.balance(t, newAccount.ID); got != -25 {
		t.Errorf("expected payment moved to new account, got %f", got)
	}

	if err := f.svc.UpdateSettlementAccount(ctx, "mallory", st.ID, models.SideBorrower, newAccount.ID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestListOperations(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	if _, err := f.svc.CreateGroupExpense(ctx, "alice", f.group.ID,
		dinner(100, 100,
			models.ExpenseSplit{UserID: "alice", Amount: 50},
			models.ExpenseSplit{UserID: "bob", Amount: 50},
		)); err != nil {
		t.Fatalf("CreateGroupExpense failed: %v", err)
	}
	if _, err := f.svc.RecordSettlement(ctx, "bob", f.group.ID, "bob", "alice", 50, "", ""); err != nil {
		t.Fatalf("RecordSettlement failed: %v", err)
	}

	expenses, err := f.svc.ListGroupExpenses(ctx, "bob", f.group.ID)
	if err != nil {
		t.Fatalf("ListGroupExpenses failed: %v", err)
	}
	if len(expenses) != 1 || expenses[0].Amount != 100 {
		t.Errorf("expected one 100 expense, got %+v", expenses)
	}

	settlements, err := f.svc.ListSettlements(ctx, "alice", f.group.ID)
	if err != nil {
		t.Fatalf("ListSettlements failed: %v", err)
	}
	if len(settlements) != 1 || settlements[0].Amount != 50 {
		t.Errorf("expected one 50 settlement, got %+v", settlements)
	}

	if _, err := f.svc.ListSettlements(ctx, "mallory", f.group.ID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("expected ErrForbidden for outsider, got %v", err)
	}
	if _, err := f.svc.ListGroupExpenses(ctx, "mallory", f.group.ID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("expected ErrForbidden for outsider, got %v", err)
	}
}

func TestGetNetBalances(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()

	if _, err := f.svc.CreateGroupExpense(ctx, "alice", f.group.ID, service.ExpenseInput{
		Description: "Hotel",
		Amount:      90,
		Lenders:     []models.GroupLender{{UserID: "alice", Amount: 90}},
		Splits: []models.ExpenseSplit{
			{UserID: "alice", Amount: 30},
			{UserID: "bob", Amount: 30},
			{UserID: "carol", Amount: 30},
		},
	}); err != nil {
		t.Fatalf("CreateGroupExpense failed: %v", err)
	}

	balances, err := f.svc.GetNetBalances(ctx, "bob", f.group.ID)
	if err != nil {
		t.Fatalf("GetNetBalances failed: %v", err)
	}
	want := map[string]float64{"alice": 60, "bob": -30, "carol": -30}
	for userID, amount := range want {
		if math.Abs(balances[userID]-amount) > 0.001 {
			t.Errorf("expected %s at %.2f, got %.2f", userID, amount, balances[userID])
		}
	}

	t.Run("settled splits drop out", func(t *testing.T) {
		if _, err := f.svc.RecordSettlement(ctx, "bob", f.group.ID, "bob", "alice", 30, "", ""); err != nil {
			t.Fatalf("RecordSettlement failed: %v", err)
		}
		balances, err := f.svc.GetNetBalances(ctx, "bob", f.group.ID)
		if err != nil {
			t.Fatalf("GetNetBalances failed: %v", err)
		}
		if math.Abs(balances["bob"]) > 0.001 {
			t.Errorf("expected bob settled to 0, got %.2f", balances["bob"])
		}
		if math.Abs(balances["alice"]-30) > 0.001 {
			t.Errorf("expected alice at 30, got %.2f", balances["alice"])
		}
	})

	t.Run("suggestions clear the remaining debt", func(t *testing.T) {
		transfers, err := f.svc.GetSuggestedSettlements(ctx, "carol", f.group.ID)
		if err != nil {
			t.Fatalf("GetSuggestedSettlements failed: %v", err)
		}
		if len(transfers) != 1 {
			t.Fatalf("expected a single remaining transfer, got %+v", transfers)
		}
		if transfers[0].From != "carol" || transfers[0].To != "alice" || math.Abs(transfers[0].Amount-30) > 0.001 {
			t.Errorf("expected carol -> alice 30, got %+v", transfers[0])
		}
	})

	t.Run("outsider forbidden", func(t *testing.T) {
		if _, err := f.svc.GetNetBalances(ctx, "mallory", f.group.ID); !errors.Is(err, service.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})
}
