package calculator

import (
	"math"
	"testing"

	"github.com/pragun-bansal/expense-tracker-sub000/internal/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.001
}

func expense(lenders []models.GroupLender, splits []models.ExpenseSplit) *models.GroupExpense {
	var amount float64
	for _, lender := range lenders {
		amount += lender.Amount
	}
	return &models.GroupExpense{Amount: amount, Lenders: lenders, Splits: splits}
}

func TestNetBalances(t *testing.T) {
	balances := NetBalances([]*models.GroupExpense{
		expense(
			[]models.GroupLender{{UserID: "alice", Amount: 100}},
			[]models.ExpenseSplit{
				{UserID: "alice", Amount: 50},
				{UserID: "bob", Amount: 50},
			},
		),
	})

	if !almostEqual(balances["alice"], 50) {
		t.Errorf("alice balance: expected 50, got %f", balances["alice"])
	}
	if !almostEqual(balances["bob"], -50) {
		t.Errorf("bob balance: expected -50, got %f", balances["bob"])
	}
}

func TestNetBalances_SettledSplitCancelsBothSides(t *testing.T) {
	balances := NetBalances([]*models.GroupExpense{
		expense(
			[]models.GroupLender{{UserID: "alice", Amount: 100}},
			[]models.ExpenseSplit{
				{UserID: "alice", Amount: 50},
				{UserID: "bob", Amount: 50, Settled: true},
			},
		),
	})

	if !almostEqual(balances["bob"], 0) {
		t.Errorf("settled split should not count against bob: expected 0, got %f", balances["bob"])
	}
	if !almostEqual(balances["alice"], 0) {
		t.Errorf("settled split should release alice's credit: expected 0, got %f", balances["alice"])
	}
}

func TestNetBalances_SettledSplitReducesLendersProportionally(t *testing.T) {
	// alice lent 90, bob lent 30; carol's settled 40 releases credit 3:1.
	balances := NetBalances([]*models.GroupExpense{
		expense(
			[]models.GroupLender{
				{UserID: "alice", Amount: 90},
				{UserID: "bob", Amount: 30},
			},
			[]models.ExpenseSplit{
				{UserID: "alice", Amount: 40},
				{UserID: "bob", Amount: 40},
				{UserID: "carol", Amount: 40, Settled: true},
			},
		),
	})

	if !almostEqual(balances["alice"], 90*(80.0/120.0)-40) {
		t.Errorf("alice balance: expected 20, got %f", balances["alice"])
	}
	if !almostEqual(balances["bob"], 30*(80.0/120.0)-40) {
		t.Errorf("bob balance: expected -20, got %f", balances["bob"])
	}
	if !almostEqual(balances["carol"], 0) {
		t.Errorf("carol balance: expected 0, got %f", balances["carol"])
	}
}

func TestNetBalances_SumsToZero(t *testing.T) {
	expenses := []*models.GroupExpense{
		expense(
			[]models.GroupLender{
				{UserID: "alice", Amount: 90},
				{UserID: "bob", Amount: 30},
			},
			[]models.ExpenseSplit{
				{UserID: "alice", Amount: 40},
				{UserID: "bob", Amount: 40},
				{UserID: "carol", Amount: 40},
			},
		),
		expense(
			[]models.GroupLender{{UserID: "carol", Amount: 45}},
			[]models.ExpenseSplit{
				{UserID: "alice", Amount: 15, Settled: true},
				{UserID: "bob", Amount: 15},
				{UserID: "carol", Amount: 15},
			},
		),
	}

	var total float64
	for _, balance := range NetBalances(expenses) {
		total += balance
	}
	if !almostEqual(total, 0) {
		t.Errorf("closed group balances should sum to zero, got %f", total)
	}
}

func TestSuggestSettlements_TwoParties(t *testing.T) {
	transfers := SuggestSettlements(map[string]float64{
		"alice": 50,
		"bob":   -50,
	})

	if len(transfers) != 1 {
		t.Fatalf("expected exactly 1 transfer, got %d", len(transfers))
	}
	tr := transfers[0]
	if tr.From != "bob" || tr.To != "alice" || !almostEqual(tr.Amount, 50) {
		t.Errorf("expected bob -> alice 50, got %s -> %s %f", tr.From, tr.To, tr.Amount)
	}
}

func TestSuggestSettlements_ThreeParties(t *testing.T) {
	// A is owed 30, B owes 10, C owes 20. Two transfers, not three.
	transfers := SuggestSettlements(map[string]float64{
		"A": 30,
		"B": -10,
		"C": -20,
	})

	if len(transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d: %+v", len(transfers), transfers)
	}
	// Biggest debtor first.
	if transfers[0].From != "C" || transfers[0].To != "A" || !almostEqual(transfers[0].Amount, 20) {
		t.Errorf("first transfer: expected C -> A 20, got %+v", transfers[0])
	}
	if transfers[1].From != "B" || transfers[1].To != "A" || !almostEqual(transfers[1].Amount, 10) {
		t.Errorf("second transfer: expected B -> A 10, got %+v", transfers[1])
	}
}

func TestSuggestSettlements_Deterministic(t *testing.T) {
	balances := map[string]float64{
		"A": 20, "B": 20, "C": -20, "D": -20,
	}

	first := SuggestSettlements(balances)
	for i := 0; i < 10; i++ {
		again := SuggestSettlements(balances)
		if len(again) != len(first) {
			t.Fatalf("run %d: length changed from %d to %d", i, len(first), len(again))
		}
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("run %d: transfer %d changed from %+v to %+v", i, j, first[j], again[j])
			}
		}
	}
	// Equal magnitudes tie-break by user id.
	if first[0].From != "C" || first[0].To != "A" {
		t.Errorf("expected C -> A first under tie-break, got %+v", first[0])
	}
}

func TestSuggestSettlements_ZeroesBalances(t *testing.T) {
	balances := map[string]float64{
		"A": 73.40, "B": -12.15, "C": -33.25, "D": -28.00,
	}

	applied := make(map[string]float64, len(balances))
	for userID, balance := range balances {
		applied[userID] = balance
	}
	for _, tr := range SuggestSettlements(balances) {
		applied[tr.From] += tr.Amount
		applied[tr.To] -= tr.Amount
	}

	for userID, balance := range applied {
		if math.Abs(balance) > 0.01 {
			t.Errorf("user %s not zeroed after applying suggestions: %f", userID, balance)
		}
	}
}

func TestSuggestSettlements_AllEven(t *testing.T) {
	transfers := SuggestSettlements(map[string]float64{"A": 0, "B": 0.001, "C": -0.001})
	if len(transfers) != 0 {
		t.Errorf("expected no transfers for even balances, got %+v", transfers)
	}
}
