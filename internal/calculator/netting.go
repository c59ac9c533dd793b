// Package calculator computes group net balances and reduces them to a
// minimal set of suggested settlement transfers.
package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/pragun-bansal/expense-tracker-sub000/internal/models"
)

// epsilon is the floating point noise floor, one cent.
const epsilon = 0.01

// Transfer is one suggested payment: From pays To.
type Transfer struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

// NetBalances computes each user's net position across a group's expenses:
// everything they lent minus everything they still owe via unsettled splits.
// A settled split cancels the matching slice of lender credit too, spread
// proportionally when an expense has several lenders, so the values sum to
// approximately zero in a closed group at all times. Positive means the user
// is owed money, negative means the user owes money.
func NetBalances(expenses []*models.GroupExpense) map[string]float64 {
	balances := make(map[string]float64)
	for _, exp := range expenses {
		var lent, settled float64
		for _, lender := range exp.Lenders {
			lent += lender.Amount
		}
		for _, split := range exp.Splits {
			if split.Settled {
				settled += split.Amount
				continue
			}
			balances[split.UserID] -= split.Amount
		}
		if lent <= 0 {
			continue
		}
		outstanding := (lent - settled) / lent
		for _, lender := range exp.Lenders {
			balances[lender.UserID] += lender.Amount * outstanding
		}
	}
	return balances
}

// SuggestSettlements reduces a set of net balances to a minimal list of
// transfers that zeroes them: repeatedly pair the biggest debtor with the
// biggest creditor and move the smaller of the two magnitudes. Users of
// equal magnitude are ordered by id so output is reproducible. Runs in
// O(N log N); amounts are rounded to whole cents.
func SuggestSettlements(balances map[string]float64) []Transfer {
	type position struct {
		userID string
		amount float64 // positive magnitude
	}

	var debtors, creditors []position
	for userID, balance := range balances {
		switch {
		case balance < -epsilon:
			debtors = append(debtors, position{userID, -balance})
		case balance > epsilon:
			creditors = append(creditors, position{userID, balance})
		}
	}

	byMagnitude := func(list []position) func(i, j int) bool {
		return func(i, j int) bool {
			if list[i].amount != list[j].amount {
				return list[i].amount > list[j].amount
			}
			return list[i].userID < list[j].userID
		}
	}
	sort.Slice(debtors, byMagnitude(debtors))
	sort.Slice(creditors, byMagnitude(creditors))

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor, creditor := &debtors[i], &creditors[j]

		amount := debtor.amount
		if creditor.amount < amount {
			amount = creditor.amount
		}

		if amount > epsilon {
			transfers = append(transfers, Transfer{
				From:   debtor.userID,
				To:     creditor.userID,
				Amount: decimal.NewFromFloat(amount).Round(2).InexactFloat64(),
			})
		}

		debtor.amount -= amount
		creditor.amount -= amount
		if debtor.amount < epsilon {
			i++
		}
		if creditor.amount < epsilon {
			j++
		}
	}
	return transfers
}
