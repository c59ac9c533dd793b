package service

import "context"

// BudgetAlerter is the budget-alert hook of the surrounding product: after
// an Expense entry is posted for a user, let the budget subsystem re-check
// its thresholds. Fire-and-forget: a failure is logged and never aborts the
// ledger operation.
type BudgetAlerter interface {
	OnExpensePosted(ctx context.Context, userID, categoryID string) error
}

// NameResolver maps a user id to a display name for event payloads.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// NoopBudgetAlerter ignores every alert.
type NoopBudgetAlerter struct{}

func (NoopBudgetAlerter) OnExpensePosted(context.Context, string, string) error { return nil }

// NoopNameResolver resolves every user to their raw id.
type NoopNameResolver struct{}

func (NoopNameResolver) DisplayName(_ context.Context, userID string) (string, error) {
	return userID, nil
}
