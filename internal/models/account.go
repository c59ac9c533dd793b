package models

// AccountType classifies an account.
type AccountType string

const (
	AccountBank       AccountType = "BANK"
	AccountCash       AccountType = "CASH"
	AccountCreditCard AccountType = "CREDIT_CARD"
	AccountInvestment AccountType = "INVESTMENT"
	AccountOther      AccountType = "OTHER"

	// AccountOthersFixed is the per-user default sink account, used when an
	// operation needs an account and the user did not pick one. Exactly one
	// exists per user, created on first use.
	AccountOthersFixed AccountType = "OTHERS_FIXED"

	// AccountGroupLedger is the per-user system account that holds only the
	// net effect of group-expense participation. Personal transactions never
	// touch it. Exactly one exists per user, created on first use.
	AccountGroupLedger AccountType = "GROUP_LEDGER"
)

// Account is a named account owned by one user.
//
// Balance is invariant-bound: it always equals the signed sum of every
// LedgerEntry referencing this account (Expense −, Income +, Lending +,
// Borrowing −). It is maintained by store-level atomic increments only.
type Account struct {
	// ID is the unique identifier for the account (UUID format).
	ID string

	// UserID is the owning user.
	UserID string

	// Name is the display name (e.g. "Checking", "Others").
	Name string

	// Type classifies the account; OTHERS_FIXED and GROUP_LEDGER are the
	// system types with a per-user uniqueness guarantee.
	Type AccountType

	// Balance is the signed current balance.
	Balance float64

	// Color is the display color chosen for the account.
	Color string

	// CreatedAt is the Unix timestamp when the account was created.
	CreatedAt int64
}
