// Package models defines the domain model of the group ledger engine.
//
// # Core Models
//
//   - Account: a user's personal account, plus two lazily provisioned system
//     accounts per user ("Others" and "GroupLedger")
//   - LedgerEntry: one atomic financial fact (Expense, Income, Lending or
//     Borrowing) tied to exactly one account
//   - GroupExpense: a shared expense with its lenders, splits and the
//     TransactionLinkage of every ledger entry it produced
//   - Settlement: a real payment closing part of a pairwise group debt
//
// # Design Principles
//
//  1. **Exact reversal**: every mutation records the ids of the entries it
//     created, so it can be undone without guessing
//  2. **Incremental balances**: an account balance is always the signed sum
//     of its entries, maintained by atomic increments, never recomputed
//  3. **Avoid circular references**: models reference each other by ID
//     strings, not pointers
package models
