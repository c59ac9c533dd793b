package ledger

import "fmt"

// ValidationError rejects an operation before any store write. Nothing has
// been mutated when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InconsistencyError means the ledger's linkage or balances can no longer be
// trusted for the record in question: a linkage id failed to resolve on a
// non-legacy reversal, or an atomic unit aborted mid-way. It is fatal for
// the operation and must be surfaced, never swallowed.
type InconsistencyError struct {
	Op     string
	Record string
	Err    error
}

func (e *InconsistencyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ledger inconsistency in %s of %s: %v", e.Op, e.Record, e.Err)
	}
	return fmt.Sprintf("ledger inconsistency in %s of %s", e.Op, e.Record)
}

func (e *InconsistencyError) Unwrap() error {
	return e.Err
}
