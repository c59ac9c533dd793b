package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// The partial unique index on accounts is what makes system-account
// provisioning an idempotent upsert instead of a racy find-then-create.
const schema = `
CREATE TABLE IF NOT EXISTS groups (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    admin_user_id TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
    group_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    PRIMARY KEY (group_id, user_id),
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    balance REAL NOT NULL DEFAULT 0,
    color TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_system
    ON accounts(user_id, type)
    WHERE type IN ('OTHERS_FIXED', 'GROUP_LEDGER');

CREATE TABLE IF NOT EXISTS categories (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS ledger_entries (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    amount REAL NOT NULL,
    description TEXT NOT NULL,
    date INTEGER NOT NULL,
    user_id TEXT NOT NULL,
    account_id TEXT NOT NULL,
    category_id TEXT NOT NULL,
    group_expense_id TEXT,
    settlement_id TEXT,
    group_type TEXT
);

CREATE TABLE IF NOT EXISTS group_expenses (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    description TEXT NOT NULL,
    amount REAL NOT NULL,
    date INTEGER NOT NULL,
    split_type TEXT NOT NULL,
    created_by TEXT NOT NULL,
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS group_lenders (
    expense_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    amount REAL NOT NULL,
    account_id TEXT,
    PRIMARY KEY (expense_id, user_id),
    FOREIGN KEY (expense_id) REFERENCES group_expenses(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS expense_splits (
    expense_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    amount REAL NOT NULL,
    settled INTEGER NOT NULL DEFAULT 0,
    settled_at INTEGER,
    settlement_account_id TEXT,
    PRIMARY KEY (expense_id, user_id),
    FOREIGN KEY (expense_id) REFERENCES group_expenses(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS expense_links (
    expense_id TEXT NOT NULL,
    role TEXT NOT NULL,
    entry_id TEXT NOT NULL,
    PRIMARY KEY (expense_id, role, entry_id),
    FOREIGN KEY (expense_id) REFERENCES group_expenses(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS settlements (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    borrower_user_id TEXT NOT NULL,
    lender_user_id TEXT NOT NULL,
    amount REAL NOT NULL,
    settled_at INTEGER NOT NULL,
    borrower_account_id TEXT,
    lender_account_id TEXT,
    borrower_expense_id TEXT,
    lender_income_id TEXT,
    borrower_lending_id TEXT,
    lender_borrowing_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_entries_account_id ON ledger_entries(account_id);
CREATE INDEX IF NOT EXISTS idx_entries_group_expense_id ON ledger_entries(group_expense_id);
CREATE INDEX IF NOT EXISTS idx_entries_user_date ON ledger_entries(user_id, date);
CREATE INDEX IF NOT EXISTS idx_group_expenses_group_id ON group_expenses(group_id);
CREATE INDEX IF NOT EXISTS idx_group_lenders_expense_id ON group_lenders(expense_id);
CREATE INDEX IF NOT EXISTS idx_expense_splits_expense_id ON expense_splits(expense_id);
CREATE INDEX IF NOT EXISTS idx_settlements_group_id ON settlements(group_id);
CREATE INDEX IF NOT EXISTS idx_group_members_group_id ON group_members(group_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
