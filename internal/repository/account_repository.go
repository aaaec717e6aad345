package repository

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
)

// AccountRepository owns the balance column. The tx-scoped methods are the
// only way a balance changes; they must run inside a settlement transaction.
type AccountRepository interface {
	// GetBalance returns zero for users without an account yet.
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
	// Provision creates the account row if missing and returns its id.
	Provision(ctx context.Context, tx *sql.Tx, userID int64) (int64, error)
	// LockForUpdate takes the row lock and returns the current balance.
	LockForUpdate(ctx context.Context, tx *sql.Tx, accountID int64) (decimal.Decimal, error)
	// ApplyDelta adjusts the balance, rejecting any result below zero.
	ApplyDelta(ctx context.Context, tx *sql.Tx, accountID int64, delta decimal.Decimal) (decimal.Decimal, error)
}
