package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	pkgerrors "github.com/Mattiaborrelli4/swapunina-sub000/pkg/errors"
	"github.com/shopspring/decimal"
)

type PostgresAccountRepository struct {
	db *sql.DB
}

func NewPostgresAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

// GetBalance never returns a business error: a user without an account simply
// has a zero balance. Accounts are provisioned lazily on first mutation.
func (r *PostgresAccountRepository) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	query := `SELECT balance FROM accounts WHERE user_id = $1`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&balance)
	if stderrors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		slog.Error("failed to get balance", "method", "GetBalance", "user_id", userID, "error", err)
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (r *PostgresAccountRepository) Provision(ctx context.Context, tx *sql.Tx, userID int64) (int64, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (user_id, balance) VALUES ($1, 0) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to provision account: %w", err)
	}

	var accountID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM accounts WHERE user_id = $1`, userID).Scan(&accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve account id: %w", err)
	}
	return accountID, nil
}

func (r *PostgresAccountRepository) LockForUpdate(ctx context.Context, tx *sql.Tx, accountID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&balance)
	if stderrors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, pkgerrors.ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("lock acquisition failed: %w", err)
	}
	return balance, nil
}

// ApplyDelta is guarded in SQL: the update only matches when the resulting
// balance stays non-negative, so a lost-update can never drive it below zero.
func (r *PostgresAccountRepository) ApplyDelta(ctx context.Context, tx *sql.Tx, accountID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var newBalance decimal.Decimal
	query := `
		UPDATE accounts
		SET balance = balance + $1
		WHERE id = $2
		AND balance + $1 >= 0
		RETURNING balance
	`
	err := tx.QueryRowContext(ctx, query, delta, accountID).Scan(&newBalance)
	if stderrors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, pkgerrors.ErrInsufficientFunds
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to apply delta: %w", err)
	}
	return newBalance, nil
}
