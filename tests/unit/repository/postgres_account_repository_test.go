package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	repository "github.com/Mattiaborrelli4/swapunina-sub000/internal/repository/postgres"
	pkgerrors "github.com/Mattiaborrelli4/swapunina-sub000/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPostgresAccountRepository_GetBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresAccountRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		userID := int64(1)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM accounts WHERE user_id = $1`)).
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("125.50"))

		balance, err := repo.GetBalance(ctx, userID)
		assert.NoError(t, err)
		assert.True(t, balance.Equal(decimal.RequireFromString("125.50")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NoAccountMeansZero", func(t *testing.T) {
		userID := int64(2)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM accounts WHERE user_id = $1`)).
			WithArgs(userID).
			WillReturnError(sql.ErrNoRows)

		balance, err := repo.GetBalance(ctx, userID)
		assert.NoError(t, err)
		assert.True(t, balance.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		userID := int64(3)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM accounts WHERE user_id = $1`)).
			WithArgs(userID).
			WillReturnError(fmt.Errorf("database error"))

		balance, err := repo.GetBalance(ctx, userID)
		assert.True(t, balance.IsZero())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get balance")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresAccountRepository_Provision(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresAccountRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		userID := int64(7)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO accounts (user_id, balance) VALUES ($1, 0) ON CONFLICT (user_id) DO NOTHING`)).
			WithArgs(userID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM accounts WHERE user_id = $1`)).
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
		mock.ExpectCommit()

		tx, err := db.Begin()
		assert.NoError(t, err)
		accountID, err := repo.Provision(ctx, tx, userID)
		assert.NoError(t, err)
		assert.Equal(t, int64(42), accountID)
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ExistingAccountIsIdempotent", func(t *testing.T) {
		userID := int64(7)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO accounts`)).
			WithArgs(userID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM accounts WHERE user_id = $1`)).
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
		mock.ExpectRollback()

		tx, err := db.Begin()
		assert.NoError(t, err)
		accountID, err := repo.Provision(ctx, tx, userID)
		assert.NoError(t, err)
		assert.Equal(t, int64(42), accountID)
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresAccountRepository_LockForUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresAccountRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		accountID := int64(42)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`)).
			WithArgs(accountID).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("100.00"))
		mock.ExpectRollback()

		tx, err := db.Begin()
		assert.NoError(t, err)
		balance, err := repo.LockForUpdate(ctx, tx, accountID)
		assert.NoError(t, err)
		assert.True(t, balance.Equal(decimal.RequireFromString("100.00")))
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		accountID := int64(99)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`)).
			WithArgs(accountID).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		tx, err := db.Begin()
		assert.NoError(t, err)
		_, err = repo.LockForUpdate(ctx, tx, accountID)
		assert.ErrorIs(t, err, pkgerrors.ErrAccountNotFound)
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresAccountRepository_ApplyDelta(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresAccountRepository(db)
	ctx := context.Background()

	t.Run("Debit", func(t *testing.T) {
		accountID := int64(42)
		delta := decimal.RequireFromString("-30.00")
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE accounts`)).
			WithArgs(delta, accountID).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("70.00"))
		mock.ExpectRollback()

		tx, err := db.Begin()
		assert.NoError(t, err)
		newBalance, err := repo.ApplyDelta(ctx, tx, accountID, delta)
		assert.NoError(t, err)
		assert.True(t, newBalance.Equal(decimal.RequireFromString("70.00")))
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GuardRejectsOverdraft", func(t *testing.T) {
		accountID := int64(42)
		delta := decimal.RequireFromString("-500.00")
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE accounts`)).
			WithArgs(delta, accountID).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		tx, err := db.Begin()
		assert.NoError(t, err)
		_, err = repo.ApplyDelta(ctx, tx, accountID, delta)
		assert.ErrorIs(t, err, pkgerrors.ErrInsufficientFunds)
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
