package repository_test

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/models"
	repository "github.com/Mattiaborrelli4/swapunina-sub000/internal/repository/postgres"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPostgresLedgerRepository_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresLedgerRepository(db)
	ctx := context.Background()

	t.Run("InvalidKind", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		tx, err := db.Begin()
		assert.NoError(t, err)
		id, err := repo.Append(ctx, tx, 10, decimal.RequireFromString("5.00"), "bogus", "desc")
		assert.Equal(t, int64(0), id)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid movement kind")
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ZeroAmount", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		tx, err := db.Begin()
		assert.NoError(t, err)
		id, err := repo.Append(ctx, tx, 10, decimal.Zero, models.KindTopUp, "desc")
		assert.Equal(t, int64(0), id)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "non-zero")
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success", func(t *testing.T) {
		amount := decimal.RequireFromString("-30.00")
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO movements (account_id, amount, kind, description) VALUES ($1, $2, $3, $4) RETURNING id`)).
			WithArgs(int64(10), amount, models.KindPurchase, "order 77").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(501)))
		mock.ExpectCommit()

		tx, err := db.Begin()
		assert.NoError(t, err)
		id, err := repo.Append(ctx, tx, 10, amount, models.KindPurchase, "order 77")
		assert.NoError(t, err)
		assert.Equal(t, int64(501), id)
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresLedgerRepository_History(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresLedgerRepository(db)
	ctx := context.Background()

	columns := []string{"id", "account_id", "amount", "kind", "description", "created_at"}

	t.Run("Success", func(t *testing.T) {
		userID := int64(1)
		now := time.Now().UTC()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT m.id, m.account_id, m.amount, m.kind, m.description, m.created_at`)).
			WithArgs(userID, int32(2), int32(0)).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(int64(502), int64(10), "30.00", models.KindCreditFromSale, "order 77", now).
				AddRow(int64(501), int64(10), "-30.00", models.KindPurchase, "order 76", now.Add(-time.Minute)))

		movements, err := repo.History(ctx, userID, 2, 0)
		assert.NoError(t, err)
		assert.Len(t, movements, 2)
		assert.Equal(t, int64(502), movements[0].ID)
		assert.Equal(t, models.KindCreditFromSale, movements[0].Kind)
		assert.True(t, movements[1].Amount.IsNegative())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ClampsInvalidLimit", func(t *testing.T) {
		userID := int64(1)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT m.id, m.account_id, m.amount, m.kind, m.description, m.created_at`)).
			WithArgs(userID, int32(50), int32(0)).
			WillReturnRows(sqlmock.NewRows(columns))

		movements, err := repo.History(ctx, userID, -1, -10)
		assert.NoError(t, err)
		assert.Empty(t, movements)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		userID := int64(1)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT m.id, m.account_id, m.amount, m.kind, m.description, m.created_at`)).
			WithArgs(userID, int32(50), int32(0)).
			WillReturnError(fmt.Errorf("database error"))

		movements, err := repo.History(ctx, userID, 50, 0)
		assert.Nil(t, movements)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to query history")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
