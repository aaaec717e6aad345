package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/models"
	repository "github.com/Mattiaborrelli4/swapunina-sub000/internal/repository/postgres"
	pkgerrors "github.com/Mattiaborrelli4/swapunina-sub000/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPostgresCatalogRepository_GetListing(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresCatalogRepository(db)
	ctx := context.Background()

	columns := []string{"id", "seller_id", "title", "price", "state", "created_at"}

	t.Run("Success", func(t *testing.T) {
		createdAt := time.Now().UTC()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, seller_id, title, price, state, created_at FROM listings WHERE id = $1`)).
			WithArgs(int64(2)).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(int64(2), int64(7), "vintage lamp", "25.00", models.ListingAvailable, createdAt))

		listing, err := repo.GetListing(ctx, 2)
		assert.NoError(t, err)
		assert.Equal(t, int64(7), listing.SellerID)
		assert.Equal(t, models.ListingAvailable, listing.State)
		assert.True(t, listing.Price.Equal(decimal.RequireFromString("25.00")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, seller_id, title, price, state, created_at FROM listings WHERE id = $1`)).
			WithArgs(int64(99)).
			WillReturnError(sql.ErrNoRows)

		listing, err := repo.GetListing(ctx, 99)
		assert.Nil(t, listing)
		assert.ErrorIs(t, err, pkgerrors.ErrListingNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresCatalogRepository_StateTransitions(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresCatalogRepository(db)
	ctx := context.Background()

	t.Run("MarkSold", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE listings SET state = $1 WHERE id = $2 AND state = $3`)).
			WithArgs(models.ListingSold, int64(2), models.ListingAvailable).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.MarkSold(ctx, 2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MarkSoldLosesRace", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE listings SET state = $1 WHERE id = $2 AND state = $3`)).
			WithArgs(models.ListingSold, int64(2), models.ListingAvailable).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.MarkSold(ctx, 2)
		assert.ErrorIs(t, err, pkgerrors.ErrListingUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MarkDelivered", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE listings SET state = $1 WHERE id = $2 AND state = $3`)).
			WithArgs(models.ListingDelivered, int64(2), models.ListingSold).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.MarkDelivered(ctx, 2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE listings`)).
			WithArgs(models.ListingSold, int64(2), models.ListingAvailable).
			WillReturnError(fmt.Errorf("database error"))

		err := repo.MarkSold(ctx, 2)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to update listing state")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
