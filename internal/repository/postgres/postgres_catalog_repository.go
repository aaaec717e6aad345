package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/Mattiaborrelli4/swapunina-sub000/internal/models"
	pkgerrors "github.com/Mattiaborrelli4/swapunina-sub000/pkg/errors"
)

type PostgresCatalogRepository struct {
	db *sql.DB
}

func NewPostgresCatalogRepository(db *sql.DB) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{db: db}
}

func (r *PostgresCatalogRepository) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	var listing models.Listing
	query := `SELECT id, seller_id, title, price, state, created_at FROM listings WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&listing.ID, &listing.SellerID, &listing.Title, &listing.Price, &listing.State, &listing.CreatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &listing, nil
}

func (r *PostgresCatalogRepository) MarkSold(ctx context.Context, id int64) error {
	return r.advanceState(ctx, id, models.ListingAvailable, models.ListingSold)
}

func (r *PostgresCatalogRepository) MarkDelivered(ctx context.Context, id int64) error {
	return r.advanceState(ctx, id, models.ListingSold, models.ListingDelivered)
}

// advanceState is a guarded transition: the update only matches the expected
// current state, so concurrent double-sells lose cleanly.
func (r *PostgresCatalogRepository) advanceState(ctx context.Context, id int64, from, to models.ListingState) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE listings SET state = $1 WHERE id = $2 AND state = $3`,
		to, id, from,
	)
	if err != nil {
		return fmt.Errorf("failed to update listing state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check listing update: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrListingUnavailable
	}
	return nil
}
